// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metatable loads tab-delimited metadata tables and database
// projections into ordered records, and provides the key renaming,
// projection, and distinct-value operations the database build runs on
// them.
package metatable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a table file is missing or is a directory.
	ErrNotFound = errors.New("table file not found")

	// ErrFormat is returned when a table file is not tab-delimited or a
	// key mapping is malformed.
	ErrFormat = errors.New("malformed table")

	// ErrKey is the sentinel wrapped by every *KeyError.
	ErrKey = errors.New("key not present")
)

// KeyError names the requested keys missing from a table.
type KeyError struct {
	Keys []string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("key(s) not present in table: %s", strings.Join(e.Keys, ", "))
}

func (e *KeyError) Unwrap() error { return ErrKey }

// Table is an ordered sequence of records that share a field set.
type Table struct {
	Records []*Record
}

// New wraps records, typically a database projection, as a Table.
func New(records []*Record) *Table {
	return &Table{Records: records}
}

// Load parses a tab-delimited file with a header row. Rows shorter than the
// header are padded with nulls.
func Load(path string) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("loading %s: %w", path, ErrNotFound)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return t, nil
}

// Parse reads a tab-delimited table from r.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file: %w", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) == 1 {
		return nil, fmt.Errorf("file must be tab-delimited: %w", ErrFormat)
	}

	t := &Table{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		if len(row) > len(header) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d: %w",
				line, len(row), len(header), ErrFormat)
		}
		rec := NewRecord()
		for i, k := range header {
			if i < len(row) {
				rec.Set(k, row[i])
			} else {
				rec.Set(k, nil)
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.Records) }

// checkKeys validates keys against the first record. An empty table has
// nothing to validate against and passes.
func (t *Table) checkKeys(keys []string) error {
	if len(t.Records) == 0 {
		return nil
	}
	var missing []string
	for _, k := range keys {
		if !t.Records[0].Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &KeyError{Keys: missing}
	}
	return nil
}

// Rename replaces each source key with the target key at the same index in
// every record, keeping field positions.
func (t *Table) Rename(source, target []string) error {
	if len(source) != len(target) {
		return fmt.Errorf("renaming %d keys to %d keys: %w", len(source), len(target), ErrFormat)
	}
	if err := t.checkKeys(source); err != nil {
		return err
	}
	for _, rec := range t.Records {
		for i := range source {
			rec.Rename(source[i], target[i])
		}
	}
	return nil
}

// Project returns a new table whose records hold only keys, in key order.
func (t *Table) Project(keys []string) (*Table, error) {
	if err := t.checkKeys(keys); err != nil {
		return nil, err
	}
	out := &Table{Records: make([]*Record, 0, len(t.Records))}
	for _, rec := range t.Records {
		p := NewRecord()
		for _, k := range keys {
			v, ok := rec.Get(k)
			if !ok {
				return nil, &KeyError{Keys: []string{k}}
			}
			p.Set(k, v)
		}
		out.Records = append(out.Records, p)
	}
	return out, nil
}

// Values returns, per record, the ordered tuple of values at keys.
func (t *Table) Values(keys []string) ([][]any, error) {
	if err := t.checkKeys(keys); err != nil {
		return nil, err
	}
	out := make([][]any, 0, len(t.Records))
	for _, rec := range t.Records {
		row := make([]any, len(keys))
		for i, k := range keys {
			v, ok := rec.Get(k)
			if !ok {
				return nil, &KeyError{Keys: []string{k}}
			}
			row[i] = v
		}
		out = append(out, row)
	}
	return out, nil
}

// Distinct returns one record per distinct tuple of keys. Values are
// compared and returned in string form; the result is sorted by tuple.
func (t *Table) Distinct(keys []string) (*Table, error) {
	rows, err := t.Values(keys)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rows))
	var tuples [][]string
	for _, row := range rows {
		tuple := make([]string, len(row))
		for i, v := range row {
			tuple[i] = Str(v)
		}
		sig := strings.Join(tuple, "\x00")
		if seen[sig] {
			continue
		}
		seen[sig] = true
		tuples = append(tuples, tuple)
	}

	sort.Slice(tuples, func(i, j int) bool {
		a, b := tuples[i], tuples[j]
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})

	out := &Table{Records: make([]*Record, 0, len(tuples))}
	for _, tuple := range tuples {
		rec := NewRecord()
		for i, k := range keys {
			rec.Set(k, tuple[i])
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

// Append adds records to the table.
func (t *Table) Append(records ...*Record) {
	t.Records = append(t.Records, records...)
}
