// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package merge

import (
	"fmt"
	"strings"

	"github.com/pdiddy/dbnascent/internal/metatable"
)

// Policy decides what happens when several lookup rows match one record.
type Policy int

const (
	// LastWins copies the store keys of the last matching row.
	LastWins Policy = iota
	// Strict fails with ErrAmbiguous on a second match.
	Strict
)

// Stamp describes a foreign-key back-fill: records are matched to lookup
// rows on Compare and receive the Store fields of the match.
type Stamp struct {
	Compare []string
	Store   []string

	// RenameTo, when set, renames Store to these keys after stamping,
	// e.g. id to organism_id.
	RenameTo []string

	// AllowNull sets Store to null on records that matched nothing and do
	// not hold the first store key already.
	AllowNull bool

	Policy Policy
}

// keyMatch compares one field. An empty candidate string matches only a
// null lookup value.
func keyMatch(candidate, lookup any) bool {
	cs := metatable.Str(candidate)
	if cs == metatable.Str(lookup) {
		return true
	}
	return cs == "" && lookup == nil
}

func (s Stamp) matches(rec, row *metatable.Record) bool {
	for _, k := range s.Compare {
		if !keyMatch(rec.Value(k), row.Value(k)) {
			return false
		}
	}
	return true
}

// Record stamps rec in place from lookup and returns it.
func (s Stamp) Record(rec *metatable.Record, lookup []*metatable.Record) (*metatable.Record, error) {
	matched := 0
	for _, row := range lookup {
		if !s.matches(rec, row) {
			continue
		}
		matched++
		if matched > 1 && s.Policy == Strict {
			return rec, fmt.Errorf("%s: %w", describe(rec, s.Compare), ErrAmbiguous)
		}
		for _, k := range s.Store {
			rec.Set(k, row.Value(k))
		}
	}

	if s.AllowNull && len(s.Store) > 0 && !rec.Has(s.Store[0]) {
		for _, k := range s.Store {
			rec.Set(k, nil)
		}
	}
	return rec, nil
}

// Table stamps every record of t and then applies RenameTo.
func (s Stamp) Table(t *metatable.Table, lookup []*metatable.Record) error {
	for _, rec := range t.Records {
		if _, err := s.Record(rec, lookup); err != nil {
			return err
		}
	}
	if len(s.RenameTo) == 0 {
		return nil
	}
	if err := t.Rename(s.Store, s.RenameTo); err != nil {
		return fmt.Errorf("renaming stamped keys: %w", err)
	}
	return nil
}

func describe(rec *metatable.Record, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + rec.String(k)
	}
	return strings.Join(parts, ", ")
}

// StampForeignKey copies storeKeys into rec from the last lookup row whose
// compareKeys match. With allowNull, a record left without storeKeys gets
// them as nulls.
func StampForeignKey(rec *metatable.Record, lookup []*metatable.Record, compareKeys, storeKeys []string, allowNull bool) *metatable.Record {
	rec, _ = Stamp{Compare: compareKeys, Store: storeKeys, AllowNull: allowNull}.Record(rec, lookup)
	return rec
}

// StampStrict is StampForeignKey that fails with ErrAmbiguous when more
// than one lookup row matches.
func StampStrict(rec *metatable.Record, lookup []*metatable.Record, compareKeys, storeKeys []string, allowNull bool) (*metatable.Record, error) {
	return Stamp{Compare: compareKeys, Store: storeKeys, AllowNull: allowNull, Policy: Strict}.Record(rec, lookup)
}

// BulkStampForeignKey stamps every record of t and renames storeKeys to
// renameTo when renameTo is non-empty.
func BulkStampForeignKey(t *metatable.Table, lookup []*metatable.Record, compareKeys, storeKeys, renameTo []string) error {
	return Stamp{Compare: compareKeys, Store: storeKeys, RenameTo: renameTo}.Table(t, lookup)
}
