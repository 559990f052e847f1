// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest runs the database update drivers: Global loads the
// organism and tissue reference tables, Paper adds one paper with its
// samples and everything derived from them, and SearchEquiv rebuilds the
// search-term equivalence table.
//
// Each driver works inside a single transaction, so a failed run leaves
// the database as it found it, and records the run in ingestRuns.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/dbnascent/internal/merge"
	"github.com/pdiddy/dbnascent/internal/metatable"
	"github.com/pdiddy/dbnascent/internal/metrics"
	"github.com/pdiddy/dbnascent/internal/schema"
	"github.com/pdiddy/dbnascent/internal/sink"
	"github.com/pdiddy/dbnascent/pkg/types"
)

// ErrPaperNotFound is returned when a paper has no experiment metadata
// under the data root.
var ErrPaperNotFound = errors.New("paper metadata not present")

// Run kinds recorded in ingestRuns.
const (
	KindGlobal      = "global"
	KindPaper       = "paper"
	KindSearchEquiv = "searcheq"
)

// Inserted counts the rows a run added, per table.
type Inserted map[schema.TableID]int

// Total returns the number of rows inserted across all tables.
func (c Inserted) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Driver runs ingests against a sink.
type Driver struct {
	Sink   sink.TxSink
	Config types.BuildConfig

	// Out receives progress lines. Nil discards them.
	Out io.Writer

	// Metrics, when non-nil, receives inserted row counts and scores of
	// committed runs.
	Metrics *metrics.Run

	// RunID identifies the driver's runs in ingestRuns. A random UUID is
	// used when empty.
	RunID string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (d *Driver) out() io.Writer {
	if d.Out == nil {
		return io.Discard
	}
	return d.Out
}

func (d *Driver) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Driver) runID() string {
	if d.RunID == "" {
		d.RunID = uuid.NewString()
	}
	return d.RunID
}

// run executes fn in one transaction and records the outcome in
// ingestRuns. A successful run's audit row is written in the same
// transaction; a failed run's is written afterwards on its own.
func (d *Driver) run(ctx context.Context, kind, target string, fn func(tx sink.Sink, ins Inserted) error) (Inserted, error) {
	started := d.now()
	ins := make(Inserted)

	err := d.Sink.RunInTx(ctx, func(tx sink.Sink) error {
		if err := fn(tx, ins); err != nil {
			return err
		}
		return d.audit(ctx, tx, kind, target, started, ins.Total(), "ok")
	})
	finished := d.now()
	d.Metrics.IngestFinished(kind, err, started, finished)

	if err != nil {
		if aerr := d.audit(ctx, d.Sink, kind, target, started, 0, "error"); aerr != nil {
			fmt.Fprintf(d.out(), "warning: recording failed %s run: %v\n", kind, aerr)
		}
		return make(Inserted), err
	}

	for table, n := range ins {
		d.Metrics.RowsInserted(table, n)
	}
	return ins, nil
}

func (d *Driver) audit(ctx context.Context, s sink.Sink, kind, target string, started time.Time, rows int, status string) error {
	_, err := s.Insert(ctx, schema.IngestRuns, []*metatable.Record{metatable.RecordOf(
		"run_uuid", d.runID(),
		"kind", kind,
		"target", target,
		"started_at", started.UTC(),
		"finished_at", d.now().UTC(),
		"rows_inserted", rows,
		"status", status,
	)})
	if err != nil {
		return fmt.Errorf("recording ingest run: %w", err)
	}
	return nil
}

// insertNew inserts the candidates table does not hold yet, compared on
// keys, and adds the count to ins.
func (d *Driver) insertNew(ctx context.Context, tx sink.Sink, table schema.TableID, keys []string, candidates []*metatable.Record, ins Inserted) error {
	added, err := merge.EntryUpdate(ctx, tx, table, keys, candidates)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		fmt.Fprintf(d.out(), "  %-16s up to date\n", table)
		return nil
	}
	merge.FormatForDB(added, schema.AllKinds())
	n, err := tx.Insert(ctx, table, added)
	if err != nil {
		return err
	}
	ins[table] += n
	fmt.Fprintf(d.out(), "  %-16s %d new\n", table, n)
	return nil
}

// fetchFormatted returns every row of table normalized with FormatForDB,
// ready to serve as a stamping lookup.
func fetchFormatted(ctx context.Context, s sink.Sink, table schema.TableID) ([]*metatable.Record, error) {
	rows, err := s.Fetch(ctx, table, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", table, err)
	}
	return merge.FormatForDB(rows, schema.AllKinds()), nil
}

// loadTable loads a tab-delimited file and applies the section's renames.
func loadTable(path string, section types.KeySection) (*metatable.Table, error) {
	if path == "" {
		return nil, fmt.Errorf("table path not configured: %w", metatable.ErrNotFound)
	}
	t, err := metatable.Load(path)
	if err != nil {
		return nil, err
	}
	m := section.Mapping()
	if err := t.Rename(m.Source, m.Target); err != nil {
		return nil, fmt.Errorf("renaming keys of %s: %w", path, err)
	}
	return t, nil
}

// distinct returns the distinct key tuples of t as records.
func distinct(t *metatable.Table, keys []string) ([]*metatable.Record, error) {
	u, err := t.Distinct(keys)
	if err != nil {
		return nil, err
	}
	return u.Records, nil
}

// keysFor returns section, or when it is empty, one identity pair per
// column of table, skipping the names in skip.
func keysFor(section types.KeySection, table schema.TableID, skip ...string) types.KeySection {
	if len(section) > 0 {
		return section
	}
	t, err := schema.Lookup(table)
	if err != nil {
		return nil
	}
	var out types.KeySection
	for _, c := range t.ColumnNames() {
		if !slices.Contains(skip, c) {
			out = append(out, types.KeyPair{DB: c})
		}
	}
	return out
}

// stringify replaces every value of every record with its string form.
func stringify(records []*metatable.Record) {
	for _, r := range records {
		for _, k := range r.Keys() {
			r.Set(k, metatable.Str(r.Value(k)))
		}
	}
}
