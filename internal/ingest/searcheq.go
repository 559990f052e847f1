// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/pdiddy/dbnascent/internal/metatable"
	"github.com/pdiddy/dbnascent/internal/schema"
	"github.com/pdiddy/dbnascent/internal/sink"
)

// searchTables are scanned for search terms, in order.
var searchTables = []schema.TableID{
	schema.Organisms,
	schema.Tissues,
	schema.Papers,
	schema.Samples,
	schema.SampleEquiv,
	schema.Genetics,
	schema.Conditions,
}

// SearchFields are the columns whose values become search terms.
var SearchFields = []string{
	"organism", "genome_build",
	"tissue", "cell_origin_type",
	"protocol", "library", "spikein", "paper_name", "year", "first_author", "last_author",
	"srr", "sample_name",
	"sample_type", "cell_type", "strain", "genotype", "construct",
	"condition_type", "treatment", "duration_unit",
	"replicate", "single_paired", "control_experimental",
	"sample_qc_score", "sample_nro_score",
}

// SearchEquivResult summarizes a search table rebuild.
type SearchEquivResult struct {
	Inserted

	RunID string

	// Terms is the number of distinct search-term rows written.
	Terms int
}

// SearchEquiv rebuilds the searchEquiv table. Every non-empty value of a
// search field across the searchable tables maps to itself; the manually
// curated table adds synonyms. The distinct rows are written to the
// configured search table file and inserted.
func (d *Driver) SearchEquiv(ctx context.Context) (SearchEquivResult, error) {
	res := SearchEquivResult{RunID: d.runID()}
	files := d.Config.Files
	section := keysFor(d.Config.Keys.SearchEquiv, schema.SearchEquiv)
	keys := section.DB()

	fmt.Fprintf(d.out(), "search equivalences\n")
	ins, err := d.run(ctx, KindSearchEquiv, string(schema.SearchEquiv), func(tx sink.Sink, ins Inserted) error {
		if mig, ok := tx.(sink.Migrator); ok {
			if err := mig.DropTables(ctx, schema.SearchEquiv); err != nil {
				return err
			}
			if err := mig.CreateSchema(ctx); err != nil {
				return err
			}
		}

		terms := metatable.New(nil)
		for _, table := range searchTables {
			rows, err := tx.Fetch(ctx, table, nil, nil)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", table, err)
			}
			terms.Append(searchTerms(rows)...)
		}

		if files.SearchEqManual != "" {
			manual, err := loadTable(files.SearchEqManual, section)
			if err != nil {
				return fmt.Errorf("manual search terms: %w", err)
			}
			terms.Append(manual.Records...)
		} else {
			fmt.Fprintf(d.out(), "warning: no manual search term table configured\n")
		}

		unique, err := distinct(terms, keys)
		if err != nil {
			return err
		}
		res.Terms = len(unique)

		if files.SearchEqTable != "" {
			if err := writeTSV(files.SearchEqTable, keys, unique); err != nil {
				return err
			}
			fmt.Fprintf(d.out(), "  wrote %d terms to %s\n", len(unique), files.SearchEqTable)
		}
		return d.insertNew(ctx, tx, schema.SearchEquiv, keys, unique, ins)
	})
	res.Inserted = ins
	if err != nil {
		return res, fmt.Errorf("search equivalences: %w", err)
	}

	fmt.Fprintf(d.out(), "search equivalences: %d terms, %d rows inserted\n", res.Terms, res.Total())
	return res, nil
}

// searchTerms maps every non-empty search field value of rows to itself.
func searchTerms(rows []*metatable.Record) []*metatable.Record {
	var out []*metatable.Record
	for _, r := range rows {
		for _, f := range SearchFields {
			v, ok := r.Get(f)
			if !ok || !truthy(v) {
				continue
			}
			term := metatable.Str(v)
			out = append(out, metatable.RecordOf(
				"search_term", term,
				"db_term", term,
				"search_field", f,
			))
		}
	}
	return out
}

// truthy reports whether v is a present value: not null, empty, zero, or
// false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	}
	s := metatable.Str(v)
	return s != "0" && s != "0.0"
}

func writeTSV(path string, keys []string, rows []*metatable.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write(keys); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	for _, r := range rows {
		line := make([]string, len(keys))
		for i, k := range keys {
			line[i] = r.String(k)
		}
		if err := w.Write(line); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
