// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"fmt"

	"github.com/pdiddy/dbnascent/internal/merge"
	"github.com/pdiddy/dbnascent/internal/schema"
	"github.com/pdiddy/dbnascent/internal/sink"
	"github.com/pdiddy/dbnascent/pkg/types"
)

// GlobalResult summarizes a reference table load.
type GlobalResult struct {
	Inserted

	RunID string
}

// Global creates any missing tables and adds new rows from the organism
// and tissue reference tables.
func (d *Driver) Global(ctx context.Context) (GlobalResult, error) {
	res := GlobalResult{RunID: d.runID()}

	if mig, ok := d.Sink.(sink.Migrator); ok {
		if err := mig.CreateSchema(ctx); err != nil {
			return res, fmt.Errorf("creating schema: %w", err)
		}
	}

	files := d.Config.Files
	sources := []struct {
		table   schema.TableID
		path    string
		section types.KeySection
	}{
		{schema.Organisms, files.OrganismTable, keysFor(d.Config.Keys.Organisms, schema.Organisms)},
		{schema.Tissues, files.TissueTable, keysFor(d.Config.Keys.Tissues, schema.Tissues)},
	}

	fmt.Fprintf(d.out(), "global tables\n")
	ins, err := d.run(ctx, KindGlobal, "organisms,tissues", func(tx sink.Sink, ins Inserted) error {
		for _, src := range sources {
			t, err := loadTable(src.path, src.section)
			if err != nil {
				return fmt.Errorf("%s: %w", src.table, err)
			}
			merge.FormatForDB(t.Records, schema.AllKinds())
			keys := src.section.DB()
			rows, err := distinct(t, keys)
			if err != nil {
				return fmt.Errorf("%s: %w", src.table, err)
			}
			if err := d.insertNew(ctx, tx, src.table, keys, rows, ins); err != nil {
				return err
			}
		}
		return nil
	})
	res.Inserted = ins
	if err != nil {
		return res, fmt.Errorf("global: %w", err)
	}

	fmt.Fprintf(d.out(), "global tables: %d rows inserted\n", res.Total())
	return res, nil
}
