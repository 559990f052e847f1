// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bidir attaches bidirectional-transcript call summaries (Tfit and
// dREG) to sample records.
package bidir

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/pdiddy/dbnascent/internal/merge"
	"github.com/pdiddy/dbnascent/internal/metatable"
)

// Bidirectional callers.
const (
	Tfit = "tfit"
	DREG = "dreg"
)

// SummaryKeys returns the per-sample summary fields of caller, in the
// order they are stamped.
func SummaryKeys(caller string) []string {
	p := "num_" + caller + "_bidir"
	return []string{p, p + "_promoter", p + "_exonic", p + "_intronic", p + "_intergenic", GCKey(caller)}
}

// GCKey is the field holding the GC proportion of caller's calls.
func GCKey(caller string) string { return caller + "_bidir_gc_prop" }

// MergeKey is the field flagging inclusion in caller's master merge.
func MergeKey(caller string) string { return caller + "_master_merge_incl" }

// MergeListIDs reads master merge list files and returns the paper ids
// they include, first seen first. Each line is a path whose fourth
// slash-separated component is the paper id.
func MergeListIDs(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no master merge lists configured: %w", metatable.ErrNotFound)
	}

	var ids []string
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("merge list %s: %w", path, metatable.ErrNotFound)
		}
		sc := bufio.NewScanner(f)
		n := 0
		for sc.Scan() {
			n++
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			parts := strings.Split(line, "/")
			if len(parts) < 4 {
				f.Close()
				return nil, fmt.Errorf("merge list %s line %d: %w", path, n, metatable.ErrFormat)
			}
			if !slices.Contains(ids, parts[3]) {
				ids = append(ids, parts[3])
			}
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading merge list %s: %w", path, err)
		}
	}
	return ids, nil
}

// AddSummary stamps caller's summary statistics from the stats table at
// path onto every sample of t, matching on sample_name. Samples without a
// summary row, or every sample when the file is absent, get nulls. The GC
// proportion is rewritten in float form, the master merge flag is set from
// mergeIDs by paper_name, and the fields in dbKeys are converted to their
// string form.
func AddSummary(t *metatable.Table, path, caller string, mergeIDs, dbKeys []string) error {
	if caller != Tfit && caller != DREG {
		return fmt.Errorf("unknown bidirectional caller %q", caller)
	}

	var lookup []*metatable.Record
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		summary, err := metatable.Load(path)
		if err != nil {
			return fmt.Errorf("loading %s summary: %w", caller, err)
		}
		lookup = summary.Records
	}

	stamp := merge.Stamp{
		Compare:   []string{"sample_name"},
		Store:     SummaryKeys(caller),
		AllowNull: true,
	}
	gcKey := GCKey(caller)
	for _, rec := range t.Records {
		if _, err := stamp.Record(rec, lookup); err != nil {
			return err
		}

		if gc := metatable.Str(rec.Value(gcKey)); gc != "" && gc != "None" {
			f, err := strconv.ParseFloat(strings.TrimSpace(gc), 64)
			if err != nil {
				return fmt.Errorf("%s %s for %s: %q: %w", caller, gcKey, rec.String("sample_name"), gc, metatable.ErrFormat)
			}
			rec.Set(gcKey, metatable.Str(f))
		}

		if slices.Contains(mergeIDs, rec.String("paper_name")) {
			rec.Set(MergeKey(caller), "1")
		} else {
			rec.Set(MergeKey(caller), "0")
		}

		for _, k := range dbKeys {
			if v, ok := rec.Get(k); ok {
				rec.Set(k, metatable.Str(v))
			}
		}
	}
	return nil
}
