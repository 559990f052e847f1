// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge finds the candidate rows a database table does not yet hold
// and back-fills foreign keys by matching natural keys against lookup rows.
//
// Comparisons run on string forms of the values so that a freshly parsed
// metadata table and a database round trip agree on what is equal.
package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/dbnascent/internal/metatable"
	"github.com/pdiddy/dbnascent/internal/schema"
	"github.com/pdiddy/dbnascent/internal/sink"
)

// ErrAmbiguous is returned by strict stamping when more than one lookup row
// matches a record.
var ErrAmbiguous = errors.New("ambiguous lookup match")

// normalized returns copies of records with the values at keys replaced by
// their string form. Keys a record lacks are left absent.
func normalized(records []*metatable.Record, keys []string) []*metatable.Record {
	out := make([]*metatable.Record, len(records))
	for i, r := range records {
		c := r.Clone()
		for _, k := range keys {
			if v, ok := c.Get(k); ok {
				c.Set(k, metatable.Str(v))
			}
		}
		out[i] = c
	}
	return out
}

// Diff returns the candidates that have no exact match in existing. Both
// sides are compared on copies whose values at keys are coerced to strings;
// membership is decided on the whole record, not only on keys. The
// returned records are the normalized copies, in candidate order.
func Diff(candidates, existing []*metatable.Record, keys []string) []*metatable.Record {
	seen := make(map[string]bool, len(existing))
	for _, r := range normalized(existing, keys) {
		seen[r.Signature()] = true
	}

	var out []*metatable.Record
	for _, c := range normalized(candidates, keys) {
		if !seen[c.Signature()] {
			out = append(out, c)
		}
	}
	return out
}

// FormatForDB normalizes records in place by column kind: string columns
// turn "None" and "NULL" into "", bool columns become true only for "1" or
// "True", and numeric or date columns turn "None" and "" into null. Fields
// without a kind are left alone.
func FormatForDB(records []*metatable.Record, kinds map[string]schema.Kind) []*metatable.Record {
	for _, r := range records {
		for _, k := range r.Keys() {
			kind, ok := kinds[k]
			if !ok {
				continue
			}
			s := metatable.Str(r.Value(k))
			switch {
			case kind == schema.KindString:
				if s == "None" || s == "NULL" {
					r.Set(k, "")
				}
			case kind == schema.KindBool:
				r.Set(k, s == "1" || s == "True")
			case kind.IsNumeric():
				if s == "None" || s == "" {
					r.Set(k, nil)
				}
			}
		}
	}
	return records
}

// EntryUpdate returns the candidates table does not hold yet. The
// projection of keys is fetched from s, both sides are normalized with
// FormatForDB, and the result is their Diff. Candidates are not modified.
func EntryUpdate(ctx context.Context, s sink.Sink, table schema.TableID, keys []string, candidates []*metatable.Record) ([]*metatable.Record, error) {
	existing, err := s.Fetch(ctx, table, keys, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", table, err)
	}

	kinds := schema.AllKinds()
	FormatForDB(existing, kinds)

	copies := make([]*metatable.Record, len(candidates))
	for i, c := range candidates {
		copies[i] = c.Clone()
	}
	FormatForDB(copies, kinds)

	return Diff(copies, existing, keys), nil
}
