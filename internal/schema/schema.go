// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema describes the DBNascent tables: their columns, column
// kinds, and foreign-key references. Tables are identified by TableID and
// resolved through a static registry.
package schema

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTable is returned when a table name is not in the registry.
var ErrUnknownTable = errors.New("unknown table")

// Kind classifies a column for value normalization and DDL.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindBigInt
	KindFloat
	KindDate
	KindTimestamp
)

// IsNumeric reports whether values of the kind are numbers or dates, which
// normalize blanks to null.
func (k Kind) IsNumeric() bool {
	return k != KindString && k != KindBool
}

// Column is one table column.
type Column struct {
	Name       string
	Kind       Kind
	Size       int     // string length limit
	References TableID // foreign key target, "" for none
}

// TableID names a DBNascent table.
type TableID string

const (
	Organisms       TableID = "organisms"
	SearchEquiv     TableID = "searchEquiv"
	Tissues         TableID = "tissues"
	Papers          TableID = "papers"
	Samples         TableID = "samples"
	SampleEquiv     TableID = "sampleEquiv"
	Genetics        TableID = "genetics"
	Bidirs          TableID = "bidirs"
	Conditions      TableID = "conditions"
	ConditionLink   TableID = "conditionLink"
	NascentflowRuns TableID = "nascentflowRuns"
	BidirflowRuns   TableID = "bidirflowRuns"
	NascentflowLink TableID = "nascentflowLink"
	BidirflowLink   TableID = "bidirflowLink"
	LinkIDs         TableID = "linkIDs"
	IngestRuns      TableID = "ingestRuns"
)

// Table describes one table. Every table has an auto-increment integer id
// primary key that is not listed in Columns.
type Table struct {
	ID      TableID
	Columns []Column
}

// IDColumn is the name of every table's primary key.
const IDColumn = "id"

// ColumnNames returns the data column names, excluding id.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// AllColumnNames returns id followed by the data column names.
func (t *Table) AllColumnNames() []string {
	return append([]string{IDColumn}, t.ColumnNames()...)
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	if name == IDColumn {
		return Column{Name: IDColumn, Kind: KindInt}, true
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Kinds maps every column, id included, to its kind.
func (t *Table) Kinds() map[string]Kind {
	out := map[string]Kind{IDColumn: KindInt}
	for _, c := range t.Columns {
		out[c.Name] = c.Kind
	}
	return out
}

// References lists the tables this table's foreign keys point at.
func (t *Table) References() []TableID {
	var out []TableID
	for _, c := range t.Columns {
		if c.References != "" {
			out = append(out, c.References)
		}
	}
	return out
}

// Lookup returns the table registered under id.
func Lookup(id TableID) (*Table, error) {
	t, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrUnknownTable)
	}
	return t, nil
}

// Parse resolves a table name.
func Parse(name string) (TableID, error) {
	id := TableID(name)
	if _, ok := registry[id]; !ok {
		return "", fmt.Errorf("%q: %w", name, ErrUnknownTable)
	}
	return id, nil
}

// IDs returns every registered table id, sorted by name.
func IDs() []TableID {
	out := make([]TableID, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllKinds merges the column kinds of every table. Column names shared
// between tables carry the same kind throughout the schema.
func AllKinds() map[string]Kind {
	out := make(map[string]Kind)
	for _, id := range IDs() {
		for name, k := range registry[id].Kinds() {
			if _, ok := out[name]; !ok {
				out[name] = k
			}
		}
	}
	return out
}
