// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"context"
	"sync"

	"github.com/pdiddy/dbnascent/internal/metatable"
	"github.com/pdiddy/dbnascent/internal/schema"
)

// Memory is an in-process Sink. Rows get sequential ids per table and are
// stored with the values bound the way the SQL store binds them.
type Memory struct {
	mu     sync.Mutex
	tables map[schema.TableID][]*metatable.Record
	nextID map[schema.TableID]int64
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[schema.TableID][]*metatable.Record),
		nextID: make(map[schema.TableID]int64),
	}
}

// Rows returns a copy of every row of table, id included.
func (m *Memory) Rows(table schema.TableID) []*metatable.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*metatable.Record, len(m.tables[table]))
	for i, r := range m.tables[table] {
		out[i] = r.Clone()
	}
	return out
}

// CreateSchema implements Migrator. Memory tables exist implicitly.
func (m *Memory) CreateSchema(context.Context) error { return nil }

// DropTables implements Migrator by discarding every row of ids and
// restarting their id sequences.
func (m *Memory) DropTables(_ context.Context, ids ...schema.TableID) error {
	for _, id := range ids {
		if _, err := schema.Lookup(id); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.tables, id)
		delete(m.nextID, id)
	}
	return nil
}

func matches(row *metatable.Record, filter *metatable.Record) bool {
	if filter == nil {
		return true
	}
	for _, k := range filter.Keys() {
		if row.String(k) != filter.String(k) {
			return false
		}
	}
	return true
}

// Fetch implements Sink.
func (m *Memory) Fetch(_ context.Context, table schema.TableID, keys []string, filter *metatable.Record) ([]*metatable.Record, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return nil, err
	}
	names, err := columns(t, keys)
	if err != nil {
		return nil, err
	}
	bound, err := bindRecord(t, filter, true)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*metatable.Record
	for _, row := range m.tables[table] {
		if !matches(row, bound) {
			continue
		}
		rec := metatable.NewRecord()
		for _, n := range names {
			rec.Set(n, row.Value(n))
		}
		out = append(out, rec)
	}
	return out, nil
}

// Insert implements Sink.
func (m *Memory) Insert(_ context.Context, table schema.TableID, records []*metatable.Record) (int, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return 0, err
	}
	rows := make([]*metatable.Record, 0, len(records))
	for _, rec := range records {
		bound, err := bindRecord(t, rec, false)
		if err != nil {
			return 0, err
		}
		rows = append(rows, bound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bound := range rows {
		m.nextID[table]++
		row := metatable.NewRecord()
		row.Set(schema.IDColumn, m.nextID[table])
		for _, n := range t.ColumnNames() {
			row.Set(n, bound.Value(n))
		}
		m.tables[table] = append(m.tables[table], row)
	}
	return len(rows), nil
}

// Update implements Sink.
func (m *Memory) Update(_ context.Context, table schema.TableID, set, filter *metatable.Record) (int64, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return 0, err
	}
	boundSet, err := bindRecord(t, set, false)
	if err != nil {
		return 0, err
	}
	boundFilter, err := bindRecord(t, filter, true)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, row := range m.tables[table] {
		if !matches(row, boundFilter) {
			continue
		}
		row.Update(boundSet)
		n++
	}
	return n, nil
}

// RunInTx runs fn and restores every table if it fails.
func (m *Memory) RunInTx(_ context.Context, fn func(Sink) error) error {
	m.mu.Lock()
	snapshot := make(map[schema.TableID][]*metatable.Record, len(m.tables))
	for id, rows := range m.tables {
		cp := make([]*metatable.Record, len(rows))
		for i, r := range rows {
			cp[i] = r.Clone()
		}
		snapshot[id] = cp
	}
	ids := make(map[schema.TableID]int64, len(m.nextID))
	for id, n := range m.nextID {
		ids[id] = n
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.tables, m.nextID = snapshot, ids
		m.mu.Unlock()
		return err
	}
	return nil
}

// bindRecord applies the SQL store's value binding to every field of rec.
func bindRecord(t *schema.Table, rec *metatable.Record, allowID bool) (*metatable.Record, error) {
	if rec == nil {
		return nil, nil
	}
	out := metatable.NewRecord()
	for _, k := range rec.Keys() {
		c, ok := t.Column(k)
		if !ok || (k == schema.IDColumn && !allowID) {
			return nil, &ColumnError{Table: t.ID, Column: k}
		}
		v, err := bindValue(c, rec.Value(k))
		if err != nil {
			return nil, err
		}
		out.Set(k, v)
	}
	return out, nil
}
