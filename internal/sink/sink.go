// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink persists records into the DBNascent database. Store is the
// SQL implementation over sqlite3, mysql, or postgres; Memory is an
// in-process implementation with the same semantics.
package sink

import (
	"context"
	"errors"

	"github.com/pdiddy/dbnascent/internal/metatable"
	"github.com/pdiddy/dbnascent/internal/schema"
)

// ErrUnknownColumn is returned when a record or filter names a column the
// table does not have.
var ErrUnknownColumn = errors.New("unknown column")

// Sink reads and writes table rows.
type Sink interface {
	// Fetch returns the values of keys for every row matching filter. Nil
	// keys selects every column, id first. A nil filter matches all rows.
	Fetch(ctx context.Context, table schema.TableID, keys []string, filter *metatable.Record) ([]*metatable.Record, error)

	// Insert adds records as new rows and returns the number inserted.
	Insert(ctx context.Context, table schema.TableID, records []*metatable.Record) (int, error)

	// Update sets the fields of set on every row matching filter and returns
	// the number of rows changed.
	Update(ctx context.Context, table schema.TableID, set, filter *metatable.Record) (int64, error)
}

// TxSink is a Sink that can run a unit of work atomically.
type TxSink interface {
	Sink
	RunInTx(ctx context.Context, fn func(Sink) error) error
}

// Migrator is implemented by sinks that create and drop their own tables.
type Migrator interface {
	CreateSchema(ctx context.Context) error
	DropTables(ctx context.Context, ids ...schema.TableID) error
}

// columns validates names against the table and returns them, or every
// column when names is nil.
func columns(t *schema.Table, names []string) ([]string, error) {
	if names == nil {
		return t.AllColumnNames(), nil
	}
	for _, n := range names {
		if _, ok := t.Column(n); !ok {
			return nil, &ColumnError{Table: t.ID, Column: n}
		}
	}
	return names, nil
}

// ColumnError names a column missing from a table.
type ColumnError struct {
	Table  schema.TableID
	Column string
}

func (e *ColumnError) Error() string {
	return "table " + string(e.Table) + " has no column " + e.Column
}

func (e *ColumnError) Unwrap() error { return ErrUnknownColumn }
