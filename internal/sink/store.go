// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/dbnascent/internal/metatable"
	"github.com/pdiddy/dbnascent/internal/schema"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Store is a Sink backed by a SQL database.
type Store struct {
	db      *sql.DB
	q       querier
	dialect schema.Dialect
}

// Open connects to the database. driver is sqlite3, mysql, or pgx.
func Open(driver, dsn string) (*Store, error) {
	d, err := schema.ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(string(d), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	retries := defaultConnectRetries
	if d == schema.SQLite {
		// sqlite allows a single writer.
		db.SetMaxOpenConns(1)
		retries = 0
	}
	if err := pingWithRetry(context.Background(), db, retries); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &Store{db: db, q: db, dialect: d}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() schema.Dialect { return s.dialect }

// CreateSchema creates every table that does not already exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	statements, err := schema.CreateStatements(s.dialect)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// DropTables drops the given tables if they exist.
func (s *Store) DropTables(ctx context.Context, ids ...schema.TableID) error {
	for _, id := range ids {
		if _, err := schema.Lookup(id); err != nil {
			return err
		}
		if _, err := s.q.ExecContext(ctx, "DROP TABLE IF EXISTS "+string(id)); err != nil {
			return fmt.Errorf("dropping %s: %w", id, err)
		}
	}
	return nil
}

// RunInTx runs fn against a transaction-scoped Store. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) RunInTx(ctx context.Context, fn func(Sink) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if s.dialect != schema.Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// where builds a conjunction of equality tests from filter. A null filter
// value matches NULL.
func where(t *schema.Table, filter *metatable.Record) (string, []any, error) {
	if filter == nil || filter.Len() == 0 {
		return "", nil, nil
	}
	var conds []string
	var args []any
	for _, k := range filter.Keys() {
		c, ok := t.Column(k)
		if !ok {
			return "", nil, &ColumnError{Table: t.ID, Column: k}
		}
		v, err := bindValue(c, filter.Value(k))
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			conds = append(conds, k+" IS NULL")
			continue
		}
		conds = append(conds, k+" = ?")
		args = append(args, v)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// Fetch implements Sink.
func (s *Store) Fetch(ctx context.Context, table schema.TableID, keys []string, filter *metatable.Record) ([]*metatable.Record, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return nil, err
	}
	names, err := columns(t, keys)
	if err != nil {
		return nil, err
	}
	cond, args, err := where(t, filter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(names, ", "), table, cond, schema.IDColumn)
	rows, err := s.q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	cols := make([]schema.Column, len(names))
	for i, n := range names {
		cols[i], _ = t.Column(n)
	}

	var out []*metatable.Record
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		rec := metatable.NewRecord()
		for i, n := range names {
			rec.Set(n, scanValue(cols[i], vals[i]))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	return out, nil
}

// Insert implements Sink. Records with the same field set share one
// prepared statement.
func (s *Store) Insert(ctx context.Context, table schema.TableID, records []*metatable.Record) (int, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return 0, err
	}

	stmts := make(map[string]*sql.Stmt)
	defer func() {
		for _, st := range stmts {
			st.Close()
		}
	}()

	inserted := 0
	for _, rec := range records {
		keys := rec.Keys()
		cols := make([]schema.Column, len(keys))
		for i, k := range keys {
			c, ok := t.Column(k)
			if !ok || k == schema.IDColumn {
				return inserted, &ColumnError{Table: table, Column: k}
			}
			cols[i] = c
		}

		sig := strings.Join(keys, ",")
		st, ok := stmts[sig]
		if !ok {
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
			query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(keys, ", "), placeholders)
			st, err = s.q.PrepareContext(ctx, s.rebind(query))
			if err != nil {
				return inserted, fmt.Errorf("preparing insert into %s: %w", table, err)
			}
			stmts[sig] = st
		}

		args := make([]any, len(keys))
		for i, k := range keys {
			v, err := bindValue(cols[i], rec.Value(k))
			if err != nil {
				return inserted, fmt.Errorf("inserting into %s: %w", table, err)
			}
			args[i] = v
		}
		if _, err := st.ExecContext(ctx, args...); err != nil {
			return inserted, fmt.Errorf("inserting into %s: %w", table, err)
		}
		inserted++
	}
	return inserted, nil
}

// Update implements Sink.
func (s *Store) Update(ctx context.Context, table schema.TableID, set, filter *metatable.Record) (int64, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return 0, err
	}
	if set == nil || set.Len() == 0 {
		return 0, nil
	}

	var assigns []string
	var args []any
	for _, k := range set.Keys() {
		c, ok := t.Column(k)
		if !ok || k == schema.IDColumn {
			return 0, &ColumnError{Table: table, Column: k}
		}
		v, err := bindValue(c, set.Value(k))
		if err != nil {
			return 0, err
		}
		assigns = append(assigns, k+" = ?")
		args = append(args, v)
	}
	cond, condArgs, err := where(t, filter)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(assigns, ", "), cond)
	res, err := s.q.ExecContext(ctx, s.rebind(query), append(args, condArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("updating %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("updating %s: %w", table, err)
	}
	return n, nil
}
