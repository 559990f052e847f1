// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Dialect selects the SQL flavour for DDL and placeholders.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "pgx"
)

// ParseDialect maps a database driver name to its dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(driver) {
	case SQLite, MySQL, Postgres:
		return Dialect(driver), nil
	case "postgres":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

func (d Dialect) idColumn() string {
	switch d {
	case MySQL:
		return "id INT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	case Postgres:
		return "id SERIAL PRIMARY KEY"
	default:
		return "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

func (d Dialect) columnType(c Column) string {
	switch c.Kind {
	case KindString:
		if d == SQLite {
			return "TEXT"
		}
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	case KindBool:
		return "BOOLEAN"
	case KindInt:
		return "INTEGER"
	case KindBigInt:
		return "BIGINT"
	case KindFloat:
		switch d {
		case MySQL:
			return "FLOAT"
		case Postgres:
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case KindDate:
		return "DATE"
	case KindTimestamp:
		if d == MySQL {
			return "DATETIME"
		}
		return "TIMESTAMP"
	}
	return "TEXT"
}

// CreateStatement returns the CREATE TABLE IF NOT EXISTS statement for t.
func (t *Table) CreateStatement(d Dialect) string {
	defs := []string{d.idColumn()}
	for _, c := range t.Columns {
		defs = append(defs, c.Name+" "+d.columnType(c))
	}
	for _, c := range t.Columns {
		if c.References != "" {
			defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", c.Name, c.References, IDColumn))
		}
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.ID, strings.Join(defs, ",\n\t"))
}

// CreateStatements returns the DDL for every table, referenced tables
// first.
func CreateStatements(d Dialect) ([]string, error) {
	order, err := Order()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(order))
	for _, id := range order {
		out = append(out, registry[id].CreateStatement(d))
	}
	return out, nil
}

// Order returns every table id such that each table follows the tables its
// foreign keys reference. Ties are broken by name so the order is stable.
func Order() ([]TableID, error) {
	ids := IDs()
	index := make(map[TableID]int64, len(ids))
	g := simple.NewDirectedGraph()
	for i, id := range ids {
		index[id] = int64(i)
		g.AddNode(simple.Node(i))
	}
	for _, id := range ids {
		for _, ref := range registry[id].References() {
			from, to := index[ref], index[id]
			if from == to || g.HasEdgeFromTo(from, to) {
				continue
			}
			g.SetEdge(g.NewEdge(g.Node(from), g.Node(to)))
		}
	}

	sorted, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	})
	if err != nil {
		return nil, fmt.Errorf("ordering tables by foreign key: %w", err)
	}

	out := make([]TableID, len(sorted))
	for i, n := range sorted {
		out[i] = ids[n.ID()]
	}
	return out, nil
}
