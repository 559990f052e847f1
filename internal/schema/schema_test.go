// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tbl, err := Lookup(Samples)
	require.NoError(t, err)
	assert.Equal(t, Samples, tbl.ID)

	c, ok := tbl.Column("rcomp")
	require.True(t, ok)
	assert.Equal(t, KindBool, c.Kind)

	_, err = Lookup("archive")
	assert.True(t, errors.Is(err, ErrUnknownTable))

	_, err = Parse("DROP TABLE samples")
	assert.True(t, errors.Is(err, ErrUnknownTable))

	id, err := Parse("linkIDs")
	require.NoError(t, err)
	assert.Equal(t, LinkIDs, id)
}

func TestOrderPutsReferencedTablesFirst(t *testing.T) {
	order, err := Order()
	require.NoError(t, err)
	require.Len(t, order, len(registry))

	pos := make(map[TableID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, id := range order {
		for _, ref := range registry[id].References() {
			assert.Less(t, pos[ref], pos[id], "%s must follow %s", id, ref)
		}
	}

	again, err := Order()
	require.NoError(t, err)
	assert.Equal(t, order, again, "order is stable")
}

func TestCreateStatement(t *testing.T) {
	tbl, err := Lookup(SampleEquiv)
	require.NoError(t, err)

	tests := []struct {
		dialect  Dialect
		contains []string
	}{
		{SQLite, []string{"id INTEGER PRIMARY KEY AUTOINCREMENT", "srr TEXT", "FOREIGN KEY (sample_id) REFERENCES samples(id)"}},
		{MySQL, []string{"AUTO_INCREMENT", "srr VARCHAR(50)"}},
		{Postgres, []string{"id SERIAL PRIMARY KEY", "srr VARCHAR(50)"}},
	}
	for _, tc := range tests {
		t.Run(string(tc.dialect), func(t *testing.T) {
			stmt := tbl.CreateStatement(tc.dialect)
			assert.Contains(t, stmt, "CREATE TABLE IF NOT EXISTS sampleEquiv")
			for _, s := range tc.contains {
				assert.Contains(t, stmt, s)
			}
		})
	}
}

func TestAllKinds(t *testing.T) {
	kinds := AllKinds()
	assert.Equal(t, KindString, kinds["organism"])
	assert.Equal(t, KindBool, kinds["published"])
	assert.Equal(t, KindFloat, kinds["map_prop"])
	assert.Equal(t, KindDate, kinds["nascentflow_date"])
	assert.Equal(t, KindInt, kinds["id"])
	assert.True(t, kinds["year"].IsNumeric())
	assert.False(t, kinds["srr"].IsNumeric())
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("postgres")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	_, err = ParseDialect("oracle")
	assert.Error(t, err)
}
