// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dbnascent/internal/metatable"
	"github.com/pdiddy/dbnascent/internal/schema"
	"github.com/pdiddy/dbnascent/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenConfig(types.FileLocations{Driver: types.DriverSQLite, Database: path}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateSchema(context.Background()))
	return s
}

// sinks returns every TxSink implementation under test.
func sinks(t *testing.T) map[string]TxSink {
	t.Helper()
	return map[string]TxSink{
		"sqlite": openTestStore(t),
		"memory": NewMemory(),
	}
}

func TestInsertAndFetch(t *testing.T) {
	ctx := context.Background()
	for name, s := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			n, err := s.Insert(ctx, schema.Organisms, []*metatable.Record{
				metatable.RecordOf("organism", "human", "genome_build", "hg38", "genome_bases", "3209286105"),
				metatable.RecordOf("organism", "mouse", "genome_build", "mm10", "genome_bases", nil),
			})
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			rows, err := s.Fetch(ctx, schema.Organisms, nil, nil)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, []string{"id", "organism", "genome_build", "genome_bases"}, rows[0].Keys())
			assert.Equal(t, "1", rows[0].String("id"))
			assert.Equal(t, "3209286105", rows[0].String("genome_bases"))
			assert.Nil(t, rows[1].Value("genome_bases"))

			rows, err = s.Fetch(ctx, schema.Organisms, []string{"id"}, metatable.RecordOf("organism", "mouse"))
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "2", rows[0].String("id"))
		})
	}
}

func TestBoolAndFloatRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Insert(ctx, schema.Tissues, []*metatable.Record{
				metatable.RecordOf("tissue", "blood", "cell_origin_type", "", "tissue_description", "x", "disease", true),
			})
			require.NoError(t, err)
			_, err = s.Insert(ctx, schema.Bidirs, []*metatable.Record{
				metatable.RecordOf("num_tfit_bidir", "100", "tfit_bidir_gc_prop", "0.12345", "tfit_master_merge_incl", "1"),
			})
			require.NoError(t, err)

			rows, err := s.Fetch(ctx, schema.Tissues, []string{"disease"}, nil)
			require.NoError(t, err)
			assert.Equal(t, "True", rows[0].String("disease"))

			rows, err = s.Fetch(ctx, schema.Bidirs, []string{"num_tfit_bidir", "tfit_bidir_gc_prop", "tfit_master_merge_incl"}, nil)
			require.NoError(t, err)
			assert.Equal(t, "100", rows[0].String("num_tfit_bidir"))
			assert.Equal(t, "0.12345", rows[0].String("tfit_bidir_gc_prop"))
			assert.Equal(t, "True", rows[0].String("tfit_master_merge_incl"))
		})
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	for name, s := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Insert(ctx, schema.Papers, []*metatable.Record{
				metatable.RecordOf("paper_name", "Smith2020", "year", "2020"),
				metatable.RecordOf("paper_name", "Jones2019", "year", "2019"),
			})
			require.NoError(t, err)

			n, err := s.Update(ctx, schema.Papers,
				metatable.RecordOf("paper_qc_score", 2.5),
				metatable.RecordOf("paper_name", "Smith2020"))
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			rows, err := s.Fetch(ctx, schema.Papers, []string{"paper_name", "paper_qc_score"}, nil)
			require.NoError(t, err)
			assert.Equal(t, "2.5", rows[0].String("paper_qc_score"))
			assert.Nil(t, rows[1].Value("paper_qc_score"))
		})
	}
}

func TestRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			err := s.RunInTx(ctx, func(tx Sink) error {
				if _, err := tx.Insert(ctx, schema.SearchEquiv, []*metatable.Record{
					metatable.RecordOf("search_term", "hela", "db_term", "HeLa", "search_field", "cell_type"),
				}); err != nil {
					return err
				}
				return boom
			})
			assert.ErrorIs(t, err, boom)

			rows, err := s.Fetch(ctx, schema.SearchEquiv, nil, nil)
			require.NoError(t, err)
			assert.Empty(t, rows)

			err = s.RunInTx(ctx, func(tx Sink) error {
				_, err := tx.Insert(ctx, schema.SearchEquiv, []*metatable.Record{
					metatable.RecordOf("search_term", "hela", "db_term", "HeLa", "search_field", "cell_type"),
				})
				return err
			})
			require.NoError(t, err)
			rows, err = s.Fetch(ctx, schema.SearchEquiv, nil, nil)
			require.NoError(t, err)
			assert.Len(t, rows, 1)
		})
	}
}

func TestUnknownTableAndColumn(t *testing.T) {
	ctx := context.Background()
	for name, s := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Fetch(ctx, "archive", nil, nil)
			assert.ErrorIs(t, err, schema.ErrUnknownTable)

			_, err = s.Fetch(ctx, schema.Samples, []string{"organism"}, nil)
			assert.ErrorIs(t, err, ErrUnknownColumn)

			_, err = s.Insert(ctx, schema.Samples, []*metatable.Record{metatable.RecordOf("srr", "SRR1")})
			assert.ErrorIs(t, err, ErrUnknownColumn)
		})
	}
}

func TestDSN(t *testing.T) {
	dir := t.TempDir()
	cred := filepath.Join(dir, "cred.txt")
	require.NoError(t, os.WriteFile(cred, []byte("lab\tpw\n"), 0o600))

	tests := []struct {
		name  string
		files types.FileLocations
		keys  map[string]string
		want  string
	}{
		{
			name:  "sqlite adds pragmas",
			files: types.FileLocations{Driver: "sqlite3", Database: "db.sqlite"},
			want:  "db.sqlite?_journal_mode=WAL&_foreign_keys=on",
		},
		{
			name:  "mysql from credentials file",
			files: types.FileLocations{Driver: "mysql", Database: "db.example.org:3306/dbnascent", Credentials: cred},
			want:  "lab:pw@tcp(db.example.org:3306)/dbnascent?parseTime=true",
		},
		{
			name:  "mysql from secrets",
			files: types.FileLocations{Driver: "mysql", Database: "localhost:3306/dbnascent"},
			keys:  map[string]string{"db-user": "u", "db-password": "p"},
			want:  "u:p@tcp(localhost:3306)/dbnascent?parseTime=true",
		},
		{
			name:  "postgres passes through",
			files: types.FileLocations{Driver: "pgx", Database: "postgres://u:p@localhost/dbnascent"},
			want:  "postgres://u:p@localhost/dbnascent",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DSN(tc.files, tc.keys)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := DSN(types.FileLocations{Driver: "mysql", Database: "nohost"}, nil)
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	s := &Store{dialect: schema.Postgres}
	assert.Equal(t, "SELECT a FROM t WHERE a = $1 AND b = $2", s.rebind("SELECT a FROM t WHERE a = ? AND b = ?"))

	s.dialect = schema.MySQL
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}

func TestDropTables(t *testing.T) {
	ctx := context.Background()
	for name, s := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			mig, ok := s.(Migrator)
			require.True(t, ok)

			_, err := s.Insert(ctx, schema.SearchEquiv, []*metatable.Record{
				metatable.RecordOf("search_term", "hela", "db_term", "HeLa", "search_field", "cell_type"),
			})
			require.NoError(t, err)

			require.NoError(t, mig.DropTables(ctx, schema.SearchEquiv))
			require.NoError(t, mig.CreateSchema(ctx))

			rows, err := s.Fetch(ctx, schema.SearchEquiv, nil, nil)
			require.NoError(t, err)
			assert.Empty(t, rows)

			assert.ErrorIs(t, mig.DropTables(ctx, "archive"), schema.ErrUnknownTable)
		})
	}
}
