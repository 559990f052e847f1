// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dbnascent/internal/metatable"
	"github.com/pdiddy/dbnascent/internal/metrics"
	"github.com/pdiddy/dbnascent/internal/schema"
	"github.com/pdiddy/dbnascent/internal/sink"
	"github.com/pdiddy/dbnascent/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func tsv(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// fixture writes reference tables and one paper under a temporary data
// root and returns a configuration pointing at them.
func fixture(t *testing.T) types.BuildConfig {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data")

	writeFile(t, filepath.Join(dir, "organisms.txt"), tsv(
		"organism\tgenome_build",
		"human\thg38",
		"mouse\tmm10",
	))
	writeFile(t, filepath.Join(dir, "tissues.txt"), tsv(
		"tissue\tcell_origin_type\torganism\tsample_type\tcell_type",
		"cervix\tcancer\thuman\tcell line\tHeLa",
		"liver\tprimary\tmouse\ttissue\thepatocyte",
	))
	writeFile(t, filepath.Join(dir, "searcheq_manual.txt"), tsv(
		"search_term\tdb_term\tsearch_field",
		"HeLa cells\tHeLa\tcell_type",
	))

	paper := filepath.Join(data, "Smith2020")
	writeFile(t, filepath.Join(paper, "metadata", "expt_metadata.txt"), tsv(
		"paper_name\torganism\tyear",
		"Smith2020\thuman\t2020",
	))
	writeFile(t, filepath.Join(paper, "metadata", "sample_metadata.txt"), tsv(
		"SRR\tsample_name\treplicate\tsingle_paired\trcomp\tsample_type\tcell_type\tcondition_type\ttreatment\ttimes",
		"SRR100\ts1\trep1\tsingle\t0\tcell line\tHeLa\theat shock\t42C\t0,60,min",
		"SRR200\ts2\trep2\tsingle\t0\tcell line\tHeLa\t\t\t",
	))
	writeFile(t, filepath.Join(paper, "bidir_summary", "tfit_stats.txt"), tsv(
		"sample_name\tnum_tfit_bidir\tnum_tfit_bidir_promoter\tnum_tfit_bidir_exonic\tnum_tfit_bidir_intronic\tnum_tfit_bidir_intergenic\ttfit_bidir_gc_prop",
		"s1\t100\t40\t10\t20\t30\t.45",
	))
	writeFile(t, filepath.Join(paper, "software_versions", "s1_nascent.yaml"),
		"nascentflow_version: v1.2\npipeline_hash: abc123\n")

	bad := filepath.Join(data, "Bad2021")
	writeFile(t, filepath.Join(bad, "metadata", "expt_metadata.txt"), tsv(
		"paper_name\torganism\tyear",
		"Bad2021\thuman\t2021",
	))
	writeFile(t, filepath.Join(bad, "metadata", "sample_metadata.txt"), tsv(
		"SRR\tsample_name\treplicate\tsingle_paired\trcomp\tsample_type\tcell_type\tcondition_type\ttreatment\ttimes",
		"SRR900\tb1\trepA\tsingle\t0\tcell line\tHeLa\t\t\t",
	))

	cfg := types.DefaultBuildConfig()
	cfg.Files.DataRoot = data
	cfg.Files.OrganismTable = filepath.Join(dir, "organisms.txt")
	cfg.Files.TissueTable = filepath.Join(dir, "tissues.txt")
	cfg.Files.SearchEqManual = filepath.Join(dir, "searcheq_manual.txt")
	cfg.Files.SearchEqTable = filepath.Join(dir, "searcheq_table.txt")
	cfg.Keys = types.Keys{
		Organisms:        types.KeySection{{DB: "organism"}, {DB: "genome_build"}},
		Tissues:          types.KeySection{{DB: "tissue"}, {DB: "cell_origin_type"}},
		Papers:           types.KeySection{{DB: "organism"}, {DB: "paper_name"}, {DB: "year"}},
		MetatableSamples: types.KeySection{{DB: "srr", File: "SRR"}},
		Samples: types.KeySection{
			{DB: "sample_name"}, {DB: "replicate"}, {DB: "single_paired"}, {DB: "rcomp"},
			{DB: "sample_qc_score"}, {DB: "sample_nro_score"},
		},
		Genetics: types.KeySection{{DB: "sample_type"}, {DB: "cell_type"}},
		Bidirs: types.KeySection{
			{DB: "num_tfit_bidir"}, {DB: "num_dreg_bidir"}, {DB: "tfit_master_merge_incl"},
		},
	}
	return cfg
}

// testSinks returns a fresh sink of every implementation.
func testSinks(t *testing.T) map[string]sink.TxSink {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := sink.OpenConfig(types.FileLocations{Driver: types.DriverSQLite, Database: path}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return map[string]sink.TxSink{
		"sqlite": s,
		"memory": sink.NewMemory(),
	}
}

func fetchAll(t *testing.T, s sink.Sink, table schema.TableID) []*metatable.Record {
	t.Helper()
	rows, err := s.Fetch(context.Background(), table, nil, nil)
	require.NoError(t, err)
	return rows
}

func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestInsertedTotal(t *testing.T) {
	assert.Equal(t, 0, Inserted{}.Total())
	assert.Equal(t, 5, Inserted{schema.Samples: 2, schema.Papers: 3}.Total())
}

func TestReplicateNumber(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"rep1", "1"},
		{"2", "2"},
		{"replicate 12b", "12"},
		{"r3_4", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ReplicateNumber(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ReplicateNumber("repA")
	assert.ErrorIs(t, err, metatable.ErrFormat)
}

func TestMetadataPaths(t *testing.T) {
	expt, samples := MetadataPaths("/data", "Smith2020")
	assert.Equal(t, filepath.Join("/data", "Smith2020", "metadata", "expt_metadata.txt"), expt)
	assert.Equal(t, filepath.Join("/data", "Smith2020", "metadata", "sample_metadata.txt"), samples)
}

func TestSearchTerms(t *testing.T) {
	rows := []*metatable.Record{
		metatable.RecordOf("id", 1, "organism", "human", "genome_build", "", "genome_bases", 3),
		metatable.RecordOf("id", 2, "sample_qc_score", 0, "sample_nro_score", 4, "rcomp", false),
	}
	got := searchTerms(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "human", got[0].String("search_term"))
	assert.Equal(t, "human", got[0].String("db_term"))
	assert.Equal(t, "organism", got[0].String("search_field"))
	assert.Equal(t, "4", got[1].String("search_term"))
	assert.Equal(t, "sample_nro_score", got[1].String("search_field"))
}

func TestGlobal(t *testing.T) {
	ctx := context.Background()
	cfg := fixture(t)
	for name, s := range testSinks(t) {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			d := &Driver{Sink: s, Config: cfg, Out: &out, RunID: "run-global", Now: fixedClock()}

			res, err := d.Global(ctx)
			require.NoError(t, err)
			assert.Equal(t, "run-global", res.RunID)
			assert.Equal(t, 2, res.Inserted[schema.Organisms])
			assert.Equal(t, 2, res.Inserted[schema.Tissues])
			assert.Equal(t, 4, res.Total())
			assert.Contains(t, out.String(), "global tables: 4 rows inserted")

			orgs := fetchAll(t, s, schema.Organisms)
			require.Len(t, orgs, 2)
			assert.Equal(t, "human", orgs[0].String("organism"))
			assert.Equal(t, "hg38", orgs[0].String("genome_build"))

			again, err := d.Global(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, again.Total())
			assert.Len(t, fetchAll(t, s, schema.Organisms), 2)

			runs := fetchAll(t, s, schema.IngestRuns)
			require.Len(t, runs, 2)
			assert.Equal(t, "run-global", runs[0].String("run_uuid"))
			assert.Equal(t, KindGlobal, runs[0].String("kind"))
			assert.Equal(t, "ok", runs[0].String("status"))
			assert.Equal(t, "4", runs[0].String("rows_inserted"))
			assert.Equal(t, "0", runs[1].String("rows_inserted"))
		})
	}
}

func TestGlobalMissingTable(t *testing.T) {
	cfg := fixture(t)
	cfg.Files.TissueTable = ""
	s := sink.NewMemory()
	d := &Driver{Sink: s, Config: cfg}

	_, err := d.Global(context.Background())
	require.ErrorIs(t, err, metatable.ErrNotFound)
	assert.Empty(t, s.Rows(schema.Organisms), "organisms rolled back")

	runs := s.Rows(schema.IngestRuns)
	require.Len(t, runs, 1)
	assert.Equal(t, "error", runs[0].String("status"))
}

func TestPaper(t *testing.T) {
	ctx := context.Background()
	cfg := fixture(t)
	for name, s := range testSinks(t) {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			run := metrics.New("run-paper")
			d := &Driver{Sink: s, Config: cfg, Out: &out, Metrics: run, Now: fixedClock()}

			_, err := d.Global(ctx)
			require.NoError(t, err)

			res, err := d.Paper(ctx, "Smith2020")
			require.NoError(t, err)
			assert.Equal(t, "Smith2020", res.PaperID)
			assert.Equal(t, 2, res.Samples)
			assert.Len(t, res.SampleScores, 2)
			assert.Equal(t, int64(1), res.ScoresUpdated)

			want := Inserted{
				schema.Samples:         2,
				schema.Genetics:        1,
				schema.Bidirs:          2,
				schema.Papers:          1,
				schema.SampleEquiv:     2,
				schema.LinkIDs:         2,
				schema.Conditions:      2,
				schema.ConditionLink:   2,
				schema.NascentflowRuns: 2,
				schema.NascentflowLink: 2,
				schema.BidirflowRuns:   1,
				schema.BidirflowLink:   2,
			}
			assert.Equal(t, want, res.Inserted)
			assert.Equal(t, 21, res.Total())

			samples := fetchAll(t, s, schema.Samples)
			require.Len(t, samples, 2)
			assert.Equal(t, "s1", samples[0].String("sample_name"))
			assert.Equal(t, "1", samples[0].String("replicate"))
			assert.Equal(t, "2", samples[1].String("replicate"))

			papers := fetchAll(t, s, schema.Papers)
			require.Len(t, papers, 1)
			assert.Equal(t, "Smith2020", papers[0].String("paper_name"))
			assert.Equal(t, "1", papers[0].String("organism_id"))
			assert.Equal(t, metatable.Str(res.Scores.QC), metatable.Str(papers[0].Value("paper_qc_score")))

			genetics := fetchAll(t, s, schema.Genetics)
			require.Len(t, genetics, 1)
			assert.Equal(t, "HeLa", genetics[0].String("cell_type"))
			assert.Equal(t, "1", genetics[0].String("tissue_id"))

			equiv := fetchAll(t, s, schema.SampleEquiv)
			require.Len(t, equiv, 2)
			assert.Equal(t, "SRR100", equiv[0].String("srr"))

			conds := fetchAll(t, s, schema.Conditions)
			require.Len(t, conds, 2)
			assert.Equal(t, "heat shock", conds[0].String("condition_type"))
			assert.Equal(t, "60", conds[0].String("end_time"))
			assert.Equal(t, "min", conds[0].String("time_unit"))
			assert.Equal(t, "1", conds[0].String("duration"), "60 min promotes to hours")
			assert.Equal(t, "hr", conds[0].String("duration_unit"))
			assert.Equal(t, "no treatment", conds[1].String("condition_type"))

			bidirs := fetchAll(t, s, schema.Bidirs)
			require.Len(t, bidirs, 2)
			assert.Equal(t, "100", bidirs[0].String("num_tfit_bidir"))
			assert.Nil(t, bidirs[1].Value("num_tfit_bidir"))

			flows := fetchAll(t, s, schema.NascentflowRuns)
			require.Len(t, flows, 2)
			assert.Equal(t, "", flows[0].String("nascentflow_version"))
			assert.Equal(t, "v1.2", flows[1].String("nascentflow_version"))
			assert.Equal(t, "abc123", flows[1].String("pipeline_hash"))

			again, err := d.Paper(ctx, "Smith2020")
			require.NoError(t, err)
			assert.Equal(t, 0, again.Total())
			assert.Equal(t, int64(1), again.ScoresUpdated)
			assert.Len(t, fetchAll(t, s, schema.Samples), 2)
			assert.Len(t, fetchAll(t, s, schema.Papers), 1)

			assert.Contains(t, out.String(), "paper Smith2020: 2 samples")
		})
	}
}

func TestPaperNotFound(t *testing.T) {
	cfg := fixture(t)
	s := sink.NewMemory()
	d := &Driver{Sink: s, Config: cfg}

	_, err := d.Paper(context.Background(), "Nobody1999")
	require.ErrorIs(t, err, ErrPaperNotFound)
	assert.Empty(t, s.Rows(schema.IngestRuns))
}

func TestPaperRollsBack(t *testing.T) {
	ctx := context.Background()
	cfg := fixture(t)
	s := sink.NewMemory()
	d := &Driver{Sink: s, Config: cfg, RunID: "run-bad"}

	_, err := d.Global(ctx)
	require.NoError(t, err)

	_, err = d.Paper(ctx, "Bad2021")
	require.Error(t, err)
	assert.True(t, errors.Is(err, metatable.ErrFormat))
	assert.Empty(t, s.Rows(schema.Samples))
	assert.Empty(t, s.Rows(schema.Papers))

	runs := s.Rows(schema.IngestRuns)
	require.Len(t, runs, 2)
	assert.Equal(t, KindPaper, runs[1].String("kind"))
	assert.Equal(t, "Bad2021", runs[1].String("target"))
	assert.Equal(t, "error", runs[1].String("status"))
}

func TestSearchEquiv(t *testing.T) {
	ctx := context.Background()
	cfg := fixture(t)
	for name, s := range testSinks(t) {
		t.Run(name, func(t *testing.T) {
			d := &Driver{Sink: s, Config: cfg, Now: fixedClock()}
			_, err := d.Global(ctx)
			require.NoError(t, err)
			_, err = d.Paper(ctx, "Smith2020")
			require.NoError(t, err)

			res, err := d.SearchEquiv(ctx)
			require.NoError(t, err)
			require.Positive(t, res.Terms)
			assert.Equal(t, res.Terms, res.Inserted[schema.SearchEquiv])

			rows := fetchAll(t, s, schema.SearchEquiv)
			require.Len(t, rows, res.Terms)
			terms := make(map[string]string)
			for _, r := range rows {
				terms[r.String("search_term")] = r.String("db_term")
			}
			assert.Equal(t, "human", terms["human"])
			assert.Equal(t, "HeLa", terms["HeLa cells"])
			assert.Equal(t, "2020", terms["2020"])
			assert.Equal(t, "SRR100", terms["SRR100"])
			assert.NotContains(t, terms, "0")

			data, err := os.ReadFile(cfg.Files.SearchEqTable)
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			assert.Equal(t, "search_term\tdb_term\tsearch_field", lines[0])
			assert.Len(t, lines, res.Terms+1)

			again, err := d.SearchEquiv(ctx)
			require.NoError(t, err)
			assert.Equal(t, res.Terms, again.Terms)
			assert.Len(t, fetchAll(t, s, schema.SearchEquiv), res.Terms)
		})
	}
}
