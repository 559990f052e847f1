// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qc

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paper = "Smith2020"

func writeReport(t *testing.T, root string, rel []string, content string) {
	t.Helper()
	path := filepath.Join(append([]string{root, paper, "qc"}, rel...)...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeFastQCZip(t *testing.T, root, name, data string) {
	t.Helper()
	dir := filepath.Join(root, paper, "qc", "fastqc", "zips")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	f, err := os.Create(filepath.Join(dir, name+".zip"))
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(name + "/fastqc_data.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func fastqcReport(depth, length string) string {
	return "##FastQC\t0.11.9\n>>Basic Statistics\tpass\n#Measure\tValue\n" +
		"Filename\tx.fastq\nTotal Sequences\t" + depth + "\n" +
		"Sequence length\t" + length + "\n%GC\t45\n>>END_MODULE\n"
}

func TestDBRound(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{123456.789, 123457},
		{12345.6789, 12345.7},
		{1234.56789, 1234.57},
		{123.456789, 123.457},
		{12.3456789, 12.3457},
		{1.23456789, 1.23457},
		{99999.4, 99999},
		{99999.5, 100000},
		{99998.96, 99999.0},
		{0.000001, 0.0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, DBRound(tc.in), "DBRound(%v)", tc.in)
	}
}

func TestRoundUsesBinaryValue(t *testing.T) {
	assert.Equal(t, 2.67, Round(2.675, 2))
	assert.Equal(t, 0.0, Round(0.5, 0))
	assert.Equal(t, 2.0, Round(1.5, 0))
	assert.Equal(t, 2.0, Round(2.5, 0))
}

func TestMissingReportsAreNull(t *testing.T) {
	root := t.TempDir()
	rec, err := ScrapeAll(paper, "s1", root, Context{SinglePaired: Single})
	require.NoError(t, err)

	for _, k := range []string{
		"raw_read_depth", "raw_read_length", "trim_read_depth", "duplication_picard",
		"single_map", "multi_map", "map_prop", "rseqc_tags", "rseqc_cds", "cds_rpk",
		"rseqc_five_utr", "rseqc_three_utr", "rseqc_intron", "intron_rpk", "exint_ratio",
		"distinct_tenmillion_prop", "genome_prop_cov", "avg_fold_cov",
	} {
		v, ok := rec.Get(k)
		assert.True(t, ok, "key %s present", k)
		assert.Nil(t, v, "key %s null", k)
	}
}

func TestFastQC(t *testing.T) {
	tests := []struct {
		name      string
		ctx       Context
		raw       string
		trim      string
		wantTrim  any
		wantDepth any
	}{
		{
			name:      "single end",
			ctx:       Context{SinglePaired: Single},
			raw:       "s1_fastqc",
			trim:      "s1.trim_fastqc",
			wantDepth: 1000,
			wantTrim:  900,
		},
		{
			name:      "single end reverse complemented",
			ctx:       Context{SinglePaired: Single, RComp: true},
			raw:       "s1_fastqc",
			trim:      "s1.flip.trim_fastqc",
			wantDepth: 1000,
			wantTrim:  900,
		},
		{
			name:      "paired end",
			ctx:       Context{SinglePaired: Paired, RComp: true},
			raw:       "s1_1_fastqc",
			trim:      "s1_1.trim_fastqc",
			wantDepth: 1000,
			wantTrim:  900,
		},
		{
			name:      "trimmed archive missing",
			ctx:       Context{SinglePaired: Single},
			raw:       "s1_fastqc",
			wantDepth: 1000,
			wantTrim:  nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			writeFastQCZip(t, root, tc.raw, fastqcReport("1000", "36-101"))
			if tc.trim != "" {
				writeFastQCZip(t, root, tc.trim, fastqcReport("900", "20-101"))
			}

			rec, err := FastQC(paper, "s1", root, tc.ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.wantDepth, rec.Value("raw_read_depth"))
			assert.Equal(t, 36, rec.Value("raw_read_length"))
			assert.Equal(t, tc.wantTrim, rec.Value("trim_read_depth"))
		})
	}
}

func TestFastQCRemovesExtraction(t *testing.T) {
	root := t.TempDir()
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	writeFastQCZip(t, root, "s1_fastqc", fastqcReport("12", "50"))

	_, err := FastQC(paper, "s1", root, Context{SinglePaired: Single})
	require.NoError(t, err)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFastQCMalformed(t *testing.T) {
	root := t.TempDir()
	writeFastQCZip(t, root, "s1_fastqc", fastqcReport("lots", "50"))

	_, err := FastQC(paper, "s1", root, Context{SinglePaired: Single})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReport))
}

func TestPicard(t *testing.T) {
	root := t.TempDir()
	writeReport(t, root, []string{"picard", "dups", "s1.marked_dup_metrics.txt"},
		"## METRICS CLASS\tpicard.sam.DuplicationMetrics\n"+
			"LIBRARY\tUNPAIRED_READS_EXAMINED\tREAD_PAIRS_EXAMINED\tSECONDARY_OR_SUPPLEMENTARY_RDS\tUNMAPPED_READS\tUNPAIRED_READ_DUPLICATES\tREAD_PAIR_DUPLICATES\tREAD_PAIR_OPTICAL_DUPLICATES\tPERCENT_DUPLICATION\tESTIMATED_LIBRARY_SIZE\n"+
			"Unknown Library\t100\t0\t0\t5\t40\t0\t0\t0.4012345678\t\n")

	rec, err := Picard(paper, "s1", root, Context{})
	require.NoError(t, err)
	assert.Equal(t, 0.40123, rec.Value("duplication_picard"))
}

const pairedMapstats = `HISAT2 summary stats:
	Total pairs: 1000
		Aligned concordantly or discordantly 0 time: 100 (10.00%)
		Aligned concordantly 1 time: 800 (80.00%)
		Aligned concordantly >1 times: 50 (5.00%)
		Aligned discordantly 1 time: 50 (5.00%)
	Total unpaired reads: 200
		Aligned 0 time: 100 (50.00%)
		Aligned 1 time: 80 (40.00%)
		Aligned >1 times: 20 (10.00%)
	Overall alignment rate: 95.00%
`

const singleMapstats = `HISAT2 summary stats:
	Total reads: 1000
		Aligned 0 time: 100 (10.00%)
		Aligned 1 time: 800 (80.00%)
		Aligned >1 times: 100 (10.00%)
	Overall alignment rate: 90.123456%
`

func TestMapstats(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		ctx        Context
		wantSingle int
		wantMulti  int
		wantProp   float64
	}{
		{
			name:       "paired counts pairs twice",
			content:    pairedMapstats,
			ctx:        Context{SinglePaired: Paired},
			wantSingle: 1680,
			wantMulti:  120,
			wantProp:   0.95,
		},
		{
			name:       "single end",
			content:    singleMapstats,
			ctx:        Context{SinglePaired: Single},
			wantSingle: 800,
			wantMulti:  100,
			wantProp:   0.90123,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			writeReport(t, root, []string{"hisat2_mapstats", "s1.hisat2_mapstats.txt"}, tc.content)

			rec, err := Mapstats(paper, "s1", root, tc.ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.wantSingle, rec.Value("single_map"))
			assert.Equal(t, tc.wantMulti, rec.Value("multi_map"))
			assert.Equal(t, tc.wantProp, rec.Value("map_prop"))
		})
	}
}

func TestRSeQC(t *testing.T) {
	root := t.TempDir()
	writeReport(t, root, []string{"rseqc", "read_distribution", "s1.read_distribution.txt"},
		"Total Reads                   1000\n"+
			"Total Tags                    1200\n"+
			"Total Assigned Tags           1100\n"+
			"=====================================================================\n"+
			"Group               Total_bases         Tag_count           Tags/Kb\n"+
			"CDS_Exons           33302033            500                 15.01\n"+
			"5'UTR_Exons         5002345             60                  11.99\n"+
			"3'UTR_Exons         25003456            70                  2.80\n"+
			"Introns             800000000           400                 0.5\n"+
			"TSS_up_1kb          30000000            10                  0.33\n")

	rec, err := RSeQC(paper, "s1", root, Context{})
	require.NoError(t, err)
	assert.Equal(t, 1100, rec.Value("rseqc_tags"))
	assert.Equal(t, 500, rec.Value("rseqc_cds"))
	assert.Equal(t, 15.01, rec.Value("cds_rpk"))
	assert.Equal(t, 60, rec.Value("rseqc_five_utr"))
	assert.Equal(t, 70, rec.Value("rseqc_three_utr"))
	assert.Equal(t, 400, rec.Value("rseqc_intron"))
	assert.Equal(t, 0.5, rec.Value("intron_rpk"))
	assert.Equal(t, 30.02, rec.Value("exint_ratio"))
}

func TestRSeQCZeroIntronHasNoRatio(t *testing.T) {
	root := t.TempDir()
	writeReport(t, root, []string{"rseqc", "read_distribution", "s1.read_distribution.txt"},
		"CDS_Exons           100     5     15.01\nIntrons             100     0     0.0\n")

	rec, err := RSeQC(paper, "s1", root, Context{})
	require.NoError(t, err)
	assert.Nil(t, rec.Value("exint_ratio"))
}

func TestPreseq(t *testing.T) {
	root := t.TempDir()
	writeReport(t, root, []string{"preseq", "s1.lc_extrap.txt"},
		"TOTAL_READS\tEXPECTED_DISTINCT\tLOWER_0.95CI\tUPPER_0.95CI\n"+
			"0\t0\t0\t0\n"+
			"10000000.0\t8123456.7\t8000000.0\t8200000.0\n")

	rec, err := Preseq(paper, "s1", root, Context{})
	require.NoError(t, err)
	assert.Equal(t, 0.81235, rec.Value("distinct_tenmillion_prop"))
}

func TestPreseqWithoutTenMillionLine(t *testing.T) {
	root := t.TempDir()
	writeReport(t, root, []string{"preseq", "s1.lc_extrap.txt"}, "TOTAL_READS\tEXPECTED_DISTINCT\n0\t0\n")

	rec, err := Preseq(paper, "s1", root, Context{})
	require.NoError(t, err)
	assert.Nil(t, rec.Value("distinct_tenmillion_prop"))
}

func TestPileup(t *testing.T) {
	root := t.TempDir()
	writeReport(t, root, []string{"pileup", "s1.coverage.stats.txt"},
		"#ID\tAvg_fold\tLength\tRef_GC\tCovered_percent\tCovered_bases\n"+
			"chr1\t2.0\t100\t0\t50\t50\n"+
			"chr2\t4.0\t300\t0\t10\t30\n")

	rec, err := Pileup(paper, "s1", root, Context{})
	require.NoError(t, err)
	assert.Equal(t, 0.2, rec.Value("genome_prop_cov"))
	assert.Equal(t, 3.5, rec.Value("avg_fold_cov"))
}

func TestPileupMalformed(t *testing.T) {
	root := t.TempDir()
	writeReport(t, root, []string{"pileup", "s1.coverage.stats.txt"},
		"#ID\tAvg_fold\tLength\tRef_GC\tCovered_percent\tCovered_bases\nchr1\tx\t100\t0\t50\t50\n")

	_, err := Pileup(paper, "s1", root, Context{})
	assert.True(t, errors.Is(err, ErrReport))
}
