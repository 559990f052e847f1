// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qc

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/dbnascent/internal/metatable"
)

// eachLine calls fn with every line of path and its 1-based line number.
func eachLine(path string, fn func(n int, line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		if err := fn(n, sc.Text()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// Picard reads the duplication rate from a Picard MarkDuplicates metrics
// file.
func Picard(paperID, sampleName, dataRoot string, _ Context) (*metatable.Record, error) {
	out := nullRecord("duplication_picard")
	path := qcDir(dataRoot, paperID, "picard", "dups", sampleName+".marked_dup_metrics.txt")
	if !isFile(path) {
		return out, nil
	}

	err := eachLine(path, func(n int, line string) error {
		if !strings.Contains(line, "Unknown Library") {
			return nil
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 9 {
			return reportError(path, n, fmt.Errorf("expected 9 columns, got %d", len(cols)))
		}
		dup, err := strconv.ParseFloat(strings.TrimSpace(cols[8]), 64)
		if err != nil {
			return reportError(path, n, err)
		}
		out.Set("duplication_picard", Round(dup, 5))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// alignedCount parses the count from a HISAT2 summary line such as
// "Aligned 1 time: 800 (80.00%)".
func alignedCount(line string) (int, error) {
	_, rest, ok := strings.Cut(line, ": ")
	if !ok {
		return 0, fmt.Errorf("no count in %q", line)
	}
	num, _, _ := strings.Cut(rest, " (")
	return strconv.Atoi(strings.TrimSpace(num))
}

func alignmentRate(line string) (float64, error) {
	_, rest, ok := strings.Cut(line, ": ")
	if !ok {
		return 0, fmt.Errorf("no rate in %q", line)
	}
	num, _, _ := strings.Cut(rest, "%")
	pct, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, err
	}
	return Round(pct/100, 5), nil
}

// Mapstats reads uniquely and multiply mapped read counts and the overall
// alignment rate from a HISAT2 summary. For paired-end samples each
// concordantly aligned pair counts as two reads, added to the matching
// unpaired-read count.
func Mapstats(paperID, sampleName, dataRoot string, ctx Context) (*metatable.Record, error) {
	out := nullRecord("single_map", "multi_map", "map_prop")
	path := qcDir(dataRoot, paperID, "hisat2_mapstats", sampleName+".hisat2_mapstats.txt")
	if !isFile(path) {
		return out, nil
	}

	paired := ctx.IsPaired()
	var uniquePairs, multiPairs int
	err := eachLine(path, func(n int, line string) error {
		switch {
		case paired && strings.Contains(line, "concordantly 1 time"):
			c, err := alignedCount(line)
			if err != nil {
				return reportError(path, n, err)
			}
			uniquePairs = c * 2
		case paired && strings.Contains(line, "concordantly >1 times"):
			c, err := alignedCount(line)
			if err != nil {
				return reportError(path, n, err)
			}
			multiPairs = c * 2
		case strings.Contains(line, "Aligned 1 time"):
			c, err := alignedCount(line)
			if err != nil {
				return reportError(path, n, err)
			}
			out.Set("single_map", c+uniquePairs)
		case strings.Contains(line, "Aligned >1 times"):
			c, err := alignedCount(line)
			if err != nil {
				return reportError(path, n, err)
			}
			out.Set("multi_map", c+multiPairs)
		case strings.Contains(line, "Overall alignment rate"):
			rate, err := alignmentRate(line)
			if err != nil {
				return reportError(path, n, err)
			}
			out.Set("map_prop", rate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RSeQC reads tag counts and tags-per-kb from an RSeQC read_distribution
// report and derives the exon/intron ratio.
func RSeQC(paperID, sampleName, dataRoot string, _ Context) (*metatable.Record, error) {
	out := nullRecord("rseqc_tags", "rseqc_cds", "cds_rpk", "rseqc_five_utr",
		"rseqc_three_utr", "rseqc_intron", "intron_rpk", "exint_ratio")
	path := qcDir(dataRoot, paperID, "rseqc", "read_distribution", sampleName+".read_distribution.txt")
	if !isFile(path) {
		return out, nil
	}

	var cdsRPK, intronRPK *float64
	err := eachLine(path, func(n int, line string) error {
		fields := strings.Fields(line)
		intField := func(i int) (int, error) {
			if i < 0 {
				i += len(fields)
			}
			if i < 0 || i >= len(fields) {
				return 0, fmt.Errorf("missing column %d in %q", i, line)
			}
			return strconv.Atoi(fields[i])
		}
		lastFloat := func() (float64, error) {
			if len(fields) == 0 {
				return 0, fmt.Errorf("empty line")
			}
			return strconv.ParseFloat(fields[len(fields)-1], 64)
		}

		switch {
		case strings.Contains(line, "Total Assigned Tags"):
			v, err := intField(-1)
			if err != nil {
				return reportError(path, n, err)
			}
			out.Set("rseqc_tags", v)
		case strings.Contains(line, "CDS_Exons"):
			v, err := intField(2)
			if err != nil {
				return reportError(path, n, err)
			}
			rpk, err := lastFloat()
			if err != nil {
				return reportError(path, n, err)
			}
			rpk = DBRound(rpk)
			cdsRPK = &rpk
			out.Set("rseqc_cds", v)
			out.Set("cds_rpk", rpk)
		case strings.Contains(line, "5'UTR_Exons"):
			v, err := intField(2)
			if err != nil {
				return reportError(path, n, err)
			}
			out.Set("rseqc_five_utr", v)
		case strings.Contains(line, "3'UTR_Exons"):
			v, err := intField(2)
			if err != nil {
				return reportError(path, n, err)
			}
			out.Set("rseqc_three_utr", v)
		case strings.Contains(line, "Introns"):
			v, err := intField(2)
			if err != nil {
				return reportError(path, n, err)
			}
			rpk, err := lastFloat()
			if err != nil {
				return reportError(path, n, err)
			}
			rpk = DBRound(rpk)
			intronRPK = &rpk
			out.Set("rseqc_intron", v)
			out.Set("intron_rpk", rpk)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cdsRPK != nil && intronRPK != nil && *intronRPK > 0 {
		out.Set("exint_ratio", DBRound(*cdsRPK / *intronRPK))
	}
	return out, nil
}

// Preseq reads the expected distinct-read proportion at ten million reads
// from a preseq lc_extrap table.
func Preseq(paperID, sampleName, dataRoot string, _ Context) (*metatable.Record, error) {
	out := nullRecord("distinct_tenmillion_prop")
	path := qcDir(dataRoot, paperID, "preseq", sampleName+".lc_extrap.txt")
	if !isFile(path) {
		return out, nil
	}

	err := eachLine(path, func(n int, line string) error {
		if !strings.HasPrefix(line, "10000000.0") {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return reportError(path, n, fmt.Errorf("short line %q", line))
		}
		distinct, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return reportError(path, n, err)
		}
		out.Set("distinct_tenmillion_prop", Round(distinct/10000000, 5))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Pileup reads a BBMap pileup coverage-stats table and computes the
// proportion of the genome covered and the length-weighted mean fold
// coverage across contigs.
func Pileup(paperID, sampleName, dataRoot string, _ Context) (*metatable.Record, error) {
	out := nullRecord("genome_prop_cov", "avg_fold_cov")
	path := qcDir(dataRoot, paperID, "pileup", sampleName+".coverage.stats.txt")
	if !isFile(path) {
		return out, nil
	}

	var total, covered int64
	var fold float64
	err := eachLine(path, func(n int, line string) error {
		if n == 1 || strings.TrimSpace(line) == "" {
			return nil
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 6 {
			return reportError(path, n, fmt.Errorf("expected 6 columns, got %d", len(cols)))
		}
		avgFold, err := strconv.ParseFloat(cols[1], 64)
		if err != nil {
			return reportError(path, n, err)
		}
		length, err := strconv.ParseInt(cols[2], 10, 64)
		if err != nil {
			return reportError(path, n, err)
		}
		cov, err := strconv.ParseInt(cols[5], 10, 64)
		if err != nil {
			return reportError(path, n, err)
		}
		total += length
		covered += cov
		fold += avgFold * float64(length)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if total > 0 {
		out.Set("genome_prop_cov", Round(float64(covered)/float64(total), 5))
		out.Set("avg_fold_cov", DBRound(fold/float64(total)))
	}
	return out, nil
}
