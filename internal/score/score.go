// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score assigns ordinal quality scores to samples and papers.
// Scores run from 1 (best) to 5 (worst); 0 means the inputs were missing.
package score

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/dbnascent/internal/metatable"
	"github.com/pdiddy/dbnascent/pkg/types"
)

// ErrNoSamples is returned when a paper score is requested for no samples.
var ErrNoSamples = errors.New("no samples to score")

// Record keys read and written by the scorer.
const (
	KeyTrimDepth   = "trim_read_depth"
	KeyDuplication = "duplication_picard"
	KeyMapProp     = "map_prop"
	KeyComplexity  = "distinct_tenmillion_prop"
	KeyExonIntron  = "exint_ratio"
	KeyTfitGC      = "tfit_bidir_gc_prop"

	KeySampleQC  = "sample_qc_score"
	KeySampleNRO = "sample_nro_score"
	KeyPaperQC   = "paper_qc_score"
	KeyPaperNRO  = "paper_nro_score"
)

// Metrics are the sample measurements the scores are derived from. A nil
// field is missing data.
type Metrics struct {
	TrimDepth   *float64
	Duplication *float64
	MapProp     *float64
	Complexity  *float64
	ExonIntron  *float64
	GC          *float64
}

// Scores are the two ordinal scores of one sample.
type Scores struct {
	QC  int
	NRO int
}

// PaperScores are the medians of a paper's sample scores.
type PaperScores struct {
	QC  float64
	NRO float64
}

// MetricsFromRecord reads scoring inputs from a sample record. Values may
// be numbers or their string form; nulls, "None", and "" are missing.
func MetricsFromRecord(r *metatable.Record) Metrics {
	return Metrics{
		TrimDepth:   number(r.Value(KeyTrimDepth)),
		Duplication: number(r.Value(KeyDuplication)),
		MapProp:     number(r.Value(KeyMapProp)),
		Complexity:  number(r.Value(KeyComplexity)),
		ExonIntron:  number(r.Value(KeyExonIntron)),
		GC:          number(r.Value(KeyTfitGC)),
	}
}

func number(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" || s == "None" {
			return nil
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = p
	case bool:
		return nil
	default:
		p, err := strconv.ParseFloat(metatable.Str(x), 64)
		if err != nil {
			return nil
		}
		f = p
	}
	return &f
}

// Sample computes the QC and NRO scores of one sample. Tiers are checked
// from 5 down to 2 and the first match wins.
func Sample(m Metrics, th types.Thresholds) Scores {
	return Scores{QC: qcScore(m, th), NRO: nroScore(m, th)}
}

func qcScore(m Metrics, th types.Thresholds) int {
	if m.TrimDepth == nil || m.Duplication == nil || m.MapProp == nil || m.Complexity == nil {
		return 0
	}
	depth, dup, mapped, cx := *m.TrimDepth, *m.Duplication, *m.MapProp, *m.Complexity
	for _, tier := range types.ScoreTiers {
		t := th.QC[tier]
		if depth <= t.Depth || dup >= t.Duplication || mapped*depth <= t.MappedDepth || cx < t.Complexity {
			return tier
		}
	}
	return 1
}

func nroScore(m Metrics, th types.Thresholds) int {
	if m.ExonIntron == nil {
		return 0
	}
	exint := *m.ExonIntron
	for _, tier := range types.ScoreTiers {
		t := th.NRO[tier]
		if exint >= t.ExonIntron {
			return tier
		}
		if m.GC != nil && *m.GC <= t.GC {
			return tier
		}
	}
	return 1
}

// Apply scores the sample record and stores sample_qc_score and
// sample_nro_score on it.
func Apply(r *metatable.Record, th types.Thresholds) Scores {
	s := Sample(MetricsFromRecord(r), th)
	r.Set(KeySampleQC, s.QC)
	r.Set(KeySampleNRO, s.NRO)
	return s
}

// Paper returns the median QC and NRO scores across samples. An even
// count takes the mean of the two middle scores.
func Paper(samples []Scores) (PaperScores, error) {
	if len(samples) == 0 {
		return PaperScores{}, ErrNoSamples
	}
	qc := make([]int, len(samples))
	nro := make([]int, len(samples))
	for i, s := range samples {
		qc[i] = s.QC
		nro[i] = s.NRO
	}
	return PaperScores{QC: median(qc), NRO: median(nro)}, nil
}

func median(v []int) float64 {
	sort.Ints(v)
	n := len(v)
	if n%2 == 1 {
		return float64(v[n/2])
	}
	return float64(v[n/2-1]+v[n/2]) / 2
}
