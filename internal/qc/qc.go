// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package qc scrapes sequencing QC metrics from the per-sample report files
// the nascent-transcription pipeline writes under <root>/<paper>/qc/.
//
// A missing report is data, not an error: every metric the report would
// supply is set to null. A report that exists but carries an unparseable
// number on a recognised line is an ErrReport.
package qc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/dbnascent/internal/metatable"
)

// ErrReport is wrapped by errors for present but malformed report files.
var ErrReport = errors.New("malformed report")

// Layout values for Context.SinglePaired.
const (
	Single = "single"
	Paired = "paired"
)

// Context carries the per-sample facts that change which report file a
// scraper reads or how it interprets it.
type Context struct {
	SinglePaired string
	RComp        bool
}

// IsPaired reports whether the sample is paired-end.
func (c Context) IsPaired() bool { return c.SinglePaired == Paired }

// ContextFromRecord reads single_paired and rcomp from a sample record.
func ContextFromRecord(r *metatable.Record) Context {
	rc := r.String("rcomp")
	return Context{
		SinglePaired: r.String("single_paired"),
		RComp:        rc == "1" || rc == "True",
	}
}

// Scraper reads one report family for a sample.
type Scraper func(paperID, sampleName, dataRoot string, ctx Context) (*metatable.Record, error)

// Scrapers lists every report family in the order their metrics are merged.
var Scrapers = []Scraper{
	FastQC,
	Picard,
	Mapstats,
	RSeQC,
	Preseq,
	Pileup,
}

// ScrapeAll runs every scraper for a sample and merges their metrics into
// one record.
func ScrapeAll(paperID, sampleName, dataRoot string, ctx Context) (*metatable.Record, error) {
	out := metatable.NewRecord()
	for _, s := range Scrapers {
		rec, err := s(paperID, sampleName, dataRoot, ctx)
		if err != nil {
			return nil, err
		}
		out.Update(rec)
	}
	return out, nil
}

// ScrapeSample scrapes the sample described by rec, reading paper_name,
// sample_name, single_paired, and rcomp from it.
func ScrapeSample(rec *metatable.Record, dataRoot string) (*metatable.Record, error) {
	return ScrapeAll(rec.String("paper_name"), rec.String("sample_name"), dataRoot, ContextFromRecord(rec))
}

func qcDir(dataRoot, paperID string, parts ...string) string {
	return filepath.Join(append([]string{dataRoot, paperID, "qc"}, parts...)...)
}

func nullRecord(keys ...string) *metatable.Record {
	r := metatable.NewRecord()
	for _, k := range keys {
		r.Set(k, nil)
	}
	return r
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func reportError(path string, line int, err error) error {
	return fmt.Errorf("%s line %d: %w: %v", path, line, ErrReport, err)
}
