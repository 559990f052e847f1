// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package versions reads the software-version YAML the nascentflow and
// bidirflow pipelines write for each sample run.
package versions

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dbnascent/internal/metatable"
)

// Pipeline kinds.
const (
	Nascent = "nascent"
	Bidir   = "bidir"
)

// Path returns the version file of a sample:
// <root>/<paper>/software_versions/<sample>_<kind>.yaml.
func Path(dataRoot, paperName, sampleName, kind string) string {
	return filepath.Join(dataRoot, paperName, "software_versions", sampleName+"_"+kind+".yaml")
}

// Collect returns one record per pipeline run of every sample. A version
// file may hold several YAML documents, one per run; each becomes a record
// carrying the sample's sample_id, the document's fields in file order,
// and null for any of keys the document lacks. A sample without a version
// file yields a single all-null record.
func Collect(samples []*metatable.Record, dataRoot, kind string, keys []string) ([]*metatable.Record, error) {
	if kind != Nascent && kind != Bidir {
		return nil, fmt.Errorf("version kind must be %s or %s, got %q", Nascent, Bidir, kind)
	}

	var out []*metatable.Record
	for _, s := range samples {
		path := Path(dataRoot, s.String("paper_name"), s.String("sample_name"), kind)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			rec := metatable.RecordOf("sample_id", s.Value("sample_id"))
			fillNulls(rec, keys)
			out = append(out, rec)
			continue
		}

		runs, err := readRuns(path)
		if err != nil {
			return nil, err
		}
		for _, run := range runs {
			rec := metatable.RecordOf("sample_id", s.Value("sample_id"))
			rec.Update(run)
			fillNulls(rec, keys)
			out = append(out, rec)
		}
	}
	return out, nil
}

func fillNulls(rec *metatable.Record, keys []string) {
	for _, k := range keys {
		if !rec.Has(k) {
			rec.Set(k, nil)
		}
	}
}

// readRuns decodes every document of a version file as an ordered record.
// Empty documents are skipped.
func readRuns(path string) ([]*metatable.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var runs []*metatable.Record
	dec := yaml.NewDecoder(f)
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		rec, err := documentRecord(&doc)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if rec != nil {
			runs = append(runs, rec)
		}
	}
	return runs, nil
}

func documentRecord(doc *yaml.Node) (*metatable.Record, error) {
	node := doc
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		node = node.Content[0]
	}
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null") {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: run document is not a mapping", node.Line)
	}

	rec := metatable.NewRecord()
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v any
		if err := node.Content[i+1].Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Content[i+1].Line, err)
		}
		rec.Set(node.Content[i].Value, v)
	}
	return rec, nil
}
