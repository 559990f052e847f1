//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Ingest groups the database build targets. Each builds the CLI first and
// writes run metrics under metrics/.
type Ingest mg.Namespace

func dbnascent(metricsName string, args ...string) error {
	mg.Deps(Build)
	bin := filepath.Join(binDir, binName)
	args = append(args, "--metrics-file", filepath.Join("metrics", metricsName+".prom"))
	return sh.RunV(bin, args...)
}

// Schema creates the database tables.
func (Ingest) Schema() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "schema", "create")
}

// Global loads the organism and tissue reference tables.
func (Ingest) Global() error {
	return dbnascent("global", "global")
}

// Papers ingests the papers listed in the space-separated PAPERS
// environment variable, or every directory under data/ when it is unset.
func (Ingest) Papers() error {
	papers := strings.Fields(os.Getenv("PAPERS"))
	if len(papers) == 0 {
		entries, err := os.ReadDir("data")
		if err != nil {
			return fmt.Errorf("listing data: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				papers = append(papers, e.Name())
			}
		}
	}
	if len(papers) == 0 {
		fmt.Println("No papers to ingest.")
		return nil
	}
	return dbnascent("paper", append([]string{"paper"}, papers...)...)
}

// Searcheq rebuilds the search term equivalence table.
func (Ingest) Searcheq() error {
	return dbnascent("searcheq", "searcheq")
}

// All runs a full database build: schema, reference tables, every paper,
// and the search terms.
func (Ingest) All() {
	mg.SerialDeps(Ingest.Schema, Ingest.Global, Ingest.Papers, Ingest.Searcheq)
}
