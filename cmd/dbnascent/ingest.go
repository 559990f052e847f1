// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/dbnascent/internal/ingest"
	"github.com/pdiddy/dbnascent/internal/metrics"
	"github.com/pdiddy/dbnascent/internal/sink"
)

// session is an open database and the driver running against it.
type session struct {
	store  *sink.Store
	driver *ingest.Driver
}

func openSession() (*session, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	store, err := sink.OpenConfig(cfg.Files, loadedSecrets)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	return &session{
		store: store,
		driver: &ingest.Driver{
			Sink:    store,
			Config:  cfg,
			Out:     os.Stdout,
			Metrics: metrics.New(runID),
			RunID:   runID,
		},
	}, nil
}

// close writes the metrics file when one was requested and closes the
// database.
func (s *session) close() {
	if path := viper.GetString("metrics_file"); path != "" {
		if err := s.driver.Metrics.WriteTextfile(path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: writing metrics: %v\n", err)
		}
	}
	s.store.Close()
}

var globalCmd = &cobra.Command{
	Use:   "global",
	Short: "Load the organism and tissue reference tables",
	Long: `Global creates any missing tables, then reads the organism and tissue
tables named in the config and inserts the rows the database does not
already hold.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		_, err = s.driver.Global(context.Background())
		return err
	},
}

var paperCmd = &cobra.Command{
	Use:   "paper <paper-id>...",
	Short: "Add papers and their samples to the database",
	Long: `Paper ingests each named paper directory under the data root: sample and
experiment metadata, QC reports and scores, bidirectional call summaries,
treatment conditions, and pipeline versions. Each paper runs in its own
transaction; a failed paper leaves the database unchanged and the
remaining papers still run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		failed := 0
		for _, id := range args {
			if _, err := s.driver.Paper(context.Background(), id); err != nil {
				failed++
				if errors.Is(err, ingest.ErrPaperNotFound) {
					fmt.Fprintf(os.Stderr, "warning: %v\n", err)
					continue
				}
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d paper(s) failed", failed, len(args))
		}
		return nil
	},
}

var searcheqCmd = &cobra.Command{
	Use:   "searcheq",
	Short: "Rebuild the search term equivalence table",
	Long: `Searcheq collects every searchable value in the database, adds the
manually curated synonyms, writes the result to the configured search
table file, and replaces the searchEquiv table with it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		_, err = s.driver.SearchEquiv(context.Background())
		return err
	},
}

func init() {
	rootCmd.AddCommand(globalCmd)
	rootCmd.AddCommand(paperCmd)
	rootCmd.AddCommand(searcheqCmd)
}
