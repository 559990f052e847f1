// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the dbnascent CLI, which builds and
// updates the DBNascent metadata database.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/dbnascent/internal/secrets"
	"github.com/pdiddy/dbnascent/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds database credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the dbnascent CLI.
var rootCmd = &cobra.Command{
	Use:   "dbnascent",
	Short: "Build and update the DBNascent nascent transcription database",
	Long: `dbnascent loads sample metadata, QC reports, bidirectional call summaries,
and pipeline versions for nascent transcription papers into a relational
database.

Run "schema create" once, "global" to load the organism and tissue
reference tables, "paper" for each paper directory under the data root,
and "searcheq" to rebuild the search term table. Every run compares the
incoming rows with the database and inserts only what is new.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./dbnascent.yaml or ~/.config/dbnascent/config.yaml)")
	pf.String("driver", "", "database driver: sqlite3, mysql, or pgx (overrides config)")
	pf.String("database", "", "database path, host:port/dbname, or postgres URL (overrides config)")
	pf.String("data-root", "", "directory holding one subdirectory per paper (overrides config)")
	pf.String("metrics-file", "", "write run metrics in Prometheus text format to this file")

	viper.BindPFlag("driver", pf.Lookup("driver"))
	viper.BindPFlag("database", pf.Lookup("database"))
	viper.BindPFlag("data_root", pf.Lookup("data-root"))
	viper.BindPFlag("metrics_file", pf.Lookup("metrics-file"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("dbnascent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "dbnascent"))
		}
	}

	viper.SetEnvPrefix("DBNASCENT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildConfig loads the configuration file viper located, then applies
// flag and DBNASCENT_* environment overrides.
func buildConfig() (types.BuildConfig, error) {
	cfg := types.DefaultBuildConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := types.LoadBuildConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	} else {
		fmt.Fprintln(os.Stderr, "warning: no config file found, using defaults")
	}

	if v := viper.GetString("driver"); v != "" {
		cfg.Files.Driver = v
	}
	if v := viper.GetString("database"); v != "" {
		cfg.Files.Database = v
	}
	if v := viper.GetString("data_root"); v != "" {
		cfg.Files.DataRoot = v
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
