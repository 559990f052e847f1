// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dbnascent/internal/schema"
	"github.com/pdiddy/dbnascent/internal/sink"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create or print the database schema",
}

var schemaCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create every table that does not exist yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		store, err := sink.OpenConfig(cfg.Files, loadedSecrets)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.CreateSchema(context.Background()); err != nil {
			return err
		}
		fmt.Printf("Schema ready (%s, %d tables)\n", store.Dialect(), len(schema.IDs()))
		return nil
	},
}

var schemaPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the CREATE TABLE statements for a dialect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, _ := cmd.Flags().GetString("dialect")
		d, err := schema.ParseDialect(driver)
		if err != nil {
			return err
		}
		statements, err := schema.CreateStatements(d)
		if err != nil {
			return err
		}
		for _, stmt := range statements {
			fmt.Printf("%s;\n\n", stmt)
		}
		return nil
	},
}

func init() {
	schemaPrintCmd.Flags().String("dialect", "sqlite3", "SQL dialect: sqlite3, mysql, or pgx")

	schemaCmd.AddCommand(schemaCreateCmd)
	schemaCmd.AddCommand(schemaPrintCmd)
	rootCmd.AddCommand(schemaCmd)
}
