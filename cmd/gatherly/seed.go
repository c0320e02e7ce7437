package main

import (
	"fmt"

	"github.com/gatherly-dev/gatherly/internal/seed"
	"github.com/gatherly-dev/gatherly/internal/server"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.toml|file.yaml>",
	Short: "Load categories and events from a seed file",
	Long: `Load categories and events from a TOML or YAML file.

Existing categories (by name) and events (by name, category and date) are skipped,
so the same file can be applied repeatedly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := seed.Load(args[0])
		if err != nil {
			return err
		}

		app, err := server.Open()
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := seed.Apply(cmd.Context(), app.Catalog, uuid.Nil, f)
		if err != nil {
			return err
		}
		fmt.Printf("Categories created: %d, events created: %d, events skipped: %d\n",
			res.CategoriesCreated, res.EventsCreated, res.EventsSkipped)
		return nil
	},
}
