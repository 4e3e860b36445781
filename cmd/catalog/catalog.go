// Package catalog implements subtype catalog management commands.
package catalog

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huelab/huelab-go/internal/conf"
	"github.com/huelab/huelab-go/internal/datastore"
	"github.com/huelab/huelab-go/internal/taxonomy"
)

// Command creates the catalog command with its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the subtype catalog",
	}

	cmd.AddCommand(importCommand(settings), listCommand(settings))
	return cmd
}

func openStore(settings *conf.Settings) (datastore.Interface, error) {
	store := datastore.New(settings)
	if store == nil {
		return nil, fmt.Errorf("no record store is enabled in the configuration")
	}
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return store, nil
}

func importCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "import [catalog.yaml]",
		Short: "Import subtypes from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := taxonomy.LoadCatalog(args[0])
			if err != nil {
				return err
			}
			if err := catalog.Validate(); err != nil {
				return err
			}

			store, err := openStore(settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SaveSubtypes(catalog); err != nil {
				return fmt.Errorf("failed to save catalog: %w", err)
			}
			fmt.Printf("Imported %d subtypes\n", len(catalog))
			return nil
		},
	}
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored subtype catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			catalog, err := store.GetSubtypes()
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			if len(catalog) == 0 {
				fmt.Println("Catalog is empty.")
				return nil
			}
			for i := range catalog {
				s := &catalog[i]
				period := string(s.TimePeriod)
				if period == "" {
					period = "-"
				}
				fmt.Printf("%-10s %-6s %-30s %s\n", s.Season, period, s.Name, s.Slug)
			}
			return nil
		},
	}
}
