package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redline/internal/catalog"
	"redline/internal/config"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest.json> [manifest.json...]",
		Short: "Import revision entity manifests into the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(_ *config.Config, store *catalog.Store) error {
				for _, path := range args {
					manifest, err := catalog.LoadManifest(path)
					if err != nil {
						return err
					}
					count, err := store.Import(cmd.Context(), manifest)
					if err != nil {
						return fmt.Errorf("import %s: %w", path, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entities for revision %s\n", count, manifest.RevisionID)
				}
				return nil
			})
		},
	}
}
