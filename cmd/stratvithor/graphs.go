package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
)

func newGraphsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "graphs",
		Short: "List the valid graph definitions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}

			catalog, loadErr := promptgraph.NewCatalog(cfg.Definitions.Directory, promptgraph.WithCatalogLogger(logger))
			for _, definitionID := range catalog.List() {
				fmt.Fprintln(cmd.OutOrStdout(), definitionID)
			}
			return loadErr
		},
	}
}
