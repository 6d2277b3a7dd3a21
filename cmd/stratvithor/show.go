package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
)

func newShowCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show [task-id]",
		Short: "Print a saved task, or list saved task ids",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}

			a := &app{config: cfg, logger: logger}
			defer a.close(context.Background())

			saved, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")

			if len(args) == 0 {
				taskIDs, err := saved.List(cmd.Context())
				if err != nil {
					return err
				}
				return encoder.Encode(taskIDs)
			}

			record, err := saved.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return encoder.Encode(record)
		},
	}
}
