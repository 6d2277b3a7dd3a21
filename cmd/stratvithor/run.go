package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/luislascano01/Stratvithor/core/task"
)

type runFlags struct {
	definition string
	options    task.Options
	save       bool
	timeout    time.Duration
}

func newRunCommand(flags *globalFlags) *cobra.Command {
	run := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <company>",
		Short: "Generate one report in-process and print the final node states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if run.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, run.timeout)
				defer cancel()
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.shutdown()

			taskID, err := a.service.CreateTask(ctx, args[0], run.definition, run.options)
			if err != nil {
				return err
			}
			if err := a.service.Wait(ctx, taskID); err != nil {
				_ = a.service.Cancel(taskID)
				return fmt.Errorf("task %s did not finish: %w", taskID, err)
			}

			snapshot, err := a.service.Status(taskID)
			if err != nil {
				return err
			}

			if run.save {
				if _, err := a.service.Save(ctx, taskID); err != nil {
					return err
				}
				logger.Info("task saved", slog.String("task_id", taskID), slog.String("store", cfg.Store.Driver))
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(snapshot); err != nil {
				return err
			}

			if failed := countStatus(snapshot, task.StatusFailed); failed > 0 {
				return fmt.Errorf("%d node(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&run.definition, "definition", "d", "", "graph definition id")
	cmd.Flags().BoolVar(&run.options.Mock, "mock", false, "use the deterministic stub fetcher and molder")
	cmd.Flags().BoolVar(&run.options.WebSearch, "web-search", false, "search the web for each section")
	cmd.Flags().BoolVar(&run.options.FinancialContext, "financial", false, "add the company's market data to each section")
	cmd.Flags().BoolVar(&run.save, "save", false, "save the finished task to the configured store")
	cmd.Flags().DurationVar(&run.timeout, "timeout", 30*time.Minute, "give up after this long")
	_ = cmd.MarkFlagRequired("definition")
	return cmd
}

func countStatus(snapshot task.Snapshot, status task.NodeStatus) int {
	count := 0
	for _, state := range snapshot.States {
		if state.Status == status {
			count++
		}
	}
	return count
}
