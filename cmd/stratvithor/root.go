package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/luislascano01/Stratvithor/internal/config"
	"github.com/luislascano01/Stratvithor/providers/observability/slogobs"
)

type globalFlags struct {
	configPath string
	logFormat  string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "stratvithor",
		Short:         "Generate company reports from prompt graphs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to the YAML config file")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format: text or json (default from STRATVITHOR_LOG_FORMAT)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (default from STRATVITHOR_LOG_LEVEL)")

	root.AddCommand(
		newServeCommand(flags),
		newRunCommand(flags),
		newGraphsCommand(flags),
		newShowCommand(flags),
	)
	return root
}

// load reads the configuration and builds the process logger.
func (flags *globalFlags) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}

	format := slogobs.GetFormatFromEnv()
	if flags.logFormat != "" {
		format = slogobs.ParseFormat(flags.logFormat)
	}
	level := slogobs.GetLogLevelFromEnv()
	if flags.logLevel != "" {
		level = slogobs.ParseLevel(flags.logLevel)
	}

	logger := slog.New(slogobs.NewHandler(format, level, os.Stderr))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
