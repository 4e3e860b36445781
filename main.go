package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/huelab/huelab-go/cmd"
	"github.com/huelab/huelab-go/internal/conf"
	"github.com/huelab/huelab-go/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.InitWithLevel(level)

	if settings.Main.Log.Enabled {
		closeLog, err := logging.EnableFileOutput(settings.Main.Log.Path, level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening log file %s: %v\n", settings.Main.Log.Path, err)
			os.Exit(1)
		}
		defer func() { _ = closeLog() }()
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
