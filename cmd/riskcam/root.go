package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/riskcam/internal/config"
	"github.com/ayusman/riskcam/internal/logger"
	"github.com/ayusman/riskcam/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

var (
	configPath string
	logLevel   string

	// settings is loaded once in PersistentPreRunE for every subcommand.
	settings *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "riskcam",
	Short:         "Camera client for a remote vision detection service",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		level, err := logger.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		logger.Init(level, os.Stderr, cfg.Log.Color)

		settings = cfg
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn, error or silent")
}

// openJournal opens the alert journal, or returns nil when none is configured.
func openJournal(cfg *config.Config) (*store.Store, error) {
	path := cfg.Journal.Path
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	logger.Info("Main", "alert journal at %s", path)
	return st, nil
}
