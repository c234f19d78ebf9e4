package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agrodoc/internal/config"
	"agrodoc/internal/db"
	"agrodoc/internal/diseaseinfo"
	"agrodoc/internal/labels"
	"agrodoc/internal/logger"
)

const defaultConfigPath = "config/app.yaml"

func rootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "agrodoc",
		Short:         "Plant disease identification server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the YAML configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing database tables and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Logging)
			defer logger.Close()

			database, err := db.Init(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}
			defer database.Close()
			slog.Info("database schema is up to date", "driver", database.Driver())
			return nil
		},
	}

	labelsCmd := &cobra.Command{
		Use:   "labels",
		Short: "Print the label table and any labels without disease information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			table, err := loadLabels(cfg.Model)
			if err != nil {
				return err
			}
			catalog, err := diseaseinfo.Default()
			if err != nil {
				return err
			}
			return printLabels(cmd, table, catalog)
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, labelsCmd)
	return rootCmd
}

// loadConfig reads path, falling back to defaults when the file is absent.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	slog.Warn("config file not found, using defaults", "path", path)
	cfg = config.Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadLabels(model config.ModelConfig) (labels.Table, error) {
	if model.LabelsPath == "" {
		return labels.Default(), nil
	}
	table, err := labels.Load(model.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("loading labels: %w", err)
	}
	return table, nil
}

func printLabels(cmd *cobra.Command, table labels.Table, catalog *diseaseinfo.Catalog) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tLABEL\tDISPLAY")
	for i, label := range table {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, label, labels.Display(label))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, label := range catalog.Missing(table) {
		fmt.Fprintf(cmd.OutOrStdout(), "no disease information for %s\n", label)
	}
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
