package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"toastd/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file",
	Long:  `Parses and validates the config file and prints the resolved toast settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfigManager(configPath(cmd)).Load()
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		return printSummary(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func printSummary(w io.Writer, cfg *config.Config) error {
	s, err := cfg.Toasts.Resolve()
	if err != nil {
		return err
	}
	storage := "disabled"
	if cfg.Storage != nil && cfg.Storage.Driver != "" {
		storage = cfg.Storage.Driver
	}
	fmt.Fprintln(w, "Config is valid.")
	fmt.Fprintf(w, "  max visible:   %d\n", s.MaxVisible)
	fmt.Fprintf(w, "  appearance:    %s / %s / %s\n", s.Appearance.Position, s.Appearance.Animation, s.Appearance.Theme)
	fmt.Fprintf(w, "  timeout:       %s\n", s.Timing.DefaultTimeout)
	fmt.Fprintf(w, "  storage:       %s\n", storage)
	fmt.Fprintf(w, "  desktop:       %t\n", cfg.Desktop.Enabled)
	fmt.Fprintf(w, "  telegram:      %t\n", cfg.Telegram.Enabled)
	fmt.Fprintf(w, "  announcements: %d\n", len(cfg.Announcements))
	fmt.Fprintf(w, "  units:         %d watched\n", len(cfg.Units.Names))
	fmt.Fprintf(w, "  debug:         %t\n", cfg.Debug.Enabled)
	return nil
}
