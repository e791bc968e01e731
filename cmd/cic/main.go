package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/config"
)

var Version = "dev"

var (
	logFormat string
	verbose   bool

	cfg    config.Config
	logger *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cic",
		Short:         "Credit Intelligence Center - credit request dashboard and reminder engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger = newLogger(cmd.Name())
			slog.SetDefault(logger)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(pushCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(duplicatesCmd())
	rootCmd.AddCommand(remindersCmd())
	rootCmd.AddCommand(roleCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger writes to stderr so command output on stdout stays clean. The
// dashboard owns the terminal, so it logs warnings and above only.
func newLogger(command string) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if command == "dashboard" && !verbose {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(logFormat, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h).With("cmd", command)
}
