package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/analytics"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/config"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/database"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/roundtrip"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/service"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/tui"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply sqlite schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openSQLite(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", cfg.Database.Path)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty sqlite database with sample credit requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openSQLite(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.SeedFixtures(cmd.Context(), db, time.Now().In(cfg.Location()), cfg.User.Email); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seeded sample data")
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every record, reminder, note and role from the sqlite store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Store.Backend != config.BackendSQLite {
				return fmt.Errorf("reset only supports the sqlite backend")
			}
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			db, err := openSQLite(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			maint := &service.MaintenanceService{DB: db}
			if err := maint.Reset(cmd.Context()); err != nil {
				return err
			}
			logger.Info("database reset", "path", cfg.Database.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			ws, b, err := openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			var services tui.Services
			if b.DB != nil {
				services.Maintenance = &service.MaintenanceService{DB: b.DB}
			}
			p := tea.NewProgram(tui.New(ctx, cfg, ws, services), tea.WithAltScreen(), tea.WithContext(ctx))
			// Send blocks until the event loop reads it, and Update itself
			// triggers changes.
			ws.OnChange(func() { go p.Send(tui.ChangedMsg{}) })

			done := make(chan error, 1)
			go func() { done <- ws.Run(ctx) }()

			_, runErr := p.Run()
			cancel()
			if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("workspace stopped", "err", err)
			}
			if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
				return runErr
			}
			return nil
		},
	}
}

func readPreview(cmd *cobra.Command, ws *service.Workspace, path string) (roundtrip.Preview, error) {
	f, err := os.Open(path)
	if err != nil {
		return roundtrip.Preview{}, err
	}
	defer f.Close()
	return ws.PreviewCSV(cmd.Context(), filepath.Base(path), f)
}

func printPreview(out io.Writer, p roundtrip.Preview) {
	fmt.Fprintf(out, "%s: %d row(s), %d update(s), %d insert(s)\n", p.FileName, p.Summary.Total, p.Summary.Updates, p.Summary.Inserts)
	for _, is := range p.Issues {
		fmt.Fprintf(out, "  issue: %s\n", is)
	}
	for _, d := range p.Diffs {
		fields := make([]string, 0, len(d.Changed))
		for f, c := range d.Changed {
			fields = append(fields, fmt.Sprintf("%s %q -> %q", f, c.From, c.To))
		}
		sort.Strings(fields)
		fmt.Fprintf(out, "  %s: %s\n", d.Combo, strings.Join(fields, "; "))
	}
}

func previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview FILE",
		Short: "Validate a round-trip CSV and show the changes it would make",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, b, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			p, err := readPreview(cmd, ws, args[0])
			if err != nil {
				return err
			}
			printPreview(cmd.OutOrStdout(), p)
			if p.Blocked() {
				return service.ErrPreviewHasIssues
			}
			return nil
		},
	}
}

func pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push FILE",
		Short: "Apply a round-trip CSV to the matched credit requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, b, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			p, err := readPreview(cmd, ws, args[0])
			if err != nil {
				return err
			}
			printPreview(cmd.OutOrStdout(), p)
			res, err := ws.PushCSV(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d, skipped %d, failed %d\n", res.Updated, res.Skipped, res.Failed)
			return err
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		out    string
		search string
		status string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered credit requests as a round-trip CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, b, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			c := ws.Criteria()
			c.Search, c.Status = search, status
			ws.SetCriteria(c)

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := ws.ExportCSV(w); err != nil {
				return err
			}
			logger.Info("exported credit requests", "rows", len(ws.View()), "out", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&search, "search", "", "substring filter")
	cmd.Flags().StringVar(&status, "status", "", "Pending or Completed")
	return cmd
}

func riskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "risk",
		Short: "Print the headline summary, SLA buckets and risk index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, b, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			cur := ws.Settings().Currency
			rep := ws.Report()
			out := cmd.OutOrStdout()
			head := rep.Headline()
			fmt.Fprintf(out, "Records: %d  Total: %s  Avg: %s  Pending: %d\n", head.Count,
				analytics.FormatCurrency(head.Total, cur), analytics.FormatCurrency(head.Avg, cur), head.Pending)
			fmt.Fprintln(out, "SLA buckets:")
			for _, label := range credit.SLABuckets {
				bk := rep.SLA.Get(label)
				fmt.Fprintf(out, "  %-8s %5d  %s\n", bk.Label, bk.Count, analytics.FormatCurrency(bk.Total, cur))
			}
			r := rep.Risk
			fmt.Fprintf(out, "Risk: %d (%s)\n", r.Score, r.Label)
			fmt.Fprintf(out, "  pending %.1f  aging %.1f  high-dollar %.1f  trend %.1f\n", r.Factors.Pending, r.Factors.Aging, r.Factors.HighDollar, r.Factors.Trend)
			fmt.Fprintf(out, "  trend: %d this week vs %d last week (%+.0f%%)\n", rep.Trend.Current, rep.Trend.Previous, rep.Trend.PctChange)
			fmt.Fprintln(out, analytics.DailySummary(ws.Records(), ws.Now(), cur))
			return nil
		},
	}
}

func duplicatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates",
		Short: "List likely duplicate credit requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, b, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			pairs := ws.Duplicates()
			out := cmd.OutOrStdout()
			if len(pairs) == 0 {
				fmt.Fprintln(out, "no duplicates found")
				return nil
			}
			for _, p := range pairs {
				fmt.Fprintf(out, "%-6s %.2f  %s (%s)  ~  %s (%s)\n", p.Kind, p.Similarity, p.A.Combo(), p.A.ID, p.B.Combo(), p.B.ID)
			}
			return nil
		},
	}
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Evaluate day-before reminder alerts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Run one reminder evaluation and print the alerts that fire",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, b, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			due, err := ws.CheckReminders(cmd.Context(), ws.Now())
			if err != nil {
				return err
			}
			for _, n := range due {
				fmt.Fprintln(cmd.OutOrStdout(), n.Message)
			}
			if len(due) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no reminders due")
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Follow the stores and check reminders every interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ws, b, err := openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			logger.Info("watching reminders", "interval", ws.Settings().CheckInterval)
			if err := ws.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	})
	return cmd
}

func roleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role EMAIL",
		Short: "Show the role and tabs resolved for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			role, err := service.ResolveRole(cmd.Context(), b.Roles, "", args[0])
			if err != nil {
				return err
			}
			tabs := make([]string, 0, len(rbac.Tabs))
			for _, t := range rbac.VisibleTabs(role) {
				tabs = append(tabs, string(t))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\ntabs: %s\n", args[0], role, role.DisplayName(), strings.Join(tabs, ", "))
			return nil
		},
	}
}
