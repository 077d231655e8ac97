package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"csvinsight/adapters/sqlstore"
	"csvinsight/ai"
	"csvinsight/internal"
	"csvinsight/internal/config"
	"csvinsight/internal/container"
	"csvinsight/internal/errors"
	"csvinsight/internal/migration"
	"csvinsight/internal/report"
)

const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
	formatHTML     = "html"
)

func newMetricsCmd() *cobra.Command {
	var format string
	var parseDates, sequential bool

	cmd := &cobra.Command{
		Use:   "metrics [file]",
		Short: "Print the metrics report of a CSV or XLSX file",
		Long: `Compute the descriptive metrics report locally. No model is called.

Example: csvinsight metrics ventas.csv --format markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadOffline()
			cfg.History = config.HistoryConfig{}
			if cmd.Flags().Changed("parse-dates") {
				cfg.Metrics.ParseDates = parseDates
			}
			if sequential {
				cfg.Metrics.Parallel = false
			}
			return runMetrics(cmd, cfg, args[0], format)
		},
	}

	cmd.Flags().StringVar(&format, "format", formatJSON, "Output format: json|markdown|html")
	cmd.Flags().BoolVar(&parseDates, "parse-dates", false, "Detect date columns in CSV files")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "Run profilers on a single goroutine")
	return cmd
}

func runMetrics(cmd *cobra.Command, cfg *config.Config, path, format string) error {
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(cfg.Log.Level))
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c, err := container.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	rep, err := c.AnalysisService.Metrics(cmd.Context(), filepath.Base(path), content)
	if err != nil {
		return cliError(err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		raw, err := ai.MarshalReport(rep)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(raw))
		return err
	case formatMarkdown:
		_, err = fmt.Fprint(out, report.Markdown(rep))
		return err
	case formatHTML:
		_, err = out.Write(report.HTML(rep, filepath.Base(path)))
		return err
	default:
		return fmt.Errorf("unknown format %q (use json, markdown or html)", format)
	}
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [file]",
		Short: "Profile a file and ask the configured model for observations",
		Long: `Run the full analysis with the provider selected by LLM_PROVIDER.

Example: GEMINI_API_KEY=... csvinsight analyze ventas.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			internal.DefaultLogger.SetLevel(internal.ParseLogLevel(cfg.Log.Level))

			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			c, err := container.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			outcome, err := c.AnalysisService.Analyze(cmd.Context(), filepath.Base(args[0]), content)
			if err != nil {
				return cliError(err)
			}

			raw, err := json.MarshalIndent(outcome.Result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			if u := outcome.Usage; u != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "analysis %s: %s/%s, %d tokens\n", outcome.ID, u.Provider, u.Model, u.TotalTokens)
			}
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored analyses (requires HISTORY_DSN)",
	}
	cmd.AddCommand(newHistoryListCmd(), newHistoryShowCmd(), newHistoryUsageCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := historyContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			list, err := c.AnalysisService.ListAnalyses(cmd.Context(), limit, offset)
			if err != nil {
				return cliError(err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILE\tROWS\tCOLS\tHEALTH\tMODEL\tCREATED")
			for _, a := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f\t%s\t%s\n",
					a.ID, a.Filename, a.Rows, a.Columns, a.HealthScore, a.Model, a.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum analyses to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Analyses to skip")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid analysis id: %w", err)
			}
			c, err := historyContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			out := cmd.OutOrStdout()
			if format == formatMarkdown {
				rep, err := c.AnalysisService.StoredReport(cmd.Context(), id)
				if err != nil {
					return cliError(err)
				}
				_, err = fmt.Fprint(out, report.Markdown(rep))
				return err
			}

			record, err := c.AnalysisService.GetAnalysis(cmd.Context(), id)
			if err != nil {
				return cliError(err)
			}
			fmt.Fprintf(out, "%s  %s  %s/%s  %d tokens\n", record.ID, record.Filename, record.Provider, record.Model, record.TotalTokens)
			fmt.Fprintln(out, record.ResultJSON)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatJSON, "json prints the model result, markdown the metrics report")
	return cmd
}

func newHistoryUsageCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarize model token usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := historyContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			summary, err := c.UsageService.Summary(cmd.Context(), time.Duration(days)*24*time.Hour)
			if err != nil {
				return cliError(err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tMODEL\tREQUESTS\tPROMPT\tCOMPLETION\tTOTAL")
			for _, m := range summary.ByModel {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
					m.Provider, m.Model, m.RequestCount, m.PromptTokens, m.CompletionTokens, m.TotalTokens)
			}
			fmt.Fprintf(tw, "\t\t%d\t%d\t%d\t%d\n",
				summary.RequestCount, summary.TotalPromptTokens, summary.TotalCompletionTokens, summary.TotalTokens)
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Trailing window in days")
	return cmd
}

func historyContainer(cmd *cobra.Command) (*container.Container, error) {
	cfg := config.LoadOffline()
	if !cfg.History.Enabled() {
		return nil, fmt.Errorf("HISTORY_DSN is not set")
	}
	return container.New(cmd.Context(), cfg)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the history schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadOffline()
			if !cfg.History.Enabled() {
				return fmt.Errorf("HISTORY_DSN is not set")
			}
			db, err := sqlstore.Open(cmd.Context(), cfg.History)
			if err != nil {
				return err
			}
			defer db.Close()

			runner := migration.NewRunner(cfg.History.Driver)
			if err := runner.Run(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "history schema at version %s (%s)\n", runner.Version(), cfg.History.Driver)
			return nil
		},
	}
}

// cliError prefers the user-facing message and keeps the cause for context
func cliError(err error) error {
	if errors.IsAppError(err) {
		return fmt.Errorf("%s (%v)", errors.PublicMessage(err), err)
	}
	return err
}
