package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mila/internal/api"
	"mila/internal/daemonrun"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the mila daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			runningKind := sevBad
			if status.Running {
				runningKind = sevGood
			}
			fmt.Fprintln(out, renderStatusLine("Running", runningKind, yesNo(status.Running), colorize))
			if status.ArchivePath != "" {
				fmt.Fprintln(out, renderStatusLine("Archive", sevInfo, status.ArchivePath, colorize))
			}
			if status.Pipeline.LastError != "" {
				fmt.Fprintln(out, renderStatusLine("Last error", sevWarn, status.Pipeline.LastError, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Stage health", colorize) {
				fmt.Fprintln(out, line)
			}
			if len(status.Pipeline.StageHealth) == 0 {
				fmt.Fprintln(out, renderStatusLine("Stages", sevWarn, "none configured", colorize))
			}
			for _, health := range status.Pipeline.StageHealth {
				kind := sevGood
				if !health.Ready {
					kind = sevBad
				}
				fmt.Fprintln(out, renderStatusLine(health.Name, kind, health.Detail, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Entries", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderArchiveStats(status.Pipeline.ArchiveStats))

			if table := renderStageMetrics(status.Pipeline.Metrics); table != "" {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Stage metrics", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, table)
			}
			return nil
		},
	}
}

func renderArchiveStats(stats map[string]int) string {
	if len(stats) == 0 {
		return statusIndent + "archive is empty"
	}
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(stats[name])})
	}
	return renderTable([]string{"Status", "Count"}, rows, []cellAlign{cellLeft, cellRight})
}

func renderStageMetrics(metrics map[string]api.StageMetrics) string {
	if len(metrics) == 0 {
		return ""
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		m := metrics[name]
		rows = append(rows, []string{
			name,
			strconv.FormatInt(m.Started, 10),
			strconv.FormatInt(m.Completed, 10),
			strconv.FormatInt(m.Failed, 10),
			strconv.FormatInt(m.Retried, 10),
		})
	}
	return renderTable(
		[]string{"Stage", "Started", "Completed", "Failed", "Retried"},
		rows,
		[]cellAlign{cellLeft, cellRight, cellRight, cellRight, cellRight},
	)
}

func formatPhase(entry api.Entry) string {
	phase := entry.Phase
	if entry.NeedsReview {
		phase += " (review)"
	}
	return strings.TrimSpace(phase)
}
