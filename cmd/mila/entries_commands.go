package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mila/internal/api"
)

func newEntriesCommand(ctx *commandContext) *cobra.Command {
	entriesCmd := &cobra.Command{
		Use:   "entries",
		Short: "Inspect and manage archive entries",
	}

	entriesCmd.AddCommand(newEntriesListCommand(ctx))
	entriesCmd.AddCommand(newEntriesShowCommand(ctx))
	entriesCmd.AddCommand(newEntriesRetryCommand(ctx))

	return entriesCmd
}

func newEntriesListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var community string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			entries, err := client.ListEntries(cmd.Context(), statuses, community)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No entries found.")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					strconv.FormatInt(entry.ID, 10),
					entry.Title,
					entry.Community,
					entry.Status,
					formatPhase(entry),
					entry.CreatedAt,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Community", "Status", "Phase", "Created"},
				rows,
				[]cellAlign{cellRight, cellLeft, cellLeft, cellLeft, cellLeft, cellLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVar(&community, "community", "", "Filter by community")
	return cmd
}

func newEntriesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show one entry with its validations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			payload, err := client.GetEntry(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printEntryDetail(out, payload.Entry)
			if len(payload.Validations) > 0 {
				fmt.Fprintln(out)
				rows := make([][]string, 0, len(payload.Validations))
				for _, v := range payload.Validations {
					rows = append(rows, []string{
						v.Validator,
						v.Decision,
						yesNo(v.Conflict),
						v.Notes,
						v.CreatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Validator", "Decision", "Conflict", "Notes", "Recorded"},
					rows,
					[]cellAlign{cellLeft, cellLeft, cellLeft, cellLeft, cellLeft},
				))
			}
			return nil
		},
	}
}

func newEntriesRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <entry-id>",
		Short: "Release a frozen entry back into the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			released, err := client.RetryEntry(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %d entry for reprocessing.\n", released)
			return nil
		},
	}
}

func printEntryDetail(out io.Writer, entry api.Entry) {
	fmt.Fprintf(out, "Entry %d: %s\n", entry.ID, entry.Title)
	fmt.Fprintf(out, "  Community:  %s\n", entry.Community)
	fmt.Fprintf(out, "  Submitter:  %s\n", entry.Submitter)
	fmt.Fprintf(out, "  Status:     %s (%s)\n", entry.Status, formatPhase(entry))
	fmt.Fprintf(out, "  Language:   %s\n", displayValue(entry.Language))
	fmt.Fprintf(out, "  Content:    %s\n", entry.ContentPointer)
	if entry.Transcript != "" {
		fmt.Fprintf(out, "  Transcript: %s\n", truncate(entry.Transcript, 120))
	}
	if len(entry.Atoms) > 0 {
		fmt.Fprintf(out, "  Atoms:      %s\n", strings.Join(entry.Atoms, "; "))
	}
	if entry.TxRef != "" {
		fmt.Fprintf(out, "  Anchor:     %s\n", entry.TxRef)
	}
	if entry.FailureReason != "" {
		fmt.Fprintf(out, "  Failure:    %s\n", entry.FailureReason)
	}
}

func displayValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "…"
}
