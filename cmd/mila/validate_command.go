package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"mila/internal/api"
	"mila/internal/apiclient"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var validator string
	var decision string
	var notes string

	cmd := &cobra.Command{
		Use:   "validate <entry-id> [entry-id...]",
		Short: "Record a validator decision on one or more entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid entry id %q", arg)
				}
				ids = append(ids, id)
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(ids) == 1 {
				outcome, err := client.SubmitValidation(cmd.Context(), apiclient.ValidationRequest{
					EntryID:   ids[0],
					Validator: validator,
					Decision:  decision,
					Notes:     notes,
				})
				if err != nil {
					return err
				}
				printOutcome(out, ids[0], outcome)
				return nil
			}

			results, err := client.SubmitBulkValidation(cmd.Context(), apiclient.BulkValidationRequest{
				EntryIDs:  ids,
				Validator: validator,
				Decision:  decision,
				Notes:     notes,
			})
			if err != nil {
				return err
			}
			failures := 0
			for _, result := range results {
				if result.Error != "" {
					failures++
					fmt.Fprintf(out, "entry %d: error: %s\n", result.EntryID, result.Error)
					continue
				}
				printOutcome(out, result.EntryID, result.Outcome)
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d decisions failed", failures, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&validator, "validator", "", "Validator identity")
	cmd.Flags().StringVar(&decision, "decision", "", "Decision: approved or rejected")
	cmd.Flags().StringVar(&notes, "notes", "", "Optional decision notes")
	_ = cmd.MarkFlagRequired("validator")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func printOutcome(out io.Writer, id int64, outcome *api.ValidationOutcome) {
	if outcome == nil {
		fmt.Fprintf(out, "entry %d: decision recorded\n", id)
		return
	}
	switch {
	case outcome.Conflict:
		fmt.Fprintf(out, "entry %d: already resolved as %s; decision kept for audit\n", id, outcome.Entry.Status)
	case outcome.Resolved:
		fmt.Fprintf(out, "entry %d: resolved as %s\n", id, outcome.Entry.Status)
	default:
		fmt.Fprintf(out, "entry %d: decision recorded, awaiting quorum\n", id)
	}
}
