package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mila/internal/api"
	"mila/internal/apiclient"
)

func newCommunitiesCommand(ctx *commandContext) *cobra.Command {
	communitiesCmd := &cobra.Command{
		Use:   "communities",
		Short: "Manage community governance profiles",
	}

	communitiesCmd.AddCommand(newCommunitiesListCommand(ctx))
	communitiesCmd.AddCommand(newCommunitiesShowCommand(ctx))
	communitiesCmd.AddCommand(newCommunitiesSetCommand(ctx))
	communitiesCmd.AddCommand(newCommunitiesCheckCommand(ctx))

	return communitiesCmd
}

func newCommunitiesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured communities",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			communities, err := client.ListCommunities(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(communities) == 0 {
				fmt.Fprintln(out, "No communities configured.")
				return nil
			}

			rows := make([][]string, 0, len(communities))
			for _, community := range communities {
				rows = append(rows, []string{
					community.Name,
					community.Region,
					strconv.Itoa(len(community.Validators)),
					strconv.Itoa(community.MinValidators),
					yesNo(community.AnchoringEnabled),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Region", "Validators", "Quorum", "Anchoring"},
				rows,
				[]cellAlign{cellLeft, cellLeft, cellRight, cellRight, cellLeft},
			))
			return nil
		},
	}
}

func newCommunitiesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one community profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			community, err := client.GetCommunity(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Community: %s\n", community.Name)
			if community.Description != "" {
				fmt.Fprintf(out, "  About:       %s\n", community.Description)
			}
			fmt.Fprintf(out, "  Region:      %s\n", displayValue(community.Region))
			fmt.Fprintf(out, "  Language:    %s\n", displayValue(community.DefaultLanguage))
			fmt.Fprintf(out, "  Allowed:     %s\n", displayList(community.AllowedLanguages))
			fmt.Fprintf(out, "  Validators:  %s\n", displayList(community.Validators))
			fmt.Fprintf(out, "  Quorum:      %d\n", community.MinValidators)
			fmt.Fprintf(out, "  Sensitive:   %s\n", displayList(community.SensitiveTerms))
			fmt.Fprintf(out, "  Anchoring:   %s\n", yesNo(community.AnchoringEnabled))
			return nil
		},
	}
}

func newCommunitiesSetCommand(ctx *commandContext) *cobra.Command {
	var (
		description      string
		defaultLanguage  string
		region           string
		validators       []string
		allowedLanguages []string
		sensitiveTerms   []string
		minValidators    int
		anchoring        bool
	)

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create or update a community profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			community, err := client.SetCommunity(cmd.Context(), apiclient.CommunityRequest{
				Name:             args[0],
				Description:      description,
				DefaultLanguage:  defaultLanguage,
				Region:           region,
				Validators:       validators,
				AllowedLanguages: allowedLanguages,
				SensitiveTerms:   sensitiveTerms,
				MinValidators:    minValidators,
				AnchoringEnabled: anchoring,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved community %s (quorum %d, %d validators).\n",
				community.Name, community.MinValidators, len(community.Validators))
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Community description")
	cmd.Flags().StringVar(&defaultLanguage, "language", "", "Default language (BCP 47)")
	cmd.Flags().StringVar(&region, "region", "", "Geographic region")
	cmd.Flags().StringArrayVar(&validators, "validator", nil, "Validator identity (repeatable)")
	cmd.Flags().StringArrayVar(&allowedLanguages, "allow-language", nil, "Allowed language (repeatable)")
	cmd.Flags().StringArrayVar(&sensitiveTerms, "sensitive-term", nil, "Sensitive term (repeatable)")
	cmd.Flags().IntVar(&minValidators, "min-validators", 1, "Decisions required before resolution")
	cmd.Flags().BoolVar(&anchoring, "anchoring", false, "Anchor validated entries on the ledger")
	return cmd
}

func newCommunitiesCheckCommand(ctx *commandContext) *cobra.Command {
	var (
		title      string
		language   string
		transcript string
	)

	cmd := &cobra.Command{
		Use:   "check <name>",
		Short: "Dry-run community rules against hypothetical content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			check, err := client.CheckRules(cmd.Context(), args[0], api.CheckRequest{
				Title:      title,
				Language:   language,
				Transcript: transcript,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if check.Pass {
				fmt.Fprintf(out, "PASS: content satisfies %s community rules.\n", check.Community)
				return nil
			}
			fmt.Fprintf(out, "FAIL: %d rule violation(s):\n", len(check.Violations))
			for _, violation := range check.Violations {
				fmt.Fprintf(out, "  - %s\n", violation)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Hypothetical entry title")
	cmd.Flags().StringVar(&language, "language", "", "Hypothetical language")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Hypothetical transcript text")
	return cmd
}

func displayList(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
