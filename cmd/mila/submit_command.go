package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mila/internal/apiclient"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		title     string
		submitter string
		language  string
		license   string
		community string
		pointer   string
		file      string
		metadata  []string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a knowledge entry for processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := apiclient.SubmitRequest{
				Title:          title,
				Submitter:      submitter,
				Language:       language,
				License:        license,
				Community:      community,
				ContentPointer: pointer,
			}

			if file != "" {
				if pointer != "" {
					return fmt.Errorf("--file and --pointer are mutually exclusive")
				}
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read content file: %w", err)
				}
				req.ContentBase64 = base64.StdEncoding.EncodeToString(data)
			}

			if len(metadata) > 0 {
				req.Metadata = make(map[string]string, len(metadata))
				for _, pair := range metadata {
					key, value, found := strings.Cut(pair, "=")
					if !found || strings.TrimSpace(key) == "" {
						return fmt.Errorf("metadata %q is not key=value", pair)
					}
					req.Metadata[strings.TrimSpace(key)] = value
				}
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			entry, err := client.SubmitEntry(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Accepted entry %d (%s)\n", entry.ID, entry.Title)
			fmt.Fprintf(out, "Community: %s  Status: %s\n", entry.Community, entry.Status)
			fmt.Fprintf(out, "Content: %s\n", entry.ContentPointer)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Entry title")
	cmd.Flags().StringVar(&submitter, "submitter", "", "Submitter identity")
	cmd.Flags().StringVar(&language, "language", "", "Spoken language (BCP 47)")
	cmd.Flags().StringVar(&license, "license", "", "Content license")
	cmd.Flags().StringVar(&community, "community", "", "Owning community")
	cmd.Flags().StringVar(&pointer, "pointer", "", "Content pointer already in storage")
	cmd.Flags().StringVar(&file, "file", "", "Local media file to upload inline")
	cmd.Flags().StringArrayVar(&metadata, "meta", nil, "Additional metadata as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("submitter")
	_ = cmd.MarkFlagRequired("community")
	return cmd
}
