package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mila/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				return fmt.Errorf("no ntfy topic configured; set notifications.ntfy_topic in the config file")
			}

			service := notifications.NewService(cfg)
			if err := service.TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent test notification to %s\n", cfg.Notifications.NtfyTopic)
			return nil
		},
	}
}
