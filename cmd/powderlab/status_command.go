package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"powderlab/internal/api"
	"powderlab/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and environment health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			err := ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var status api.DaemonStatus
				if err := client.get(reqCtx, "/api/status", &status); err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
				fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
				return nil
			})
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, err.Error(), colorize))
			}

			cfg, cfgErr := ctx.ensureConfig()
			if cfgErr != nil {
				return cfgErr
			}
			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, check := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusError
				if check.Passed {
					kind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}
			return nil
		},
	}
}
