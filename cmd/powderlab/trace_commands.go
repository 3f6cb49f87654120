package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"powderlab/internal/api"
)

func newTraceCommand(ctx *commandContext) *cobra.Command {
	traceCmd := &cobra.Command{
		Use:   "trace <query>",
		Short: "Trace a batch lot or material lot through production",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var resp api.TraceSearchResponse
				if err := client.get(reqCtx, "/api/trace/search?q="+url.QueryEscape(args[0]), &resp); err != nil {
					return err
				}
				switch resp.Direction {
				case "backward":
					printBackwardTrace(cmd, *resp.Backward)
				case "forward":
					printForwardTrace(cmd, *resp.Forward)
				}
				return nil
			})
		},
	}

	traceCmd.AddCommand(newTraceBackwardCommand(ctx))
	traceCmd.AddCommand(newTraceForwardCommand(ctx))
	return traceCmd
}

func newTraceBackwardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backward <batch-lot>",
		Short: "List the material lots behind a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var resp api.BackwardTraceResponse
				if err := client.get(reqCtx, "/api/trace/backward/"+url.PathEscape(args[0]), &resp); err != nil {
					return err
				}
				printBackwardTrace(cmd, resp)
				return nil
			})
		},
	}
}

func newTraceForwardCommand(ctx *commandContext) *cobra.Command {
	var powder string

	cmd := &cobra.Command{
		Use:   "forward <lot>",
		Short: "List the batches that consumed a material lot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				query := url.Values{}
				query.Set("lot", args[0])
				if powder != "" {
					query.Set("powder", powder)
				}
				var resp api.ForwardTraceResponse
				if err := client.get(reqCtx, "/api/trace/forward?"+query.Encode(), &resp); err != nil {
					return err
				}
				printForwardTrace(cmd, resp)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&powder, "powder", "", "Powder name disambiguating the lot")
	return cmd
}

func printBackwardTrace(cmd *cobra.Command, trace api.BackwardTraceResponse) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Batch "+trace.Work.BatchLot, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Product", statusInfo, trace.Work.ProductName, colorize))
	fmt.Fprintln(out, renderStatusLine("Status", statusInfo, trace.Work.Status, colorize))

	rows := make([][]string, 0, len(trace.Materials))
	for _, material := range trace.Materials {
		for _, lot := range material.Lots {
			verdict := "no inspection"
			if lot.IncomingInspection != nil {
				verdict = lot.IncomingInspection.FinalResult
			}
			rows = append(rows, []string{
				material.Input.PowderName,
				lot.LotNumber,
				formatFloat(material.Input.ActualWeight),
				verdict,
			})
		}
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Powder", "Material lot", "Weight kg", "Incoming result"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func printForwardTrace(cmd *cobra.Command, trace api.ForwardTraceResponse) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	title := "Lot " + trace.LotNumber
	if trace.PowderName != "" {
		title = trace.PowderName + " / " + trace.LotNumber
	}
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
	if trace.Ambiguous {
		fmt.Fprintln(out, renderStatusLine("Scope", statusWarn, "lot matched without a powder name; spans all powders", colorize))
	}
	if trace.IncomingInspection != nil {
		fmt.Fprintln(out, renderStatusLine("Incoming result",
			verdictKind(trace.IncomingInspection.FinalResult), trace.IncomingInspection.FinalResult, colorize))
	}

	if len(trace.Batches) == 0 {
		fmt.Fprintln(out, "Lot was not consumed by any batch")
		return
	}
	rows := make([][]string, 0, len(trace.Batches))
	for _, batch := range trace.Batches {
		rows = append(rows, []string{
			batch.Work.BatchLot,
			batch.Work.ProductName,
			batch.Work.Status,
			batch.Input.PowderName,
			formatFloat(batch.Input.ActualWeight),
			batch.Input.InputTime,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Batch lot", "Product", "Status", "Powder", "Weight kg", "Consumed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}
