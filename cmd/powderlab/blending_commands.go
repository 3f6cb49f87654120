package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"powderlab/internal/api"
)

func newBlendCommand(ctx *commandContext) *cobra.Command {
	blendCmd := &cobra.Command{
		Use:   "blend",
		Short: "Manage blending batches and material inputs",
	}

	blendCmd.AddCommand(newBlendCreateCommand(ctx))
	blendCmd.AddCommand(newBlendConsumeCommand(ctx))
	blendCmd.AddCommand(newBlendCompleteCommand(ctx))
	blendCmd.AddCommand(newBlendListCommand(ctx))
	blendCmd.AddCommand(newBlendShowCommand(ctx))
	blendCmd.AddCommand(newBlendValidateCommand(ctx))

	return blendCmd
}

func newBlendCreateCommand(ctx *commandContext) *cobra.Command {
	var productCode, operator string
	var targetWeight float64
	var mainWeights []string

	cmd := &cobra.Command{
		Use:   "create <product>",
		Short: "Open a blending batch for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.CreateWorkRequest{
				ProductName:       args[0],
				ProductCode:       productCode,
				Operator:          operator,
				TargetTotalWeight: targetWeight,
			}
			for _, raw := range mainWeights {
				name, weight, err := parseMainWeightFlag(raw)
				if err != nil {
					return err
				}
				if req.MainPowderWeights == nil {
					req.MainPowderWeights = map[string]float64{}
				}
				req.MainPowderWeights[name] = weight
			}

			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var work api.BlendingWork
				if err := client.post(reqCtx, "/api/blending/works", req, &work); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created blending work %d\n", work.ID)
				fmt.Fprintf(out, "Work order: %s\n", work.WorkOrder)
				fmt.Fprintf(out, "Batch lot:  %s\n", work.BatchLot)
				return nil
			})
		},
	}

	cmd.Flags().Float64VarP(&targetWeight, "weight", "w", 0, "Target total weight in kg")
	cmd.Flags().StringVar(&productCode, "code", "", "Product code")
	cmd.Flags().StringVar(&operator, "operator", "", "Operator name")
	cmd.Flags().StringArrayVar(&mainWeights, "main", nil, "Pre-weighed main powder as powder=weight (repeatable)")
	_ = cmd.MarkFlagRequired("weight")
	return cmd
}

func newBlendConsumeCommand(ctx *commandContext) *cobra.Command {
	var actualWeight float64
	var targetWeight, tolerance float64
	var inputBy string

	cmd := &cobra.Command{
		Use:   "consume <work-id> <powder> <lot>",
		Short: "Record a validated material input",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			workID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid work id %q", args[0])
			}
			req := api.ConsumeMaterialRequest{
				BlendingWorkID: workID,
				PowderName:     args[1],
				MaterialLot:    args[2],
				ActualWeight:   actualWeight,
				InputBy:        inputBy,
			}
			if cmd.Flags().Changed("target") {
				req.TargetWeight = &targetWeight
			}
			if cmd.Flags().Changed("tolerance") {
				req.TolerancePercent = &tolerance
			}

			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var resp api.ConsumeMaterialResponse
				if err := client.post(reqCtx, "/api/blending/materials", req, &resp); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderStatusLine(args[1], statusOK,
					fmt.Sprintf("target %s, deviation %.2f%%", formatFloat(resp.TargetWeight), resp.WeightDeviation),
					shouldColorize(out)))
				return nil
			})
		},
	}

	cmd.Flags().Float64VarP(&actualWeight, "weight", "w", 0, "Measured weight in kg")
	cmd.Flags().Float64Var(&targetWeight, "target", 0, "Target weight override in kg")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0, "Deviation tolerance override in percent")
	cmd.Flags().StringVar(&inputBy, "by", "", "Operator recording the input")
	_ = cmd.MarkFlagRequired("weight")
	return cmd
}

func newBlendCompleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <work-id>",
		Short: "Complete a blending batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid work id %q", args[0])
			}
			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var work api.BlendingWork
				path := "/api/blending/works/" + strconv.FormatInt(workID, 10) + "/complete"
				if err := client.post(reqCtx, path, struct{}{}, &work); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Completed batch %s (total %s kg)\n",
					work.BatchLot, formatFloat(work.ActualTotalWeight))
				return nil
			})
		},
	}
}

func newBlendListCommand(ctx *commandContext) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blending batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				path := "/api/blending/works"
				if status != "" {
					path += "?status=" + url.QueryEscape(status)
				}
				var resp api.WorkListResponse
				if err := client.get(reqCtx, path, &resp); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(resp.Works) == 0 {
					fmt.Fprintln(out, "No blending works found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Works))
				for _, work := range resp.Works {
					rows = append(rows, []string{
						strconv.FormatInt(work.ID, 10),
						work.BatchLot,
						work.ProductName,
						work.Status,
						formatFloat(work.TargetTotalWeight),
						formatFloat(work.ActualTotalWeight),
						orDash(work.Operator),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Batch lot", "Product", "Status", "Target kg", "Actual kg", "Operator"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (in_progress or completed)")
	return cmd
}

func newBlendShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <work-id>",
		Short: "Show a blending batch and its inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid work id %q", args[0])
			}
			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var detail api.WorkDetailResponse
				if err := client.get(reqCtx, "/api/blending/works/"+strconv.FormatInt(workID, 10), &detail); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader(detail.Work.BatchLot, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Product", statusInfo, detail.Work.ProductName, colorize))
				fmt.Fprintln(out, renderStatusLine("Work order", statusInfo, detail.Work.WorkOrder, colorize))
				fmt.Fprintln(out, renderStatusLine("Status", statusInfo, detail.Work.Status, colorize))
				fmt.Fprintln(out, renderStatusLine("Target weight", statusInfo, formatFloat(detail.Work.TargetTotalWeight)+" kg", colorize))
				fmt.Fprintln(out, renderStatusLine("Actual weight", statusInfo, formatFloat(detail.Work.ActualTotalWeight)+" kg", colorize))

				if len(detail.Inputs) == 0 {
					fmt.Fprintln(out, "No material inputs recorded")
					return nil
				}
				rows := make([][]string, 0, len(detail.Inputs))
				for _, input := range detail.Inputs {
					rows = append(rows, []string{
						input.PowderName,
						joinLots(input.MaterialLots),
						formatFloat(input.TargetWeight),
						formatFloat(input.ActualWeight),
						fmt.Sprintf("%.2f%%", input.WeightDeviation),
						yesNo(input.IsValid),
						input.InputTime,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Powder", "Lots", "Target kg", "Actual kg", "Deviation", "Valid", "Recorded"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newBlendValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <powder> <lot>",
		Short: "Check a material lot before weighing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				query := url.Values{}
				query.Set("powder", args[0])
				query.Set("lot", args[1])
				var resp map[string]bool
				if err := client.get(reqCtx, "/api/blending/validate-lot?"+query.Encode(), &resp); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderStatusLine(args[1], statusOK, "lot accepted for "+args[0], shouldColorize(out)))
				return nil
			})
		},
	}
}
