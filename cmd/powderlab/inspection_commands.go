package main

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"powderlab/internal/api"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Run and review quality inspections",
	}

	inspectCmd.AddCommand(newInspectBeginCommand(ctx))
	inspectCmd.AddCommand(newInspectSubmitCommand(ctx))
	inspectCmd.AddCommand(newInspectParticleCommand(ctx))
	inspectCmd.AddCommand(newInspectIncompleteCommand(ctx))
	inspectCmd.AddCommand(newInspectShowCommand(ctx))
	inspectCmd.AddCommand(newInspectDeleteCommand(ctx))

	return inspectCmd
}

func newInspectBeginCommand(ctx *commandContext) *cobra.Command {
	var inspectionType string
	var inspector string

	cmd := &cobra.Command{
		Use:   "begin <powder> <lot>",
		Short: "Start or resume an inspection for a powder lot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var resp api.BeginInspectionResponse
				err := client.post(reqCtx, "/api/inspections/begin", api.BeginInspectionRequest{
					PowderName:     args[0],
					LotNumber:      args[1],
					InspectionType: inspectionType,
					Inspector:      inspector,
				}, &resp)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch resp.State {
				case "completed":
					fmt.Fprintf(out, "Inspection for %s / %s is already finalized (%s)\n",
						args[0], args[1], resp.Result.FinalResult)
					return nil
				case "in_progress":
					fmt.Fprintf(out, "Resuming inspection %s\n", resp.Progress.Progress)
				default:
					fmt.Fprintf(out, "Started %s inspection with %d item(s)\n", inspectionType, len(resp.Items))
				}
				fmt.Fprintln(out, renderItemsTable(resp.Items))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&inspectionType, "type", "t", "daily", "Inspection type (daily or periodic)")
	cmd.Flags().StringVar(&inspector, "inspector", "", "Inspector name")
	return cmd
}

func renderItemsTable(items []api.InspectionItem) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		kind := "direct"
		if item.IsWeightBased {
			kind = "weight pair"
		}
		if item.IsParticleSize {
			kind = fmt.Sprintf("particle (%d buckets)", len(item.Buckets))
		}
		rows = append(rows, []string{
			item.Name,
			item.DisplayName,
			orDash(item.Unit),
			formatBound(item.Min, item.Max),
			item.Type,
			kind,
		})
	}
	return renderTable(
		[]string{"Item", "Name", "Unit", "Spec", "Type", "Kind"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func newInspectSubmitCommand(ctx *commandContext) *cobra.Command {
	var values []string
	var pairs []string
	var inspector string

	cmd := &cobra.Command{
		Use:   "submit <powder> <lot> <item>",
		Short: "Submit replicate measurements for one item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.SubmitItemRequest{
				PowderName: args[0],
				LotNumber:  args[1],
				ItemName:   args[2],
				Inspector:  inspector,
				Values:     values,
			}
			for _, raw := range pairs {
				pair, err := parsePairFlag(raw)
				if err != nil {
					return err
				}
				req.Pairs = append(req.Pairs, pair)
			}

			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var resp api.SubmitItemResponse
				if err := client.post(reqCtx, "/api/inspections/items", req, &resp); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderStatusLine(args[2], verdictKind(resp.Result),
					fmt.Sprintf("average %s", formatFloatPtr(resp.Average)), colorize))
				if resp.Completed {
					fmt.Fprintln(out, "Inspection complete; result finalized")
				} else if resp.Progress != "" {
					fmt.Fprintf(out, "Progress: %s\n", resp.Progress)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&values, "value", "v", nil, "Measured value (repeatable, up to 3)")
	cmd.Flags().StringArrayVarP(&pairs, "pair", "p", nil, "Weight pair as before,after (repeatable, up to 3)")
	cmd.Flags().StringVar(&inspector, "inspector", "", "Inspector name")
	return cmd
}

func newInspectParticleCommand(ctx *commandContext) *cobra.Command {
	var buckets []string
	var inspector string

	cmd := &cobra.Command{
		Use:   "particle <powder> <lot>",
		Short: "Submit the particle size distribution",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ParticleSizeRequest{
				PowderName: args[0],
				LotNumber:  args[1],
				Inspector:  inspector,
			}
			for _, raw := range buckets {
				mesh, value1, value2, err := parseBucketFlag(raw)
				if err != nil {
					return err
				}
				req.Buckets = append(req.Buckets, api.ParticleBucketSubmission{
					MeshSize: mesh,
					Value1:   value1,
					Value2:   value2,
				})
			}

			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var resp api.ParticleSizeResponse
				if err := client.post(reqCtx, "/api/inspections/particle-size", req, &resp); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(resp.Buckets))
				for _, bucket := range resp.Buckets {
					rows = append(rows, []string{
						bucket.MeshSize,
						formatFloatPtr(bucket.Value1),
						formatFloatPtr(bucket.Value2),
						formatFloatPtr(bucket.Average),
						bucket.Result,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Mesh", "Value 1", "Value 2", "Average", "Result"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				fmt.Fprintln(out, renderStatusLine("ParticleSize", verdictKind(resp.Result), "", shouldColorize(out)))
				if resp.Completed {
					fmt.Fprintln(out, "Inspection complete; result finalized")
				} else if resp.Progress != "" {
					fmt.Fprintf(out, "Progress: %s\n", resp.Progress)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&buckets, "bucket", "b", nil, "Bucket as mesh=value1,value2 (repeatable)")
	cmd.Flags().StringVar(&inspector, "inspector", "", "Inspector name")
	return cmd
}

func newInspectIncompleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "incomplete",
		Short: "List inspections still in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var resp api.IncompleteListResponse
				if err := client.get(reqCtx, "/api/inspections/incomplete", &resp); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(resp.Inspections) == 0 {
					fmt.Fprintln(out, "No inspections in progress")
					return nil
				}
				rows := make([][]string, 0, len(resp.Inspections))
				for _, progress := range resp.Inspections {
					rows = append(rows, []string{
						progress.PowderName,
						progress.LotNumber,
						progress.InspectionType,
						progress.Progress,
						orDash(progress.Inspector),
						progress.StartTime,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Powder", "Lot", "Type", "Progress", "Inspector", "Started"},
					rows,
					nil,
				))
				return nil
			})
		},
	}
}

func newInspectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <powder> <lot>",
		Short: "Show the stored inspection result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				var result api.InspectionResult
				path := "/api/inspections/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])
				if err := client.get(reqCtx, path, &result); err != nil {
					return err
				}
				printResult(cmd, result)
				return nil
			})
		},
	}
}

func printResult(cmd *cobra.Command, result api.InspectionResult) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader(fmt.Sprintf("%s / %s", result.PowderName, result.LotNumber), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Final result", verdictKind(result.FinalResult), orDash(result.FinalResult), colorize))
	fmt.Fprintln(out, renderStatusLine("Type", statusInfo, result.InspectionType, colorize))
	fmt.Fprintln(out, renderStatusLine("Category", statusInfo, result.Category, colorize))
	fmt.Fprintln(out, renderStatusLine("Inspector", statusInfo, orDash(result.Inspector), colorize))
	fmt.Fprintln(out, renderStatusLine("Inspected at", statusInfo, result.InspectionTime, colorize))
	if result.FinalizedAt != "" {
		fmt.Fprintln(out, renderStatusLine("Finalized at", statusInfo, result.FinalizedAt, colorize))
	}

	if len(result.Items) > 0 {
		names := make([]string, 0, len(result.Items))
		for name := range result.Items {
			names = append(names, name)
		}
		sort.Strings(names)

		rows := make([][]string, 0, len(names))
		for _, name := range names {
			item := result.Items[name]
			values := make([]string, 0, len(item.Values))
			for _, value := range item.Values {
				values = append(values, formatFloatPtr(value))
			}
			rows = append(rows, []string{
				name,
				strings.Join(values, ", "),
				formatFloatPtr(item.Average),
				item.Result,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Item", "Values", "Average", "Result"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
		))
	}

	if len(result.ParticleBuckets) > 0 {
		rows := make([][]string, 0, len(result.ParticleBuckets))
		for _, bucket := range result.ParticleBuckets {
			rows = append(rows, []string{
				bucket.MeshSize,
				formatFloatPtr(bucket.Value1),
				formatFloatPtr(bucket.Value2),
				formatFloatPtr(bucket.Average),
				bucket.Result,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Mesh", "Value 1", "Value 2", "Average", "Result"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
	}
}

func newInspectDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <powder> <lot>",
		Short: "Delete an inspection result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				path := "/api/inspections/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])
				if err := client.delete(reqCtx, path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted result for %s / %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var powder, lot, category, since, until string
	var finalized bool

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Search stored inspection results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if powder != "" {
				query.Set("powder", powder)
			}
			if lot != "" {
				query.Set("lot", lot)
			}
			if category != "" {
				query.Set("category", category)
			}
			if since != "" {
				query.Set("since", since)
			}
			if until != "" {
				query.Set("until", until)
			}
			if finalized {
				query.Set("finalized", "1")
			}

			return ctx.withClient(func(reqCtx context.Context, client *apiClient) error {
				path := "/api/results"
				if encoded := query.Encode(); encoded != "" {
					path += "?" + encoded
				}
				var resp api.ResultListResponse
				if err := client.get(reqCtx, path, &resp); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(resp.Results) == 0 {
					fmt.Fprintln(out, "No results found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Results))
				for _, result := range resp.Results {
					rows = append(rows, []string{
						result.PowderName,
						result.LotNumber,
						result.InspectionType,
						result.Category,
						orDash(result.FinalResult),
						result.InspectionTime,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Powder", "Lot", "Type", "Category", "Result", "Inspected"},
					rows,
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&powder, "powder", "", "Filter by powder name")
	cmd.Flags().StringVar(&lot, "lot", "", "Filter by lot number substring")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&since, "since", "", "Only results at or after this RFC3339 time")
	cmd.Flags().StringVar(&until, "until", "", "Only results before this RFC3339 time")
	cmd.Flags().BoolVar(&finalized, "finalized", false, "Only finalized results")
	return cmd
}
