package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var summarizeMonthYM string

var summarizeMonthCmd = &cobra.Command{
	Use:   "summarize-month",
	Short: "Aggregate live allocations for a month into month_summary",
	RunE:  runSummarizeMonth,
}

func init() {
	rootCmd.AddCommand(summarizeMonthCmd)
	summarizeMonthCmd.Flags().StringVar(&summarizeMonthYM, "ym", "", "year-month to summarize, e.g. 2026-06 (required)")
	_ = summarizeMonthCmd.MarkFlagRequired("ym")
}

func runSummarizeMonth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	summaries, err := rt.service.SummarizeMonth(ctx, effectiveTenant(), summarizeMonthYM)
	if err != nil {
		return err
	}
	fmt.Printf("%-6s %-12s %8s %8s %12s %12s %12s %12s\n",
		"ym", "marketplace", "orders", "units", "fob", "freight", "clearance", "duty")
	for _, s := range summaries {
		fmt.Printf("%-6s %-12s %8d %8d %12s %12s %12s %12s\n",
			s.YM, s.Marketplace, s.Orders, s.Units, s.FOB, s.Freight, s.Clearance, s.Duty)
	}
	return nil
}
