package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	fifoRebuildYM          string
	fifoRebuildMarketplace string
)

var fifoRebuildMonthCmd = &cobra.Command{
	Use:   "fifo-rebuild-month",
	Short: "Reverse existing allocations for a month and replay normalizer + FIFO",
	RunE:  runFIFORebuildMonth,
}

func init() {
	rootCmd.AddCommand(fifoRebuildMonthCmd)
	fifoRebuildMonthCmd.Flags().StringVar(&fifoRebuildYM, "ym", "", "year-month to rebuild, e.g. 2026-06 (required)")
	fifoRebuildMonthCmd.Flags().StringVar(&fifoRebuildMarketplace, "marketplace", "", "limit the rebuild to one marketplace")
	_ = fifoRebuildMonthCmd.MarkFlagRequired("ym")
}

func runFIFORebuildMonth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, warnings, err := rt.service.FIFORebuildMonth(ctx, effectiveTenant(), fifoRebuildYM, fifoRebuildMarketplace)
	if err != nil {
		return err
	}
	fmt.Printf("allocated units: %d\n", result.AllocatedUnits)
	printWarnings(warnings)
	return nil
}
