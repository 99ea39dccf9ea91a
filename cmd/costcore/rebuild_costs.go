package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCostsCmd = &cobra.Command{
	Use:   "rebuild-costs",
	Short: "Recompute lot_cost for every batch and refresh lot_balance.qty_in",
	RunE:  runRebuildCosts,
}

func init() {
	rootCmd.AddCommand(rebuildCostsCmd)
}

func runRebuildCosts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	warnings, err := rt.service.RebuildCosts(ctx, effectiveTenant())
	if err != nil {
		return err
	}
	fmt.Println("rebuild_costs complete")
	printWarnings(warnings)
	return nil
}
