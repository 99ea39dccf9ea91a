package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var getInventorySKU string

var getInventoryCmd = &cobra.Command{
	Use:   "get-inventory",
	Short: "Read current per-lot inventory balances",
	RunE:  runGetInventory,
}

func init() {
	rootCmd.AddCommand(getInventoryCmd)
	getInventoryCmd.Flags().StringVar(&getInventorySKU, "sku", "", "limit output to one internal_sku")
}

func runGetInventory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	balances, err := rt.service.GetInventory(ctx, getInventorySKU)
	if err != nil {
		return err
	}

	fmt.Printf("%-20s %-16s %12s %12s %12s\n", "internal_sku", "batch_id", "qty_in", "qty_sold", "available")
	for _, b := range balances {
		available := b.QtyIn - b.QtySold
		fmt.Printf("%-20s %-16s %12s %12s %12s\n",
			b.InternalSKU, b.BatchID,
			humanize.Comma(b.QtyIn), humanize.Comma(b.QtySold), humanize.Comma(available))
	}
	return nil
}
