package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reverseOrderID   string
	reverseOrderNote string
)

var reverseOrderCmd = &cobra.Command{
	Use:   "reverse-order",
	Short: "Reverse all live allocations for an order (idempotent)",
	RunE:  runReverseOrder,
}

func init() {
	rootCmd.AddCommand(reverseOrderCmd)
	reverseOrderCmd.Flags().StringVar(&reverseOrderID, "order-id", "", "order_id to reverse (required)")
	reverseOrderCmd.Flags().StringVar(&reverseOrderNote, "note", "", "reversal note, e.g. a ticket reference")
	_ = reverseOrderCmd.MarkFlagRequired("order-id")
}

func runReverseOrder(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.service.ReverseOrder(ctx, effectiveTenant(), reverseOrderID, reverseOrderNote)
	if err != nil {
		return err
	}
	fmt.Printf("reversed rows: %d, affected lots: %v\n", result.ReversedRows, result.AffectedLots)
	return nil
}
