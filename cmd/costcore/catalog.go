package main

import (
	"context"
	"fmt"

	"landedcost/internal/core"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// catalogCmd groups master-data maintenance: product and sku_map upserts.
// These sit outside §6's seven-command table (the spec treats catalog
// bootstrap as an external collaborator's job) but are exposed here as a
// minimal operational on-ramp, matching how an ops team would actually
// seed product and sku_map rows before running import-inbound.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Maintain product and sku_map master data",
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

var (
	upsertProductSKU string
	upsertProductCat string
	upsertProductCBM string
)

var upsertProductCmd = &cobra.Command{
	Use:   "upsert-product",
	Short: "Create or update one product row",
	RunE:  runUpsertProduct,
}

func init() {
	catalogCmd.AddCommand(upsertProductCmd)
	upsertProductCmd.Flags().StringVar(&upsertProductSKU, "internal-sku", "", "internal_sku (required)")
	upsertProductCmd.Flags().StringVar(&upsertProductCat, "category", "", "category")
	upsertProductCmd.Flags().StringVar(&upsertProductCBM, "cbm-per-unit", "0", "cubic meters per unit")
	_ = upsertProductCmd.MarkFlagRequired("internal-sku")
}

func runUpsertProduct(cmd *cobra.Command, args []string) error {
	cbm, err := decimal.NewFromString(upsertProductCBM)
	if err != nil {
		return fmt.Errorf("cbm-per-unit: %w", err)
	}

	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.service.Catalog().UpsertProduct(ctx, core.Product{
		InternalSKU: upsertProductSKU,
		Category:    upsertProductCat,
		CBMPerUnit:  cbm,
	}); err != nil {
		return err
	}
	fmt.Printf("product %s upserted\n", upsertProductSKU)
	return nil
}

var (
	upsertSkuMapMarketplace string
	upsertSkuMapAmazonSKU   string
	upsertSkuMapInternalSKU string
	upsertSkuMapMultiplier  string
	upsertSkuMapActive      bool
)

var upsertSkuMapCmd = &cobra.Command{
	Use:   "upsert-sku-map",
	Short: "Create or update one marketplace-sku to internal-sku mapping row",
	RunE:  runUpsertSkuMap,
}

func init() {
	catalogCmd.AddCommand(upsertSkuMapCmd)
	upsertSkuMapCmd.Flags().StringVar(&upsertSkuMapMarketplace, "marketplace", "", "marketplace (required)")
	upsertSkuMapCmd.Flags().StringVar(&upsertSkuMapAmazonSKU, "amazon-sku", "", "marketplace-facing sku (required)")
	upsertSkuMapCmd.Flags().StringVar(&upsertSkuMapInternalSKU, "internal-sku", "", "internal_sku (required)")
	upsertSkuMapCmd.Flags().StringVar(&upsertSkuMapMultiplier, "unit-multiplier", "1", "units of internal_sku per marketplace unit; >1 active rows or multiplier != 1 makes amazon-sku a kit")
	upsertSkuMapCmd.Flags().BoolVar(&upsertSkuMapActive, "active", true, "whether this mapping row is active")
	_ = upsertSkuMapCmd.MarkFlagRequired("marketplace")
	_ = upsertSkuMapCmd.MarkFlagRequired("amazon-sku")
	_ = upsertSkuMapCmd.MarkFlagRequired("internal-sku")
}

func runUpsertSkuMap(cmd *cobra.Command, args []string) error {
	mult, err := decimal.NewFromString(upsertSkuMapMultiplier)
	if err != nil {
		return fmt.Errorf("unit-multiplier: %w", err)
	}

	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.service.Catalog().UpsertSkuMap(ctx, core.SkuMap{
		Marketplace:    upsertSkuMapMarketplace,
		AmazonSKU:      upsertSkuMapAmazonSKU,
		InternalSKU:    upsertSkuMapInternalSKU,
		UnitMultiplier: mult,
		Active:         upsertSkuMapActive,
	}); err != nil {
		return err
	}
	fmt.Printf("sku_map (%s,%s,%s) upserted\n", upsertSkuMapMarketplace, upsertSkuMapAmazonSKU, upsertSkuMapInternalSKU)
	return nil
}
