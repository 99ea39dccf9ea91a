package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	importSalesFile        string
	importSalesMarketplace string
	importSalesReplace     bool
)

var importSalesCmd = &cobra.Command{
	Use:   "import-sales",
	Short: "Append a marketplace sales CSV export to sales_raw",
	RunE:  runImportSales,
}

func init() {
	rootCmd.AddCommand(importSalesCmd)
	importSalesCmd.Flags().StringVarP(&importSalesFile, "file", "f", "", "path to the sales CSV export (required)")
	importSalesCmd.Flags().StringVar(&importSalesMarketplace, "marketplace", "", "marketplace to assign rows lacking their own marketplace column")
	importSalesCmd.Flags().BoolVar(&importSalesReplace, "replace-range", false, "delete existing sales_raw rows within the file's timestamp range before inserting")
	_ = importSalesCmd.MarkFlagRequired("file")
}

func runImportSales(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(importSalesFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", importSalesFile, err)
	}

	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	n, warnings, err := rt.service.ImportSalesRaw(ctx, effectiveTenant(), raw, importSalesMarketplace, importSalesReplace)
	if err != nil {
		return err
	}
	fmt.Printf("rows inserted: %d\n", n)
	printWarnings(warnings)
	return nil
}
