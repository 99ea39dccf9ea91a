package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"landedcost/internal/core"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var inboundValidate = validator.New()

var importInboundFile string

var importInboundCmd = &cobra.Command{
	Use:   "import-inbound",
	Short: "Upsert a batch header, its items, and duty pools, then rebuild its cost",
	RunE:  runImportInbound,
}

func init() {
	rootCmd.AddCommand(importInboundCmd)
	importInboundCmd.Flags().StringVarP(&importInboundFile, "file", "f", "", "path to a JSON inbound batch document (required)")
	_ = importInboundCmd.MarkFlagRequired("file")
}

// inboundDoc is the on-disk JSON shape accepted by import-inbound: a batch
// header plus its items and duty pools, matching the import_inbound
// command's inputs in §6.
type inboundDoc struct {
	BatchID         string    `json:"batch_id" validate:"required"`
	InboundDate     time.Time `json:"inbound_date"`
	FreightTotal    string    `json:"freight_total" validate:"required,numeric"`
	ClearanceTotal  string    `json:"clearance_total" validate:"required,numeric"`
	DestMarketplace string    `json:"dest_marketplace"`
	Note            string    `json:"note"`
	Items           []struct {
		InternalSKU string `json:"internal_sku" validate:"required"`
		Category    string `json:"category"`
		QtyIn       int64  `json:"qty_in" validate:"required,gt=0"`
		FOBUnit     string `json:"fob_unit" validate:"required,numeric"`
		CBMPerUnit  string `json:"cbm_per_unit" validate:"required,numeric"`
	} `json:"items" validate:"required,min=1,dive"`
	DutyPools []struct {
		Category  string `json:"category" validate:"required"`
		DutyTotal string `json:"duty_total" validate:"required,numeric"`
	} `json:"duty_pools" validate:"dive"`
}

func runImportInbound(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(importInboundFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", importInboundFile, err)
	}
	var doc inboundDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", importInboundFile, err)
	}
	if err := inboundValidate.Struct(doc); err != nil {
		return fmt.Errorf("invalid inbound document: %w", err)
	}

	freight, err := decimal.NewFromString(doc.FreightTotal)
	if err != nil {
		return fmt.Errorf("freight_total: %w", err)
	}
	clearance, err := decimal.NewFromString(doc.ClearanceTotal)
	if err != nil {
		return fmt.Errorf("clearance_total: %w", err)
	}

	in := core.InboundImport{
		Batch: core.Batch{
			BatchID:         doc.BatchID,
			InboundDate:     doc.InboundDate,
			FreightTotal:    freight,
			ClearanceTotal:  clearance,
			DestMarketplace: doc.DestMarketplace,
			Note:            doc.Note,
		},
	}
	for _, it := range doc.Items {
		fob, err := decimal.NewFromString(it.FOBUnit)
		if err != nil {
			return fmt.Errorf("item %s fob_unit: %w", it.InternalSKU, err)
		}
		cbm, err := decimal.NewFromString(it.CBMPerUnit)
		if err != nil {
			return fmt.Errorf("item %s cbm_per_unit: %w", it.InternalSKU, err)
		}
		in.Items = append(in.Items, core.InboundItem{
			BatchID:     doc.BatchID,
			InternalSKU: it.InternalSKU,
			Category:    it.Category,
			QtyIn:       it.QtyIn,
			FOBUnit:     fob,
			CBMPerUnit:  cbm,
		})
	}
	for _, dp := range doc.DutyPools {
		duty, err := decimal.NewFromString(dp.DutyTotal)
		if err != nil {
			return fmt.Errorf("duty pool %s duty_total: %w", dp.Category, err)
		}
		in.DutyPools = append(in.DutyPools, core.DutyPool{
			BatchID:   doc.BatchID,
			Category:  dp.Category,
			DutyTotal: duty,
		})
	}

	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	counts, warnings, err := rt.service.ImportInbound(ctx, effectiveTenant(), in)
	if err != nil {
		return err
	}
	fmt.Printf("batches upserted: %d, items upserted: %d, duty pools upserted: %d\n",
		counts.BatchesUpserted, counts.ItemsUpserted, counts.DutyPoolsUpserted)
	printWarnings(warnings)
	return nil
}
