package core

import (
	"context"
	"errors"
	"fmt"

	"landedcost/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService manages long-lived master data: products, categories, and
// the marketplace-sku -> internal-sku mapping (including kit expansion).
type CatalogService interface {
	GetProduct(ctx context.Context, internalSKU string) (*Product, error)
	UpsertProduct(ctx context.Context, p Product) error

	// ResolveSkuMap returns the active sku_map rows for (marketplace,
	// amazonSKU). Zero rows means the sku is unmapped. More than one row,
	// or a single row with a multiplier != 1, means amazonSKU is a kit.
	ResolveSkuMap(ctx context.Context, marketplace, amazonSKU string) ([]SkuMap, error)
	UpsertSkuMap(ctx context.Context, m SkuMap) error
}

type catalogService struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

func NewCatalogService(pool *pgxpool.Pool, logger logging.Logger) CatalogService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &catalogService{pool: pool, logger: logger}
}

func (s *catalogService) GetProduct(ctx context.Context, internalSKU string) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT internal_sku, category, cbm_per_unit
		FROM product
		WHERE internal_sku = $1
	`, internalSKU).Scan(&p.InternalSKU, &p.Category, &p.CBMPerUnit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s not found", internalSKU)
		}
		return nil, fmt.Errorf("failed to resolve product %s: %w", internalSKU, err)
	}
	return &p, nil
}

func (s *catalogService) UpsertProduct(ctx context.Context, p Product) error {
	if p.CBMPerUnit.IsNegative() {
		return newError(KindInvalidInbound, "product %s: cbm_per_unit must be non-negative, got %s", p.InternalSKU, p.CBMPerUnit)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO product (internal_sku, category, cbm_per_unit)
		VALUES ($1, $2, $3)
		ON CONFLICT (internal_sku) DO UPDATE SET category = $2, cbm_per_unit = $3
	`, p.InternalSKU, p.Category, p.CBMPerUnit)
	if err != nil {
		return wrapError(KindStoreError, err, "failed to upsert product %s", p.InternalSKU)
	}
	s.logger.Info("upserted product", zap.String("internal_sku", p.InternalSKU))
	return nil
}

func (s *catalogService) ResolveSkuMap(ctx context.Context, marketplace, amazonSKU string) ([]SkuMap, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT marketplace, amazon_sku, internal_sku, unit_multiplier, active
		FROM sku_map
		WHERE marketplace = $1 AND amazon_sku = $2 AND active = true
		ORDER BY internal_sku
	`, marketplace, amazonSKU)
	if err != nil {
		return nil, wrapError(KindStoreError, err, "failed to query sku_map for (%s, %s)", marketplace, amazonSKU)
	}
	defer rows.Close()

	var maps []SkuMap
	for rows.Next() {
		var m SkuMap
		if err := rows.Scan(&m.Marketplace, &m.AmazonSKU, &m.InternalSKU, &m.UnitMultiplier, &m.Active); err != nil {
			return nil, fmt.Errorf("failed to scan sku_map row: %w", err)
		}
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

func (s *catalogService) UpsertSkuMap(ctx context.Context, m SkuMap) error {
	if m.UnitMultiplier.LessThanOrEqual(decimal.Zero) {
		return newError(KindInvalidInbound, "sku_map (%s,%s,%s): unit_multiplier must be positive, got %s", m.Marketplace, m.AmazonSKU, m.InternalSKU, m.UnitMultiplier)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sku_map (marketplace, amazon_sku, internal_sku, unit_multiplier, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (marketplace, amazon_sku, internal_sku) DO UPDATE
		SET unit_multiplier = $4, active = $5
	`, m.Marketplace, m.AmazonSKU, m.InternalSKU, m.UnitMultiplier, m.Active)
	if err != nil {
		return wrapError(KindStoreError, err, "failed to upsert sku_map")
	}
	s.logger.Info("upserted sku_map",
		logging.Fields.Marketplace(m.Marketplace),
		zap.String("amazon_sku", m.AmazonSKU),
		zap.String("internal_sku", m.InternalSKU))
	return nil
}
