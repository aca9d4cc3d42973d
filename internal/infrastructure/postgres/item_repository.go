package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/stock-ledger/internal/domain"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
	"github.com/tu-usuario/stock-ledger/internal/domain/uom"
)

var _ repository.ItemRepository = (*ItemRepo)(nil)

// ItemRepo lectura del maestro de artículos: configuración de unidades y
// factores de conversión.
type ItemRepo struct {
	q Querier
}

func NewItemRepository(q Querier) *ItemRepo {
	return &ItemRepo{q: q}
}

// GetByID obtiene un ítem por ID.
func (r *ItemRepo) GetByID(ctx context.Context, tenantID, itemID string) (*entity.Item, error) {
	query := `
		SELECT id, tenant_id, sku, name, created_at, updated_at
		FROM items
		WHERE tenant_id = $1 AND id = $2`
	var it entity.Item
	err := r.q.QueryRow(ctx, query, tenantID, itemID).Scan(
		&it.ID, &it.TenantID, &it.SKU, &it.Name, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

// GetUOMConfig configuración de unidades del ítem; nil si no está configurada.
func (r *ItemRepo) GetUOMConfig(ctx context.Context, tenantID, itemID string) (*entity.ItemUOMConfig, error) {
	query := `
		SELECT item_id, tenant_id, dimension, canonical_uom, stocking_uom
		FROM item_uom_configs
		WHERE tenant_id = $1 AND item_id = $2`
	var cfg entity.ItemUOMConfig
	var dimension string
	err := r.q.QueryRow(ctx, query, tenantID, itemID).Scan(
		&cfg.ItemID, &cfg.TenantID, &dimension, &cfg.CanonicalUOM, &cfg.StockingUOM,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item uom config: %w", err)
	}
	cfg.Dimension = uom.Dimension(dimension)
	return &cfg, nil
}

// GetConversion factor directo from→to del ítem; nil si no está registrado.
// El llamador resuelve el recíproco consultando en el otro sentido.
func (r *ItemRepo) GetConversion(ctx context.Context, tenantID, itemID, fromUOM, toUOM string) (*entity.UOMConversion, error) {
	query := `
		SELECT item_id, tenant_id, from_uom, to_uom, factor
		FROM item_uom_conversions
		WHERE tenant_id = $1 AND item_id = $2 AND from_uom = $3 AND to_uom = $4`
	var conv entity.UOMConversion
	err := r.q.QueryRow(ctx, query, tenantID, itemID, fromUOM, toUOM).Scan(
		&conv.ItemID, &conv.TenantID, &conv.FromUOM, &conv.ToUOM, &conv.Factor,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get uom conversion: %w", err)
	}
	return &conv, nil
}
