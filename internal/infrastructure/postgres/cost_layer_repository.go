package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

var _ repository.CostLayerRepository = (*CostLayerRepo)(nil)

// CostLayerRepo capas de costo FIFO y sus consumos.
type CostLayerRepo struct {
	q Querier
}

func NewCostLayerRepository(q Querier) *CostLayerRepo {
	return &CostLayerRepo{q: q}
}

// Create persiste una capa nueva con remaining = original.
func (r *CostLayerRepo) Create(ctx context.Context, layer *entity.CostLayer) error {
	if layer.ID == "" {
		layer.ID = uuid.New().String()
	}
	query := `
		INSERT INTO cost_layers
			(id, tenant_id, item_id, location_id, uom, original_quantity,
			 remaining_quantity, unit_cost, source_type, source_id, movement_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		layer.ID, layer.TenantID, layer.ItemID, layer.LocationID, layer.UOM,
		layer.OriginalQuantity, layer.RemainingQuantity, layer.UnitCost,
		nullIfEmpty(layer.SourceType), nullIfEmpty(layer.SourceID),
		nullIfEmpty(layer.MovementID), layer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create cost layer: %w", err)
	}
	return nil
}

// ListOpen capas con remanente positivo en orden FIFO (creación, luego id
// como desempate estable).
func (r *CostLayerRepo) ListOpen(ctx context.Context, tenantID, itemID, locationID string) ([]*entity.CostLayer, error) {
	return r.listOpen(ctx, tenantID, itemID, locationID, false)
}

// ListOpenForUpdate igual que ListOpen pero bloqueando las filas para consumo.
func (r *CostLayerRepo) ListOpenForUpdate(ctx context.Context, tenantID, itemID, locationID string) ([]*entity.CostLayer, error) {
	return r.listOpen(ctx, tenantID, itemID, locationID, true)
}

func (r *CostLayerRepo) listOpen(ctx context.Context, tenantID, itemID, locationID string, lock bool) ([]*entity.CostLayer, error) {
	query := `
		SELECT id, tenant_id, item_id, location_id, uom, original_quantity,
		       remaining_quantity, unit_cost, source_type, source_id, movement_id, created_at
		FROM cost_layers
		WHERE tenant_id = $1 AND item_id = $2 AND location_id = $3 AND remaining_quantity > 0
		ORDER BY created_at, id`
	if lock {
		query += " FOR UPDATE"
	}
	rows, err := r.q.Query(ctx, query, tenantID, itemID, locationID)
	if err != nil {
		return nil, fmt.Errorf("list open cost layers: %w", err)
	}
	defer rows.Close()
	var layers []*entity.CostLayer
	for rows.Next() {
		var l entity.CostLayer
		var sourceType, sourceID, movementID *string
		if err := rows.Scan(&l.ID, &l.TenantID, &l.ItemID, &l.LocationID, &l.UOM,
			&l.OriginalQuantity, &l.RemainingQuantity, &l.UnitCost,
			&sourceType, &sourceID, &movementID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cost layer: %w", err)
		}
		l.SourceType = deref(sourceType)
		l.SourceID = deref(sourceID)
		l.MovementID = deref(movementID)
		layers = append(layers, &l)
	}
	return layers, rows.Err()
}

// UpdateRemaining fija el remanente de una capa tras un consumo.
func (r *CostLayerRepo) UpdateRemaining(ctx context.Context, layerID string, remaining decimal.Decimal) error {
	_, err := r.q.Exec(ctx,
		`UPDATE cost_layers SET remaining_quantity = $1 WHERE id = $2`,
		remaining, layerID,
	)
	if err != nil {
		return fmt.Errorf("update cost layer remaining: %w", err)
	}
	return nil
}

// CreateConsumption registra la traza de consumo capa → movimiento.
func (r *CostLayerRepo) CreateConsumption(ctx context.Context, consumption *entity.CostLayerConsumption) error {
	if consumption.ID == "" {
		consumption.ID = uuid.New().String()
	}
	query := `
		INSERT INTO cost_layer_consumptions
			(id, layer_id, quantity_consumed, unit_cost, consuming_movement_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query,
		consumption.ID, consumption.LayerID, consumption.QuantityConsumed,
		consumption.UnitCost, consumption.ConsumingMovementID, consumption.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create cost layer consumption: %w", err)
	}
	return nil
}

// ListConsumptionsByMovement consumos hechos por un movimiento dado.
func (r *CostLayerRepo) ListConsumptionsByMovement(ctx context.Context, movementID string) ([]*entity.CostLayerConsumption, error) {
	query := `
		SELECT id, layer_id, quantity_consumed, unit_cost, consuming_movement_id, created_at
		FROM cost_layer_consumptions
		WHERE consuming_movement_id = $1
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, movementID)
	if err != nil {
		return nil, fmt.Errorf("list consumptions: %w", err)
	}
	defer rows.Close()
	var list []*entity.CostLayerConsumption
	for rows.Next() {
		var c entity.CostLayerConsumption
		if err := rows.Scan(&c.ID, &c.LayerID, &c.QuantityConsumed, &c.UnitCost,
			&c.ConsumingMovementID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan consumption: %w", err)
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
