package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
)

// CostLayerRepository puerto de persistencia de capas de costo FIFO y su
// rastro de consumo.
type CostLayerRepository interface {
	Create(ctx context.Context, layer *entity.CostLayer) error
	// ListOpen capas con remanente > 0 en orden FIFO (más antigua primero).
	ListOpen(ctx context.Context, tenantID, itemID, locationID string) ([]*entity.CostLayer, error)
	// ListOpenForUpdate igual pero bloqueando las filas (SELECT FOR UPDATE).
	ListOpenForUpdate(ctx context.Context, tenantID, itemID, locationID string) ([]*entity.CostLayer, error)
	UpdateRemaining(ctx context.Context, layerID string, remaining decimal.Decimal) error
	CreateConsumption(ctx context.Context, consumption *entity.CostLayerConsumption) error
	ListConsumptionsByMovement(ctx context.Context, movementID string) ([]*entity.CostLayerConsumption, error)
}
