package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostLayer capa de costo FIFO: un lote de inventario on-hand con su costo
// unitario propio. Solo la crean recepciones y ajustes/variaciones positivas
// ("receipt-authored"); los traslados nunca crean ni consumen capas.
type CostLayer struct {
	ID                string
	TenantID          string
	ItemID            string
	LocationID        string
	UOM               string
	OriginalQuantity  decimal.Decimal
	RemainingQuantity decimal.Decimal
	UnitCost          decimal.Decimal
	SourceType        string
	SourceID          string
	MovementID        string
	CreatedAt         time.Time
}

// CostLayerConsumption rastro de auditoría: qué capa financió qué salida.
type CostLayerConsumption struct {
	ID                  string
	LayerID             string
	QuantityConsumed    decimal.Decimal
	UnitCost            decimal.Decimal
	ConsumingMovementID string
	CreatedAt           time.Time
}
