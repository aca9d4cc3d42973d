package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryBalance balance materializado por (tenant, ítem, ubicación, UOM
// canónica). Se muta únicamente aplicando deltas firmados dentro de la misma
// transacción que inserta la línea de movimiento; nunca se recalcula por scan
// en el camino caliente.
type InventoryBalance struct {
	TenantID   string
	ItemID     string
	LocationID string
	UOM        string
	OnHand     decimal.Decimal
	Reserved   decimal.Decimal
	UpdatedAt  time.Time
}

// Available cantidad disponible: on-hand menos reservado.
func (b *InventoryBalance) Available() decimal.Decimal {
	return b.OnHand.Sub(b.Reserved)
}
