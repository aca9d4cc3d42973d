package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain/uom"
)

// Item ítem del maestro de artículos (solo los campos que consume el motor).
type Item struct {
	ID        string
	TenantID  string
	SKU       string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemUOMConfig configuración de unidades por ítem: dimensión, unidad canónica
// (debe coincidir con la unidad fija de la dimensión) y unidad de stockeo.
type ItemUOMConfig struct {
	ItemID       string
	TenantID     string
	Dimension    uom.Dimension
	CanonicalUOM string
	StockingUOM  string
}

// UOMConversion factor de conversión por ítem. El lookup es bidireccional:
// un factor A→B implica B→A = 1/factor.
type UOMConversion struct {
	ItemID   string
	TenantID string
	FromUOM  string
	ToUOM    string
	Factor   decimal.Decimal
}

// CanonicalQuantity resultado de canonicalizar una cantidad: se preserva lo
// ingresado junto al valor canónico para auditoría y display.
type CanonicalQuantity struct {
	Quantity        decimal.Decimal
	UOM             string
	Dimension       uom.Dimension
	EnteredQuantity decimal.Decimal
	EnteredUOM      string
}
