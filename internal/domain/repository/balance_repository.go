package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
)

// BalanceRepository puerto del balance materializado por
// (tenant, ítem, ubicación, UOM canónica).
type BalanceRepository interface {
	// Get devuelve el balance; si no existe la fila, un balance en cero.
	Get(ctx context.Context, tenantID, itemID, locationID, uomCode string) (*entity.InventoryBalance, error)
	// GetForUpdate igual que Get pero bloquea la fila (SELECT FOR UPDATE);
	// usar dentro de una transacción abierta.
	GetForUpdate(ctx context.Context, tenantID, itemID, locationID, uomCode string) (*entity.InventoryBalance, error)
	// ApplyDelta upsert atómico: crea la fila en cero si no existe y suma el
	// delta firmado. Única vía de mutación del balance (misma tx que la línea).
	ApplyDelta(ctx context.Context, tenantID, itemID, locationID, uomCode string, delta decimal.Decimal) error
	// RecomputeFromLines re-deriva el balance sumando líneas posteadas.
	// Camino de verificación/legacy, nunca el camino caliente.
	RecomputeFromLines(ctx context.Context, tenantID, itemID, locationID, uomCode string) (decimal.Decimal, error)
	// ListPage pagina los balances materializados en orden estable. Usado por
	// el barrido de verificación.
	ListPage(ctx context.Context, limit, offset int) ([]*entity.InventoryBalance, error)
}
