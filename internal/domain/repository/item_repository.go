package repository

import (
	"context"

	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
)

// ItemRepository puerto de lectura del maestro de artículos: configuración de
// unidades y factores de conversión por ítem. El motor nunca escribe aquí.
type ItemRepository interface {
	GetByID(ctx context.Context, tenantID, itemID string) (*entity.Item, error)
	GetUOMConfig(ctx context.Context, tenantID, itemID string) (*entity.ItemUOMConfig, error)
	GetConversion(ctx context.Context, tenantID, itemID, fromUOM, toUOM string) (*entity.UOMConversion, error)
}
