package repository

import (
	"context"

	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
)

// LocationRepository puerto de lectura del maestro de ubicaciones.
type LocationRepository interface {
	GetByID(ctx context.Context, tenantID, locationID string) (*entity.Location, error)
}
