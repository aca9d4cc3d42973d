package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

var _ repository.LocationRepository = (*LocationRepo)(nil)

// LocationRepo lectura del maestro de ubicaciones.
type LocationRepo struct {
	q Querier
}

func NewLocationRepository(q Querier) *LocationRepo {
	return &LocationRepo{q: q}
}

// GetByID obtiene una ubicación por ID; nil si no existe.
func (r *LocationRepo) GetByID(ctx context.Context, tenantID, locationID string) (*entity.Location, error) {
	query := `
		SELECT id, tenant_id, warehouse_id, code, role, sellable, created_at, updated_at
		FROM locations
		WHERE tenant_id = $1 AND id = $2`
	var loc entity.Location
	err := r.q.QueryRow(ctx, query, tenantID, locationID).Scan(
		&loc.ID, &loc.TenantID, &loc.WarehouseID, &loc.Code, &loc.Role,
		&loc.Sellable, &loc.CreatedAt, &loc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &loc, nil
}
