package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

var _ repository.BalanceRepository = (*BalanceRepo)(nil)

// BalanceRepo saldos materializados por (tenant, item, ubicación, UOM).
type BalanceRepo struct {
	q Querier
}

func NewBalanceRepository(q Querier) *BalanceRepo {
	return &BalanceRepo{q: q}
}

// Get devuelve el saldo; si la fila no existe devuelve un saldo en cero
// (ausencia de fila equivale a existencia cero).
func (r *BalanceRepo) Get(ctx context.Context, tenantID, itemID, locationID, uomCode string) (*entity.InventoryBalance, error) {
	return r.get(ctx, tenantID, itemID, locationID, uomCode, false)
}

// GetForUpdate igual que Get pero bloquea la fila con SELECT FOR UPDATE.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, tenantID, itemID, locationID, uomCode string) (*entity.InventoryBalance, error) {
	return r.get(ctx, tenantID, itemID, locationID, uomCode, true)
}

func (r *BalanceRepo) get(ctx context.Context, tenantID, itemID, locationID, uomCode string, lock bool) (*entity.InventoryBalance, error) {
	query := `
		SELECT tenant_id, item_id, location_id, uom, on_hand, reserved, updated_at
		FROM inventory_balances
		WHERE tenant_id = $1 AND item_id = $2 AND location_id = $3 AND uom = $4`
	if lock {
		query += " FOR UPDATE"
	}
	var b entity.InventoryBalance
	err := r.q.QueryRow(ctx, query, tenantID, itemID, locationID, uomCode).Scan(
		&b.TenantID, &b.ItemID, &b.LocationID, &b.UOM, &b.OnHand, &b.Reserved, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.InventoryBalance{
				TenantID:   tenantID,
				ItemID:     itemID,
				LocationID: locationID,
				UOM:        uomCode,
				OnHand:     decimal.Zero,
				Reserved:   decimal.Zero,
			}, nil
		}
		return nil, fmt.Errorf("get inventory balance: %w", err)
	}
	return &b, nil
}

// ApplyDelta suma el delta al saldo, creando la fila si no existe.
func (r *BalanceRepo) ApplyDelta(ctx context.Context, tenantID, itemID, locationID, uomCode string, delta decimal.Decimal) error {
	query := `
		INSERT INTO inventory_balances (tenant_id, item_id, location_id, uom, on_hand, reserved, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		ON CONFLICT (tenant_id, item_id, location_id, uom)
		DO UPDATE SET on_hand = inventory_balances.on_hand + EXCLUDED.on_hand,
		              updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query, tenantID, itemID, locationID, uomCode, delta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply balance delta: %w", err)
	}
	return nil
}

// ListPage pagina los balances en orden estable para el barrido de verificación.
func (r *BalanceRepo) ListPage(ctx context.Context, limit, offset int) ([]*entity.InventoryBalance, error) {
	query := `
		SELECT tenant_id, item_id, location_id, uom, on_hand, reserved, updated_at
		FROM inventory_balances
		ORDER BY tenant_id, item_id, location_id, uom
		LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()
	var balances []*entity.InventoryBalance
	for rows.Next() {
		var b entity.InventoryBalance
		if err := rows.Scan(&b.TenantID, &b.ItemID, &b.LocationID, &b.UOM,
			&b.OnHand, &b.Reserved, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, &b)
	}
	return balances, rows.Err()
}

// RecomputeFromLines re-deriva el on-hand sumando las líneas posteadas del
// ledger. Se usa como verificación, no como camino canónico de lectura.
func (r *BalanceRepo) RecomputeFromLines(ctx context.Context, tenantID, itemID, locationID, uomCode string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(sum(l.quantity), 0)
		FROM inventory_movement_lines l
		JOIN inventory_movements m ON m.id = l.movement_id
		WHERE m.tenant_id = $1 AND m.status = $2
		  AND l.item_id = $3 AND l.location_id = $4 AND l.uom = $5`
	var total decimal.Decimal
	err := r.q.QueryRow(ctx, query, tenantID, entity.MovementStatusPosted, itemID, locationID, uomCode).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("recompute balance: %w", err)
	}
	return total, nil
}
