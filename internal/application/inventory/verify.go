package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

// BalanceDrift discrepancia entre el balance materializado y la suma de las
// líneas posteadas del ledger.
type BalanceDrift struct {
	TenantID   string
	ItemID     string
	LocationID string
	UOM        string
	Stored     decimal.Decimal
	Recomputed decimal.Decimal
}

// BalanceVerifier barrido de consistencia: re-deriva cada balance desde las
// líneas y reporta las filas que no cuadran. Solo lee; la corrección es una
// decisión operativa (conteo cíclico o ajuste).
type BalanceVerifier struct {
	balances repository.BalanceRepository
	pageSize int
}

func NewBalanceVerifier(balances repository.BalanceRepository) *BalanceVerifier {
	return &BalanceVerifier{balances: balances, pageSize: 500}
}

// VerifyAll recorre todos los balances materializados y devuelve los drifts
// encontrados (vacío si todo cuadra).
func (v *BalanceVerifier) VerifyAll(ctx context.Context) ([]BalanceDrift, error) {
	var drifts []BalanceDrift
	for offset := 0; ; offset += v.pageSize {
		page, err := v.balances.ListPage(ctx, v.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list balances: %w", err)
		}
		for _, b := range page {
			recomputed, err := v.balances.RecomputeFromLines(ctx, b.TenantID, b.ItemID, b.LocationID, b.UOM)
			if err != nil {
				return nil, fmt.Errorf("recompute balance %s/%s/%s: %w", b.ItemID, b.LocationID, b.UOM, err)
			}
			if !recomputed.Equal(b.OnHand) {
				drifts = append(drifts, BalanceDrift{
					TenantID:   b.TenantID,
					ItemID:     b.ItemID,
					LocationID: b.LocationID,
					UOM:        b.UOM,
					Stored:     b.OnHand,
					Recomputed: recomputed,
				})
			}
		}
		if len(page) < v.pageSize {
			return drifts, nil
		}
	}
}
