package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

// shortageTolerance tolerancia para comparar disponibilidad (1e-6).
var shortageTolerance = decimal.NewFromFloat(1e-6)

// NegativePolicy política de inventario negativo (objeto de configuración
// resuelto al arranque).
type NegativePolicy struct {
	AllowNegativeInventory    bool
	AllowNegativeWithOverride bool
	OverrideRequiresReason    bool
	OverrideRequiresRole      bool
	AllowedRolesForOverride   []string
}

func (p NegativePolicy) roleAllowed(role string) bool {
	for _, r := range p.AllowedRolesForOverride {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// ConsumptionLine consumo solicitado (cantidad positiva en la unidad ingresada).
type ConsumptionLine struct {
	ItemID     string
	LocationID string
	Quantity   decimal.Decimal
	UOM        string
}

// ValidationContext contexto del caller para la validación de stock.
type ValidationContext struct {
	OverrideRequested bool
	OverrideReason    string
	ActorID           string
	ActorRole         string
	Reference         string
	// ForUpdate bloquea las filas de balance (usar dentro de la tx que postea).
	ForUpdate bool
}

// OverrideMetadata metadatos del override aprobado, a estampar en el
// movimiento resultante para auditoría.
type OverrideMetadata struct {
	Reason    string
	ActorID   string
	Reference string
}

// StockValidator calcula disponibilidad y aplica la política de inventario
// negativo. Solo lectura: el caller debe re-ejecutar la validación dentro de
// la misma transacción que postea, para cerrar la carrera check-then-act.
type StockValidator struct {
	canonical *CanonicalService
	policy    NegativePolicy
}

// NewStockValidator construye el validador.
func NewStockValidator(canonical *CanonicalService, policy NegativePolicy) *StockValidator {
	return &StockValidator{canonical: canonical, policy: policy}
}

type balanceKey struct {
	itemID     string
	locationID string
	uomCode    string
}

// ValidateSufficientStock agrupa el consumo por (ítem, ubicación, UOM
// canónica), compara contra la disponibilidad actual y evalúa la política.
// La disponibilidad es el snapshot vivo del balance: no se reconstruye el
// histórico a occurredAt (limitación conocida; occurredAt queda para auditoría).
func (v *StockValidator) ValidateSufficientStock(
	ctx context.Context,
	balances repository.BalanceRepository,
	tenantID string,
	occurredAt time.Time,
	lines []ConsumptionLine,
	vctx ValidationContext,
) (*OverrideMetadata, error) {
	_ = occurredAt

	requested := make(map[balanceKey]decimal.Decimal)
	var order []balanceKey
	for _, line := range lines {
		cq, err := v.canonical.ConvertToCanonical(ctx, tenantID, line.ItemID, line.Quantity, line.UOM)
		if err != nil {
			return nil, err
		}
		key := balanceKey{itemID: line.ItemID, locationID: line.LocationID, uomCode: cq.UOM}
		if _, seen := requested[key]; !seen {
			order = append(order, key)
		}
		requested[key] = requested[key].Add(cq.Quantity)
	}

	var shortages []map[string]any
	for _, key := range order {
		get := balances.Get
		if vctx.ForUpdate {
			get = balances.GetForUpdate
		}
		bal, err := get(ctx, tenantID, key.itemID, key.locationID, key.uomCode)
		if err != nil {
			return nil, err
		}
		available := bal.Available()
		shortage := requested[key].Sub(available)
		if shortage.GreaterThan(shortageTolerance) {
			shortages = append(shortages, map[string]any{
				"itemId":     key.itemID,
				"locationId": key.locationID,
				"uom":        key.uomCode,
				"requested":  requested[key].String(),
				"available":  available.String(),
				"shortage":   shortage.String(),
			})
		}
	}

	if len(shortages) == 0 {
		return nil, nil
	}
	if v.policy.AllowNegativeInventory {
		return nil, nil
	}
	if !v.policy.AllowNegativeWithOverride || !vctx.OverrideRequested {
		return nil, domain.WrapLedgerError(
			domain.CodeInsufficientStock, 409,
			"stock insuficiente para el consumo solicitado", domain.ErrInsufficientStock,
		).WithDetail("shortages", shortages)
	}
	if v.policy.OverrideRequiresRole && !v.policy.roleAllowed(vctx.ActorRole) {
		return nil, domain.WrapLedgerError(
			domain.CodeOverrideNotAllowed, 403,
			"el rol del actor no está autorizado para el override de inventario negativo", domain.ErrForbidden,
		).WithDetail("actorRole", vctx.ActorRole)
	}
	if v.policy.OverrideRequiresReason && strings.TrimSpace(vctx.OverrideReason) == "" {
		return nil, domain.WrapLedgerError(
			domain.CodeOverrideRequiresReason, 409,
			"el override de inventario negativo exige una razón", domain.ErrInvalidInput,
		)
	}
	return &OverrideMetadata{
		Reason:    vctx.OverrideReason,
		ActorID:   vctx.ActorID,
		Reference: vctx.Reference,
	}, nil
}
