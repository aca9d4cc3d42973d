package inventory

import (
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
)

// Allocation porción de una capa asignada a un consumo.
type Allocation struct {
	LayerID          string
	Quantity         decimal.Decimal
	UnitCost         decimal.Decimal
	RemainingAfter   decimal.Decimal
	CostContribution decimal.Decimal
}

// AllocateFIFO asigna una cantidad contra capas abiertas en orden FIFO
// (servicio de dominio puro: no toca persistencia). Las capas deben venir
// ordenadas de la más antigua a la más reciente. Si las capas no alcanzan,
// el faltante se costea a 0: la validación de stock es la autoridad sobre si
// el movimiento procede; el costeo nunca lo bloquea.
func AllocateFIFO(layers []*entity.CostLayer, quantity decimal.Decimal) ([]Allocation, decimal.Decimal) {
	remaining := quantity
	totalCost := decimal.Zero
	var allocations []Allocation

	for _, layer := range layers {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		if layer.RemainingQuantity.LessThanOrEqual(decimal.Zero) {
			continue
		}
		take := decimal.Min(remaining, layer.RemainingQuantity)
		cost := take.Mul(layer.UnitCost)
		allocations = append(allocations, Allocation{
			LayerID:          layer.ID,
			Quantity:         take,
			UnitCost:         layer.UnitCost,
			RemainingAfter:   layer.RemainingQuantity.Sub(take),
			CostContribution: cost,
		})
		totalCost = totalCost.Add(cost)
		remaining = remaining.Sub(take)
	}
	// remaining > 0: faltante costeado a 0, sin asignación adicional
	return allocations, totalCost
}

// WeightedAverageUnitCost costo unitario promedio ponderado de las capas
// abiertas. Lo usan los traslados para costear líneas sin mutar capas.
func WeightedAverageUnitCost(layers []*entity.CostLayer) (decimal.Decimal, bool) {
	qty := decimal.Zero
	value := decimal.Zero
	for _, layer := range layers {
		if layer.RemainingQuantity.LessThanOrEqual(decimal.Zero) {
			continue
		}
		qty = qty.Add(layer.RemainingQuantity)
		value = value.Add(layer.RemainingQuantity.Mul(layer.UnitCost))
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, false
	}
	return value.Div(qty), true
}
