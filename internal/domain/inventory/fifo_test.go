package inventory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/inventory"
)

func layer(id string, remaining, unitCost float64) *entity.CostLayer {
	return &entity.CostLayer{
		ID:                id,
		OriginalQuantity:  decimal.NewFromFloat(remaining),
		RemainingQuantity: decimal.NewFromFloat(remaining),
		UnitCost:          decimal.NewFromFloat(unitCost),
	}
}

// TestAllocateFIFO_ConsumoParcialDeSegundaCapa caso de referencia: capas
// L1(10 @ $2) y L2(5 @ $3), consumo de 12 → 10 de L1 + 2 de L2, costo total
// $26, y a L2 le quedan 3.
func TestAllocateFIFO_ConsumoParcialDeSegundaCapa(t *testing.T) {
	layers := []*entity.CostLayer{
		layer("L1", 10, 2),
		layer("L2", 5, 3),
	}

	allocations, totalCost := inventory.AllocateFIFO(layers, decimal.NewFromInt(12))

	require.Len(t, allocations, 2)
	assert.Equal(t, "L1", allocations[0].LayerID)
	assert.True(t, allocations[0].Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, allocations[0].RemainingAfter.IsZero())

	assert.Equal(t, "L2", allocations[1].LayerID)
	assert.True(t, allocations[1].Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, allocations[1].RemainingAfter.Equal(decimal.NewFromInt(3)))

	assert.True(t, totalCost.Equal(decimal.NewFromInt(26)), "10*2 + 2*3 = 26, obtuvo %s", totalCost)
}

func TestAllocateFIFO_ConsumoExacto(t *testing.T) {
	layers := []*entity.CostLayer{layer("L1", 4, 5)}

	allocations, totalCost := inventory.AllocateFIFO(layers, decimal.NewFromInt(4))

	require.Len(t, allocations, 1)
	assert.True(t, allocations[0].RemainingAfter.IsZero())
	assert.True(t, totalCost.Equal(decimal.NewFromInt(20)))
}

// TestAllocateFIFO_FaltanteCosteadoACero si las capas no alcanzan, el
// faltante se costea a 0: el costeo nunca bloquea un movimiento que la
// validación de stock ya dejó pasar (política de negativo permitida).
func TestAllocateFIFO_FaltanteCosteadoACero(t *testing.T) {
	layers := []*entity.CostLayer{layer("L1", 3, 10)}

	allocations, totalCost := inventory.AllocateFIFO(layers, decimal.NewFromInt(8))

	require.Len(t, allocations, 1)
	assert.True(t, allocations[0].Quantity.Equal(decimal.NewFromInt(3)))
	assert.True(t, totalCost.Equal(decimal.NewFromInt(30)), "solo las 3 unidades con capa llevan costo")
}

func TestAllocateFIFO_SinCapas(t *testing.T) {
	allocations, totalCost := inventory.AllocateFIFO(nil, decimal.NewFromInt(5))

	assert.Empty(t, allocations)
	assert.True(t, totalCost.IsZero())
}

func TestAllocateFIFO_IgnoraCapasAgotadas(t *testing.T) {
	empty := layer("L0", 10, 1)
	empty.RemainingQuantity = decimal.Zero
	layers := []*entity.CostLayer{empty, layer("L1", 5, 2)}

	allocations, totalCost := inventory.AllocateFIFO(layers, decimal.NewFromInt(5))

	require.Len(t, allocations, 1)
	assert.Equal(t, "L1", allocations[0].LayerID)
	assert.True(t, totalCost.Equal(decimal.NewFromInt(10)))
}

func TestWeightedAverageUnitCost_Promedio(t *testing.T) {
	layers := []*entity.CostLayer{
		layer("L1", 10, 2),
		layer("L2", 5, 3),
	}

	avg, ok := inventory.WeightedAverageUnitCost(layers)
	require.True(t, ok)
	// (10*2 + 5*3) / 15 = 35/15
	expected := decimal.NewFromInt(35).Div(decimal.NewFromInt(15))
	assert.True(t, avg.Equal(expected), "esperado %s, obtuvo %s", expected, avg)
}

func TestWeightedAverageUnitCost_SinCapasAbiertas(t *testing.T) {
	_, ok := inventory.WeightedAverageUnitCost(nil)
	assert.False(t, ok)

	empty := layer("L1", 10, 2)
	empty.RemainingQuantity = decimal.Zero
	_, ok = inventory.WeightedAverageUnitCost([]*entity.CostLayer{empty})
	assert.False(t, ok)
}
