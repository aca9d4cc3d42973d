package uom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/stock-ledger/internal/domain/uom"
)

// TestCanonicalUnit_TablaFija verifica la tabla canónica por dimensión:
// los balances y costos se guardan siempre en estas unidades.
func TestCanonicalUnit_TablaFija(t *testing.T) {
	cases := map[uom.Dimension]string{
		uom.DimensionMass:   "kg",
		uom.DimensionVolume: "l",
		uom.DimensionCount:  "unit",
		uom.DimensionLength: "m",
		uom.DimensionArea:   "m2",
		uom.DimensionTime:   "hr",
	}
	for dim, want := range cases {
		got, ok := uom.CanonicalUnit(dim)
		require.True(t, ok, "dimensión %s debe tener unidad canónica", dim)
		assert.Equal(t, want, got)
	}
}

func TestCanonicalUnit_DimensionDesconocida(t *testing.T) {
	_, ok := uom.CanonicalUnit(uom.Dimension("temperature"))
	assert.False(t, ok)
}

func TestUnitDimension_UnidadesConocidas(t *testing.T) {
	d, ok := uom.UnitDimension("g")
	require.True(t, ok)
	assert.Equal(t, uom.DimensionMass, d)

	d, ok = uom.UnitDimension("ml")
	require.True(t, ok)
	assert.Equal(t, uom.DimensionVolume, d)

	d, ok = uom.UnitDimension("ea")
	require.True(t, ok)
	assert.Equal(t, uom.DimensionCount, d)
}

// TestUnitDimension_UnidadDePaquete las unidades de empaque (caja, docena...)
// no están en la tabla fija: se resuelven por factor de conversión del ítem.
func TestUnitDimension_UnidadDePaquete(t *testing.T) {
	_, ok := uom.UnitDimension("caja")
	assert.False(t, ok)
}

func TestDimension_Valid(t *testing.T) {
	assert.True(t, uom.DimensionMass.Valid())
	assert.True(t, uom.DimensionCount.Valid())
	assert.False(t, uom.Dimension("pressure").Valid())
	assert.False(t, uom.Dimension("").Valid())
}
