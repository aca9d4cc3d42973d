package uom

// Dimension dimensión de medida de un ítem. Toda cantidad se almacena en la
// unidad canónica fija de su dimensión.
type Dimension string

const (
	DimensionMass   Dimension = "mass"
	DimensionVolume Dimension = "volume"
	DimensionCount  Dimension = "count"
	DimensionLength Dimension = "length"
	DimensionArea   Dimension = "area"
	DimensionTime   Dimension = "time"
)

// canonicalUnits unidad canónica fija por dimensión. Los balances y costos
// se guardan siempre en estas unidades; la configuración del ítem debe coincidir.
var canonicalUnits = map[Dimension]string{
	DimensionMass:   "kg",
	DimensionVolume: "l",
	DimensionCount:  "unit",
	DimensionLength: "m",
	DimensionArea:   "m2",
	DimensionTime:   "hr",
}

// unitDimensions dimensión de cada unidad conocida. Las unidades fuera de esta
// tabla solo se aceptan en la dimensión count (empaques definidos por ítem:
// caja, docena, pallet...).
var unitDimensions = map[string]Dimension{
	"kg": DimensionMass, "g": DimensionMass, "mg": DimensionMass,
	"t": DimensionMass, "lb": DimensionMass, "oz": DimensionMass,
	"l": DimensionVolume, "ml": DimensionVolume, "gal": DimensionVolume, "m3": DimensionVolume,
	"unit": DimensionCount, "ea": DimensionCount, "pz": DimensionCount,
	"m": DimensionLength, "cm": DimensionLength, "mm": DimensionLength,
	"in": DimensionLength, "ft": DimensionLength,
	"m2": DimensionArea, "ft2": DimensionArea,
	"hr": DimensionTime, "min": DimensionTime, "s": DimensionTime,
}

// CanonicalUnit devuelve la unidad canónica de la dimensión.
func CanonicalUnit(d Dimension) (string, bool) {
	u, ok := canonicalUnits[d]
	return u, ok
}

// UnitDimension devuelve la dimensión de una unidad conocida.
func UnitDimension(unit string) (Dimension, bool) {
	d, ok := unitDimensions[unit]
	return d, ok
}

// Valid reporta si la dimensión está en la tabla canónica.
func (d Dimension) Valid() bool {
	_, ok := canonicalUnits[d]
	return ok
}
