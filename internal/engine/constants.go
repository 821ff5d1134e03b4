package engine

// Physical constants and gas properties used by the cylinder model.
// All masses in kg, volumes in m³, temperatures in Kelvin, pressures in Pa.
const (
	boltzmannConstant = 1.380649e-23  // J/K
	avogadroConstant  = 6.02214076e23 // 1/mol

	// StoichAirFuelRatio is the stoichiometric air:fuel mass ratio for gasoline.
	StoichAirFuelRatio = 14.7

	airMolarMass     = 0.02897 // kg/mol
	fuelMolarMass    = 0.11423 // kg/mol (approx. gasoline blend)
	exhaustMolarMass = 0.0286  // kg/mol

	fuelBurnPerSecond = 0.1     // kg/s, injector-limited burn rate
	fuelEnergyPerKg   = 44_000  // kJ/kg

	exhaustGasConstant  = 287.0    // J/(kg·K)
	AtmosphericPressure = 101325.0 // Pa

	ambientTemperature     = 273 + 21  // K
	postExhaustTemperature = 273 + 200 // K, fresh-charge approximation

	// Polytropic exponent for air.
	gamma = 1.4

	// Per-step fractional heat loss to cylinder walls.
	wallLeakRate = 0.001

	// Temperature clamp bounds. The model is approximate; values outside
	// this band are numeric noise, not physics.
	minTemperature = 250.0
	maxTemperature = 4000.0

	// Polytropic guard bounds: skip the correction entirely when the
	// volume ratio is absurd, and bound the per-step swing otherwise.
	ratioGuardLo = 1e-4
	ratioGuardHi = 1e4
	ratioClampLo = 0.5
	ratioClampHi = 2.0
)
