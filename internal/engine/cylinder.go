package engine

import (
	"fmt"
	"math"
)

// Geometry describes one combustion chamber. Immutable after construction.
// All lengths in meters.
type Geometry struct {
	BoreRadius  float64 `yaml:"bore_radius" json:"boreRadius"`
	Height      float64 `yaml:"height" json:"height"`
	CrankRadius float64 `yaml:"crank_radius" json:"crankRadius"`
	RodLength   float64 `yaml:"rod_length" json:"rodLength"`
}

// Validate checks slider-crank validity: every length strictly positive,
// rod longer than crank, and enough chamber height that the clearance
// volume at top dead center stays positive.
func (g Geometry) Validate() error {
	if g.BoreRadius <= 0 || g.Height <= 0 || g.CrankRadius <= 0 || g.RodLength <= 0 {
		return fmt.Errorf("engine: geometry lengths must be positive (got %+v)", g)
	}
	if g.RodLength <= g.CrankRadius {
		return fmt.Errorf("engine: rod length %.4f must exceed crank radius %.4f",
			g.RodLength, g.CrankRadius)
	}
	if g.Height <= g.RodLength+g.CrankRadius {
		return fmt.Errorf("engine: chamber height %.4f must exceed rod+crank %.4f",
			g.Height, g.RodLength+g.CrankRadius)
	}
	return nil
}

// Area returns the bore cross-section in m².
func (g Geometry) Area() float64 {
	return math.Pi * g.BoreRadius * g.BoreRadius
}

// MinVolume is the clearance volume with the piston at top dead center.
func (g Geometry) MinVolume() float64 {
	return (g.Height - (g.RodLength + g.CrankRadius)) * g.Area()
}

// Charge holds the in-cylinder gas masses in kg. The species set is fixed;
// each pool is clamped to zero after every mutation.
type Charge struct {
	Fuel    float64 `json:"fuel"`
	Air     float64 `json:"air"`
	Exhaust float64 `json:"exhaust"`
}

// Total returns the summed gas mass.
func (c Charge) Total() float64 {
	return c.Fuel + c.Air + c.Exhaust
}

// MomentFunc projects net piston force onto the crank, returning a torque
// contribution in N·m. It is a pure function so tests can pin its output
// and callers can swap projections without touching the integrator.
type MomentFunc func(crankRadius, pistonForce, rotation float64) float64

// SineMoment is the simple sine projection: r·F·sin(θ). It ignores rod
// obliquity; see RodAngleMoment for the corrected form.
func SineMoment(crankRadius, pistonForce, rotation float64) float64 {
	return crankRadius * pistonForce * math.Sin(rotation)
}

// RodAngleMoment projects through the connecting-rod angle:
// r·F·sin(θ + φ)/cos(φ) with sin(φ) = (r/l)·sin(θ). Provided as the
// documented alternative projection; not the default.
func RodAngleMoment(rodLength float64) MomentFunc {
	return func(crankRadius, pistonForce, rotation float64) float64 {
		sinPhi := crankRadius / rodLength * math.Sin(rotation)
		phi := math.Asin(clamp(sinPhi, -1, 1))
		cosPhi := math.Cos(phi)
		if cosPhi == 0 {
			return 0
		}
		return crankRadius * pistonForce * math.Sin(rotation+phi) / cosPhi
	}
}

// Cylinder models one combustion chamber and its crank-pin kinematics.
// Rotation is periodic over 4π (two shaft revolutions per four-stroke
// cycle); angular velocity lives on the shared Shaft.
type Cylinder struct {
	geo   Geometry
	shaft *Shaft

	Rotation    float64 // rad, [0, 4π)
	Temperature float64 // K, clamped [250, 4000]
	Charge      Charge

	prevVolume float64
	lastSwept  float64
	combusting bool
	stage      Stage

	diag Diag
}

// NewCylinder builds a cylinder at the given phase offset. The initial
// charge is plain air with a little residual exhaust, at ambient
// temperature.
func NewCylinder(geo Geometry, shaft *Shaft, rotation float64) (*Cylinder, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if shaft == nil {
		return nil, fmt.Errorf("engine: cylinder needs a shaft")
	}
	c := &Cylinder{
		geo:         geo,
		shaft:       shaft,
		Rotation:    wrapRotation(rotation),
		Temperature: ambientTemperature,
		Charge:      Charge{Air: 0.5, Exhaust: 0.1},
	}
	c.prevVolume = c.Volume()
	return c, nil
}

// Geometry returns the immutable chamber geometry.
func (c *Cylinder) Geometry() Geometry { return c.geo }

// Shaft returns the shared crankshaft state.
func (c *Cylinder) Shaft() *Shaft { return c.shaft }

// Stage returns the display stroke label set by the engine computer.
func (c *Cylinder) Stage() Stage { return c.stage }

// Combusting reports whether a spark event is still burning charge.
func (c *Cylinder) Combusting() bool { return c.combusting }

// Diag returns a snapshot of the clamp/action counters.
func (c *Cylinder) Diag() Diag { return c.diag }

// RPM converts the shared shaft velocity to revolutions per minute.
func (c *Cylinder) RPM() float64 { return c.shaft.RPM() }

// PinOffset is the axial distance from crank center to piston pin, the
// positive root of the slider-crank law-of-cosines quadratic:
// x = r·cos(θ) + sqrt(l² − r²·sin²(θ)). Floating-point error can push the
// radicand below zero near the geometric limit; it is clamped and counted.
func (c *Cylinder) PinOffset() float64 {
	r, l := c.geo.CrankRadius, c.geo.RodLength
	sin := math.Sin(c.Rotation)
	radicand := l*l - r*r*sin*sin
	if radicand < 0 {
		radicand = 0
		c.diag.RadicandClamps++
	}
	return r*math.Cos(c.Rotation) + math.Sqrt(radicand)
}

// Volume is a deterministic, continuous function of crank rotation only.
// The pin is treated as the piston crown.
func (c *Cylinder) Volume() float64 {
	return (c.geo.Height - c.PinOffset()) * c.geo.Area()
}

// Pressure evaluates the ideal-gas law over the total particle count.
// Always recomputed: mass and volume both change every step.
func (c *Cylinder) Pressure() float64 {
	particles := (c.Charge.Fuel/fuelMolarMass +
		c.Charge.Air/airMolarMass +
		c.Charge.Exhaust/exhaustMolarMass) * avogadroConstant
	return (c.Temperature * boltzmannConstant * particles) / c.Volume()
}

// PistonForce is the net force on the crown: gauge pressure times bore area.
func (c *Cylinder) PistonForce() float64 {
	return (c.Pressure() - AtmosphericPressure) * c.geo.Area()
}

// CrankPosition returns the crank-pin point relative to the crank center.
func (c *Cylinder) CrankPosition() (x, y float64) {
	return c.geo.CrankRadius * math.Sin(c.Rotation),
		c.geo.CrankRadius * math.Cos(c.Rotation)
}

// Inject adds injector-dosed fuel and air masses to the charge.
func (c *Cylinder) Inject(fuel, air float64) {
	c.Charge.Fuel += fuel
	c.Charge.Air += air
	c.clampCharge()
	c.diag.Injects++
}

// Spark arms combustion. The burn itself runs inside Simulate while the
// piston is on the expansion side of the rotation.
func (c *Cylinder) Spark() {
	c.combusting = true
	c.diag.Sparks++
}

// Exhaust purges gas proportional to the volume swept during the last step,
// at ambient pressure: purged = P_atm·ΔV/(R·T). The purge drains the air
// and exhaust pools proportionally and resets the charge temperature toward
// the fresh-charge value.
func (c *Cylinder) Exhaust() {
	c.diag.Exhausts++
	if c.Temperature > 0 && c.lastSwept > 0 {
		purged := AtmosphericPressure * c.lastSwept / (exhaustGasConstant * c.Temperature)
		pool := c.Charge.Air + c.Charge.Exhaust
		if pool > 0 {
			if purged > pool {
				purged = pool
			}
			c.Charge.Air -= purged * c.Charge.Air / pool
			c.Charge.Exhaust -= purged * c.Charge.Exhaust / pool
			c.clampCharge()
		}
	}
	c.Temperature = postExhaustTemperature
}

// SetStage records the display stroke label. Engine-computer use only.
func (c *Cylinder) SetStage(s Stage) { c.stage = s }

// Simulate advances the cylinder by dt seconds. Order matters: rotation
// first, then combustion at the advanced angle, then the polytropic
// correction for the volume change, wall heat loss, and clamping.
func (c *Cylinder) Simulate(dt float64) {
	c.Rotation = wrapRotation(c.Rotation + c.shaft.Velocity*dt)

	if c.combusting {
		c.combust(dt)
	}

	volume := c.Volume()
	if c.prevVolume > 0 && volume > 0 {
		ratio := c.prevVolume / volume
		if ratio >= ratioGuardLo && ratio <= ratioGuardHi {
			clamped := clamp(ratio, ratioClampLo, ratioClampHi)
			if clamped != ratio {
				c.diag.RatioClamps++
			}
			c.Temperature *= math.Pow(clamped, gamma-1)
		}
	}

	c.Temperature -= (c.Temperature - ambientTemperature) * wallLeakRate
	c.clampTemperature()

	c.lastSwept = math.Abs(volume - c.prevVolume)
	c.prevVolume = volume
}

// combust burns fuel at the fixed rate, capped by the available fuel and
// then by the available air at the stoichiometric ratio. Burned mass moves
// to the exhaust pool and the released energy heats the full charge. Only
// the expansion half of the rotation burns; a spent spark clears itself.
func (c *Cylinder) combust(dt float64) {
	if math.Cos(c.Rotation) <= 0 {
		return
	}

	fuel := math.Min(fuelBurnPerSecond*dt, c.Charge.Fuel)
	air := fuel * StoichAirFuelRatio
	if air > c.Charge.Air {
		air = c.Charge.Air
		fuel = air / StoichAirFuelRatio
	}

	mass := fuel + air + c.Charge.Exhaust
	energy := fuel * fuelEnergyPerKg
	denom := mass * c.averageCp()
	if energy == 0 || denom == 0 {
		c.combusting = false
		return
	}

	c.Temperature += energy / denom
	c.Charge.Fuel -= fuel
	c.Charge.Air -= air
	c.Charge.Exhaust += fuel + air
	c.clampCharge()
	c.clampTemperature()
}

// cpExhaust approximates exhaust specific heat in kJ/(kg·K).
func (c *Cylinder) cpExhaust() float64 {
	return 1.08 + 8e-5*(c.Temperature-300)
}

// cpAir approximates air specific heat in kJ/(kg·K).
func (c *Cylinder) cpAir() float64 {
	return 1.005 + 1e-6*(c.Temperature-300)
}

// averageCp is the mass-weighted blend of the exhaust and air specific
// heats. Returns zero when both pools are empty so the caller can detect
// the degenerate case.
func (c *Cylinder) averageCp() float64 {
	pool := c.Charge.Exhaust + c.Charge.Air
	if pool == 0 {
		return 0
	}
	return (c.cpExhaust()*c.Charge.Exhaust + c.cpAir()*c.Charge.Air) / pool
}

func (c *Cylinder) clampCharge() {
	if c.Charge.Fuel < 0 {
		c.Charge.Fuel = 0
		c.diag.MassClamps++
	}
	if c.Charge.Air < 0 {
		c.Charge.Air = 0
		c.diag.MassClamps++
	}
	if c.Charge.Exhaust < 0 {
		c.Charge.Exhaust = 0
		c.diag.MassClamps++
	}
}

func (c *Cylinder) clampTemperature() {
	if c.Temperature < minTemperature {
		c.Temperature = minTemperature
		c.diag.TempClamps++
	} else if c.Temperature > maxTemperature {
		c.Temperature = maxTemperature
		c.diag.TempClamps++
	}
}

// wrapRotation folds an angle into [0, 4π), the four-stroke cycle period.
func wrapRotation(theta float64) float64 {
	theta = math.Mod(theta, 4*math.Pi)
	if theta < 0 {
		theta += 4 * math.Pi
	}
	return theta
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
