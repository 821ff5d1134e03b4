package engine

import (
	"fmt"
	"math"
)

// counterMomentWeight scales moments that oppose rotation. Compression
// strokes push back at roughly half effect because part of that work is
// returned on the following expansion.
const counterMomentWeight = 0.5

// Config fixes an engine at construction time.
type Config struct {
	Cylinders int      `yaml:"cylinders" json:"cylinders"`
	Geometry  Geometry `yaml:"geometry" json:"geometry"`
	// FireOrder is a permutation of cylinder indices assigning each
	// cylinder its stroke phase offset.
	FireOrder []int `yaml:"fire_order" json:"fireOrder"`

	CrankMass       float64 `yaml:"crank_mass" json:"crankMass"`             // kg
	StarterTorque   float64 `yaml:"starter_torque" json:"starterTorque"`     // N·m
	StarterDuration float64 `yaml:"starter_duration" json:"starterDuration"` // s

	// Friction is the per-step velocity retention factor (< 1). It is
	// deliberately per-step rather than per-second for behavioral
	// compatibility; see Engine.applyFriction.
	Friction float64 `yaml:"friction" json:"friction"`

	FuelPerCycle     float64 `yaml:"fuel_per_cycle" json:"fuelPerCycle"`           // kg per intake
	IdleFuelPerCycle float64 `yaml:"idle_fuel_per_cycle" json:"idleFuelPerCycle"`  // kg per intake below idle
	IdleRPM          float64 `yaml:"idle_rpm" json:"idleRPM"`                      // governor threshold
}

// DefaultConfig returns the stock inline-four tune.
func DefaultConfig() Config {
	return Config{
		Cylinders: 4,
		Geometry: Geometry{
			BoreRadius:  0.100,
			Height:      0.080,
			CrankRadius: 0.015,
			RodLength:   0.060,
		},
		FireOrder:        []int{0, 2, 3, 1},
		CrankMass:        2.0,
		StarterTorque:    0.0003,
		StarterDuration:  2.0,
		Friction:         0.95,
		FuelPerCycle:     0.001,
		IdleFuelPerCycle: 0.0002,
		IdleRPM:          1000,
	}
}

// Engine owns N cylinders on one shared crankshaft, the stroke sequencer,
// and the starter/idle controllers. Simulate is a pure step function: the
// caller supplies delta-time, the engine never touches a clock.
type Engine struct {
	cfg       Config
	cylinders []*Cylinder
	shaft     *Shaft
	inertia   float64

	lastStage    []Stage
	starterTimer float64
	throttle     float64

	// MomentFn projects piston force onto the crank. Replaceable so tests
	// can pin or neutralize the torque path.
	MomentFn MomentFunc
}

// New validates the configuration and builds the engine. Cylinder phase
// offsets space the cylinders evenly across the 4π four-stroke cycle:
// offset_i = (i+1)·(4π/N).
func New(cfg Config) (*Engine, error) {
	if cfg.Cylinders <= 0 {
		return nil, fmt.Errorf("engine: need at least one cylinder, got %d", cfg.Cylinders)
	}
	if len(cfg.FireOrder) != cfg.Cylinders {
		return nil, fmt.Errorf("engine: fire order length %d != cylinder count %d",
			len(cfg.FireOrder), cfg.Cylinders)
	}
	seen := make(map[int]bool, len(cfg.FireOrder))
	for _, idx := range cfg.FireOrder {
		if idx < 0 || idx >= cfg.Cylinders || seen[idx] {
			return nil, fmt.Errorf("engine: fire order %v is not a permutation of 0..%d",
				cfg.FireOrder, cfg.Cylinders-1)
		}
		seen[idx] = true
	}
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	if cfg.CrankMass <= 0 {
		return nil, fmt.Errorf("engine: crank mass must be positive, got %g", cfg.CrankMass)
	}
	if cfg.Friction <= 0 || cfg.Friction > 1 {
		return nil, fmt.Errorf("engine: friction factor must be in (0, 1], got %g", cfg.Friction)
	}

	e := &Engine{
		cfg:       cfg,
		shaft:     &Shaft{},
		inertia:   cfg.CrankMass * cfg.Geometry.CrankRadius * cfg.Geometry.CrankRadius,
		lastStage: make([]Stage, cfg.Cylinders),
		MomentFn:  SineMoment,
	}

	shift := 4 * math.Pi / float64(cfg.Cylinders)
	for i := 0; i < cfg.Cylinders; i++ {
		cyl, err := NewCylinder(cfg.Geometry, e.shaft, shift*float64(i+1))
		if err != nil {
			return nil, err
		}
		e.cylinders = append(e.cylinders, cyl)
		e.lastStage[i] = Stage(cfg.FireOrder[i])
	}
	return e, nil
}

// Config returns the construction-time configuration.
func (e *Engine) Config() Config { return e.cfg }

// Cylinders returns the owned cylinders in index order.
func (e *Engine) Cylinders() []*Cylinder { return e.cylinders }

// Shaft returns the shared crankshaft state.
func (e *Engine) Shaft() *Shaft { return e.shaft }

// MomentOfInertia is the crank rotational inertia, m·r².
func (e *Engine) MomentOfInertia() float64 { return e.inertia }

// RPM is the engine speed: the mean of the cylinder speeds, which are all
// the one shared shaft speed.
func (e *Engine) RPM() float64 { return e.shaft.RPM() }

// Throttle returns the current throttle signal.
func (e *Engine) Throttle() float64 { return e.throttle }

// SetThrottle accepts a throttle signal, clamped into [0, 1].
func (e *Engine) SetThrottle(v float64) { e.throttle = clamp(v, 0, 1) }

// StarterActive reports whether the starter motor is still cranking.
func (e *Engine) StarterActive() bool { return e.starterTimer > 0 }

// Start arms the starter motor for the configured duration.
func (e *Engine) Start() { e.starterTimer = e.cfg.StarterDuration }

// Simulate advances the whole engine one step. The sequencer decides all
// stroke transitions first, then every cylinder integrates its own state
// and its crank moment is collected; only after that is the shared shaft
// velocity mutated. No cylinder observes another's mid-step state.
func (e *Engine) Simulate(dt float64) {
	e.runComputer(dt)

	net := 0.0
	for _, cyl := range e.cylinders {
		cyl.Simulate(dt)
		moment := e.MomentFn(cyl.geo.CrankRadius, cyl.PistonForce(), cyl.Rotation)
		if moment < 0 {
			moment *= counterMomentWeight
		}
		net += moment
	}

	e.shaft.Velocity += (net / e.inertia) * dt
	e.applyFriction()
}

// runComputer is the stroke sequencer: it derives each cylinder's stage
// from its crank angle and fire-order offset, and fires the matching valve
// or ignition action once per recognized transition. A stage equal to the
// last recorded one is skipped unless it is EXHAUST, which re-triggers
// every step to keep the valve open through the whole stroke.
func (e *Engine) runComputer(dt float64) {
	if e.starterTimer > 0 {
		e.runStarter(dt)
		e.starterTimer -= dt
	}

	for i, cyl := range e.cylinders {
		stage := Stage((e.cfg.FireOrder[i] +
			int(math.Floor(math.Mod(cyl.Rotation, 4*math.Pi)/math.Pi))) % 4)

		if e.lastStage[i] == stage && stage != StageExhaust {
			continue
		}
		e.lastStage[i] = stage
		cyl.SetStage(stage)

		switch stage {
		case StageIntake:
			fuel := e.intakeFuel()
			cyl.Inject(fuel, fuel*StoichAirFuelRatio)
		case StageCompression:
			// Label only; no gas-state action.
		case StageCombustion:
			cyl.Spark()
		case StageExhaust:
			cyl.Exhaust()
		}
	}
}

// intakeFuel returns the throttle-modulated fuel dose, overridden to the
// fixed idle dose while engine speed is below the idle threshold.
func (e *Engine) intakeFuel() float64 {
	if e.RPM() < e.cfg.IdleRPM {
		return e.cfg.IdleFuelPerCycle
	}
	return e.cfg.FuelPerCycle * e.throttle
}

// runStarter applies the external starter torque uniformly to the shaft.
func (e *Engine) runStarter(dt float64) {
	e.shaft.Velocity += e.cfg.StarterTorque / e.inertia * dt
}

// applyFriction models bearing and aerodynamic drag as a per-step velocity
// decay. This is deltaTime-dependent in a non-physical way; it is kept for
// behavioral compatibility and isolated here so a time-normalized decay
// can be substituted without touching the integration.
func (e *Engine) applyFriction() {
	e.shaft.Velocity *= e.cfg.Friction
}
