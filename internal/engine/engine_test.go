package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nullMoment removes the gas torque path so tests can isolate the starter
// and sequencer from pressure effects.
func nullMoment(crankRadius, pistonForce, rotation float64) float64 { return 0 }

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero cylinders", func(c *Config) { c.Cylinders = 0 }},
		{"fire order too short", func(c *Config) { c.FireOrder = []int{0, 1, 2} }},
		{"fire order duplicate", func(c *Config) { c.FireOrder = []int{0, 2, 2, 1} }},
		{"fire order out of range", func(c *Config) { c.FireOrder = []int{0, 2, 4, 1} }},
		{"bad geometry", func(c *Config) { c.Geometry.RodLength = 0 }},
		{"zero crank mass", func(c *Config) { c.CrankMass = 0 }},
		{"friction above one", func(c *Config) { c.Friction = 1.5 }},
		{"zero friction", func(c *Config) { c.Friction = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}

	eng, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, eng.Cylinders(), 4)
	assert.InDelta(t, 2.0*0.015*0.015, eng.MomentOfInertia(), 1e-12)
}

func TestCylindersShareOneShaft(t *testing.T) {
	eng, err := New(DefaultConfig())
	require.NoError(t, err)

	eng.Start()
	for i := 0; i < 50; i++ {
		eng.Simulate(1.0 / 60)
	}

	for i, cyl := range eng.Cylinders() {
		assert.Same(t, eng.Shaft(), cyl.Shaft(), "cylinder %d", i)
		assert.Equal(t, eng.RPM(), cyl.RPM(), "cylinder %d", i)
	}
}

func TestPhaseOffsetsSpanFullCycle(t *testing.T) {
	eng, err := New(DefaultConfig())
	require.NoError(t, err)

	shift := 4 * math.Pi / 4
	for i, cyl := range eng.Cylinders() {
		want := wrapRotation(shift * float64(i+1))
		assert.InDelta(t, want, cyl.Rotation, 1e-12, "cylinder %d", i)
	}
}

// TestStrokeTransitionCounting spins a single offset-0 cylinder through
// exactly one four-stroke cycle at constant angular velocity and counts
// the sequencer actions: one inject, one spark, and an exhaust trigger on
// every step spent inside the exhaust quarter.
func TestStrokeTransitionCounting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cylinders = 1
	cfg.FireOrder = []int{0}
	cfg.Friction = 1.0 // keep velocity exactly constant

	eng, err := New(cfg)
	require.NoError(t, err)
	eng.MomentFn = nullMoment

	eng.Shaft().Velocity = 2 * math.Pi // one full 4π cycle in 2 s

	const dt = 0.01
	steps := int(2.0/dt) + 10 // one full cycle plus a few steps into the next

	for i := 0; i < steps; i++ {
		eng.Simulate(dt)
	}

	diag := eng.Cylinders()[0].Diag()
	assert.Equal(t, uint64(1), diag.Injects, "inject must fire once per cycle")
	assert.Equal(t, uint64(1), diag.Sparks, "spark must fire once per cycle")
	assert.GreaterOrEqual(t, diag.Exhausts, uint64(1))
	// The exhaust quarter spans π/ω seconds = 50 steps at this rate.
	assert.LessOrEqual(t, diag.Exhausts, uint64(51),
		"exhaust must only re-trigger inside the exhaust quarter")
}

func TestExhaustRetriggersEveryStepInStage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cylinders = 1
	cfg.FireOrder = []int{0}
	cfg.Friction = 1.0

	eng, err := New(cfg)
	require.NoError(t, err)
	eng.MomentFn = nullMoment
	eng.Shaft().Velocity = 2 * math.Pi

	// Park the cylinder just inside the exhaust quarter.
	eng.Cylinders()[0].Rotation = 3*math.Pi + 0.01

	const steps = 20
	for i := 0; i < steps; i++ {
		eng.Simulate(0.001)
	}
	assert.Equal(t, uint64(steps), eng.Cylinders()[0].Diag().Exhausts)
}

func TestIdleGovernorOverridesThrottle(t *testing.T) {
	eng, err := New(DefaultConfig())
	require.NoError(t, err)
	eng.SetThrottle(1)

	// 500 rpm, below the 1000 rpm idle threshold: idle dose wins.
	eng.Shaft().Velocity = 500 * 2 * math.Pi / 60
	require.Less(t, eng.RPM(), eng.Config().IdleRPM)
	assert.Equal(t, eng.Config().IdleFuelPerCycle, eng.intakeFuel())

	// Above threshold: throttle-modulated dose.
	eng.Shaft().Velocity = 2000 * 2 * math.Pi / 60
	assert.Equal(t, eng.Config().FuelPerCycle, eng.intakeFuel())

	eng.SetThrottle(0.25)
	assert.InDelta(t, eng.Config().FuelPerCycle*0.25, eng.intakeFuel(), 1e-15)
}

func TestThrottleClamped(t *testing.T) {
	eng, err := New(DefaultConfig())
	require.NoError(t, err)

	eng.SetThrottle(1.7)
	assert.Equal(t, 1.0, eng.Throttle())
	eng.SetThrottle(-0.3)
	assert.Equal(t, 0.0, eng.Throttle())
}

func TestStarterAppliesTorqueUntilTimerExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Friction = 1.0
	eng, err := New(cfg)
	require.NoError(t, err)
	eng.MomentFn = nullMoment

	eng.Start()
	require.True(t, eng.StarterActive())

	const dt = 0.5 // starter runs 2.0 s => exactly 4 cranking steps
	prev := eng.Shaft().Velocity
	for i := 0; i < 4; i++ {
		eng.Simulate(dt)
		assert.Greater(t, eng.Shaft().Velocity, prev, "starter step %d must add torque", i)
		prev = eng.Shaft().Velocity
	}

	require.False(t, eng.StarterActive())
	eng.Simulate(dt)
	assert.Equal(t, prev, eng.Shaft().Velocity, "expired starter must add nothing")
}

func TestSimulateZeroDeltaTime(t *testing.T) {
	eng, err := New(DefaultConfig())
	require.NoError(t, err)
	eng.Start()

	for i := 0; i < 10; i++ {
		eng.Simulate(0)
	}
	for _, cyl := range eng.Cylinders() {
		assert.False(t, math.IsNaN(cyl.Temperature))
		assert.GreaterOrEqual(t, cyl.Temperature, minTemperature)
	}
}

// TestEngineSelfSustains is the end-to-end check: stock four-cylinder
// tune, starter engaged, ten simulated seconds at 60 Hz. The engine must
// come up well past the idle threshold and stay numerically sane. The
// exact speed is tuning-dependent, so only a range is asserted.
func TestEngineSelfSustains(t *testing.T) {
	eng, err := New(DefaultConfig())
	require.NoError(t, err)

	eng.SetThrottle(1)
	eng.Start()

	for i := 0; i < 600; i++ {
		eng.Simulate(1.0 / 60)
	}

	rpm := eng.RPM()
	require.False(t, math.IsNaN(rpm) || math.IsInf(rpm, 0))
	assert.Greater(t, rpm, eng.Config().IdleRPM,
		"starter plus combustion must push past the idle threshold")

	for i, cyl := range eng.Cylinders() {
		assert.GreaterOrEqual(t, cyl.Temperature, minTemperature, "cylinder %d", i)
		assert.LessOrEqual(t, cyl.Temperature, maxTemperature, "cylinder %d", i)
		assert.GreaterOrEqual(t, cyl.Charge.Fuel, 0.0, "cylinder %d", i)
		assert.GreaterOrEqual(t, cyl.Charge.Air, 0.0, "cylinder %d", i)
		assert.GreaterOrEqual(t, cyl.Charge.Exhaust, 0.0, "cylinder %d", i)
	}
}
