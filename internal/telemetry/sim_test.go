package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/engine"
)

func newTestProvider(t *testing.T) (*SimProvider, *engine.Engine) {
	t.Helper()
	eng, err := engine.New(engine.DefaultConfig())
	require.NoError(t, err)
	p := NewSimProvider(eng)
	require.NoError(t, p.Connect())
	return p, eng
}

func TestRequestDataBeforeConnect(t *testing.T) {
	eng, err := engine.New(engine.DefaultConfig())
	require.NoError(t, err)
	p := NewSimProvider(eng)

	_, err = p.RequestData()
	assert.Error(t, err)
}

func TestFrameSnapshot(t *testing.T) {
	p, eng := newTestProvider(t)

	frame, err := p.RequestData()
	require.NoError(t, err)
	require.Len(t, frame.Cylinders, 4)

	cfg := eng.Config()
	assert.Equal(t, cfg.Geometry.CrankRadius, frame.CrankRad)
	assert.Equal(t, cfg.Geometry.BoreRadius, frame.BoreRad)
	assert.False(t, frame.Starter)
	assert.False(t, frame.Running)

	for i, cyl := range frame.Cylinders {
		assert.Greater(t, cyl.Volume, 0.0, "cylinder %d", i)
		assert.Greater(t, cyl.Pressure, 0.0, "cylinder %d", i)
		assert.Greater(t, cyl.Temperature, 0.0, "cylinder %d", i)
	}
}

func TestStepUsesElapsedWallTime(t *testing.T) {
	p, eng := newTestProvider(t)

	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }

	// First poll seeds the clock without stepping.
	before := eng.Cylinders()[0].Rotation
	_, err := p.RequestData()
	require.NoError(t, err)
	assert.Equal(t, before, eng.Cylinders()[0].Rotation)

	// Second poll steps by the elapsed 50 ms.
	eng.Shaft().Velocity = 1.0
	now = now.Add(50 * time.Millisecond)
	_, err = p.RequestData()
	require.NoError(t, err)
	assert.InDelta(t, before+0.05, eng.Cylinders()[0].Rotation, 1e-9)
}

func TestStepClampsLargeGaps(t *testing.T) {
	p, eng := newTestProvider(t)

	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }
	_, err := p.RequestData()
	require.NoError(t, err)

	// A stalled poller resuming after 10 s must only step maxStep.
	eng.Shaft().Velocity = 1.0
	start := eng.Cylinders()[0].Rotation
	now = now.Add(10 * time.Second)
	_, err = p.RequestData()
	require.NoError(t, err)
	assert.InDelta(t, start+maxStep.Seconds(), eng.Cylinders()[0].Rotation, 1e-9)
}

func TestControlPassthrough(t *testing.T) {
	p, eng := newTestProvider(t)

	p.SetThrottle(0.6)
	assert.InDelta(t, 0.6, eng.Throttle(), 1e-15)

	p.Start()
	assert.True(t, eng.StarterActive())

	frame, err := p.RequestData()
	require.NoError(t, err)
	assert.True(t, frame.Starter)
	assert.InDelta(t, 0.6, frame.Throttle, 1e-15)
}

func TestRotationStaysInCycle(t *testing.T) {
	p, eng := newTestProvider(t)
	eng.Shaft().Velocity = 500

	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }
	for i := 0; i < 100; i++ {
		now = now.Add(16 * time.Millisecond)
		frame, err := p.RequestData()
		require.NoError(t, err)
		for j, cyl := range frame.Cylinders {
			assert.GreaterOrEqual(t, cyl.Rotation, 0.0, "cylinder %d", j)
			assert.Less(t, cyl.Rotation, 4*math.Pi, "cylinder %d", j)
		}
	}
}
