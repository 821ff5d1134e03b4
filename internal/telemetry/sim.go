package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/engine"
)

// maxStep bounds the delta-time handed to the simulation so a stalled
// poller does not produce one giant integration step on resume.
const maxStep = 250 * time.Millisecond

// SimProvider drives an engine.Engine in real time. Each RequestData call
// measures the wall-clock time since the previous call, steps the
// simulation by that amount, and snapshots a frame. The engine core itself
// never reads a clock; this provider is its only driver, so all engine
// access is serialized behind one mutex.
type SimProvider struct {
	mu        sync.Mutex
	eng       *engine.Engine
	last      time.Time
	connected bool

	// now is the clock source, swappable in tests.
	now func() time.Time
}

// NewSimProvider wraps an engine in a real-time telemetry provider.
func NewSimProvider(eng *engine.Engine) *SimProvider {
	return &SimProvider{eng: eng, now: time.Now}
}

func (p *SimProvider) Name() string { return "Simulated Engine" }

func (p *SimProvider) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	p.last = time.Time{}
	return nil
}

func (p *SimProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func (p *SimProvider) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Start arms the engine starter motor.
func (p *SimProvider) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eng.Start()
}

// SetThrottle forwards a throttle signal to the engine.
func (p *SimProvider) SetThrottle(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eng.SetThrottle(v)
}

// RequestData steps the simulation by the elapsed wall time and returns
// the resulting frame.
func (p *SimProvider) RequestData() (*DataFrame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil, fmt.Errorf("telemetry: sim provider not connected")
	}

	now := p.now()
	if !p.last.IsZero() {
		dt := now.Sub(p.last)
		if dt < 0 {
			dt = 0
		}
		if dt > maxStep {
			dt = maxStep
		}
		p.eng.Simulate(dt.Seconds())
	}
	p.last = now

	return p.snapshot(), nil
}

// snapshot builds a frame from current engine state. Caller holds the lock.
func (p *SimProvider) snapshot() *DataFrame {
	cfg := p.eng.Config()
	f := &DataFrame{
		RPM:       p.eng.RPM(),
		Throttle:  p.eng.Throttle(),
		Starter:   p.eng.StarterActive(),
		Running:   p.eng.RPM() >= cfg.IdleRPM,
		CrankRad:  cfg.Geometry.CrankRadius,
		BoreRad:   cfg.Geometry.BoreRadius,
		Height:    cfg.Geometry.Height,
		RodLength: cfg.Geometry.RodLength,
	}

	for _, cyl := range p.eng.Cylinders() {
		x, y := cyl.CrankPosition()
		diag := cyl.Diag()
		f.Cylinders = append(f.Cylinders, CylinderFrame{
			Temperature: cyl.Temperature,
			Pressure:    cyl.Pressure(),
			Volume:      cyl.Volume(),
			Rotation:    cyl.Rotation,
			PinOffset:   cyl.PinOffset(),
			CrankX:      x,
			CrankY:      y,
			Mode:        cyl.Stage().String(),
			Combusting:  cyl.Combusting(),
			Fuel:        cyl.Charge.Fuel,
			Air:         cyl.Charge.Air,
			ExhaustGas:  cyl.Charge.Exhaust,
			TempClamps:  diag.TempClamps,
			MassClamps:  diag.MassClamps,
		})
	}
	return f
}
