package telemetry

// Provider is the interface for sources of engine telemetry frames. The
// simulated engine is the first implementation; a live ECU link could be
// added later by implementing this same interface.
type Provider interface {
	// Name returns the human-readable name of this telemetry source.
	Name() string
	// Connect prepares the source for polling.
	Connect() error
	// Close shuts the source down.
	Close() error
	// IsConnected returns whether the provider is ready to serve frames.
	IsConnected() bool

	// RequestData returns the current telemetry frame. For the simulated
	// engine this also advances the simulation by the elapsed wall time.
	RequestData() (*DataFrame, error)
}

// CylinderFrame holds the per-cylinder channels read out each step.
type CylinderFrame struct {
	Temperature float64 `json:"temperature"` // K
	Pressure    float64 `json:"pressure"`    // Pa
	Volume      float64 `json:"volume"`      // m³
	Rotation    float64 `json:"rotation"`    // rad, [0, 4π)
	PinOffset   float64 `json:"pinOffset"`   // m
	CrankX      float64 `json:"crankX"`      // m, pin position
	CrankY      float64 `json:"crankY"`      // m
	Mode        string  `json:"mode"`        // stroke label
	Combusting  bool    `json:"combusting"`

	Fuel       float64 `json:"fuel"`    // kg
	Air        float64 `json:"air"`     // kg
	ExhaustGas float64 `json:"exhaust"` // kg

	TempClamps uint64 `json:"tempClamps"`
	MassClamps uint64 `json:"massClamps"`
}

// DataFrame holds one snapshot of the whole engine.
type DataFrame struct {
	RPM       float64 `json:"rpm"`
	Throttle  float64 `json:"throttle"`
	Starter   bool    `json:"starter"`
	Running   bool    `json:"running"` // above the idle threshold
	CrankRad  float64 `json:"crankRadius"`
	BoreRad   float64 `json:"boreRadius"`
	Height    float64 `json:"height"`
	RodLength float64 `json:"rodLength"`

	Cylinders []CylinderFrame `json:"cylinders"`
}
