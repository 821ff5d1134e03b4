package engine

// Diag counts clamp events and valve/ignition actions for one cylinder.
// The model degrades gracefully on numeric faults instead of erroring, so
// these counters are the only way a caller can observe that a clamp fired.
type Diag struct {
	TempClamps     uint64 // temperature pushed back into [250, 4000] K
	MassClamps     uint64 // a species mass clamped up to zero
	RatioClamps    uint64 // polytropic volume ratio clamped to [0.5, 2.0]
	RadicandClamps uint64 // negative pin-offset radicand clamped to zero

	Injects  uint64
	Sparks   uint64
	Exhausts uint64
}
