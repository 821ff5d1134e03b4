package engine

// Stage identifies the stroke a cylinder is currently executing. Stages are
// derived from crank rotation every step, never stored as primary state.
type Stage int

const (
	StageIntake Stage = iota
	StageCompression
	StageCombustion
	StageExhaust
)

// String returns the display label used by dashboards and logs.
func (s Stage) String() string {
	switch s {
	case StageIntake:
		return "INJECT"
	case StageCompression:
		return "COMPRESS"
	case StageCombustion:
		return "COMBUST"
	case StageExhaust:
		return "EXHAUST"
	default:
		return "N/A"
	}
}
