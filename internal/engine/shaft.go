package engine

import "math"

// Shaft holds the angular velocity of the single rigid crankshaft shared by
// every cylinder. Cylinders reference one Shaft instance; they never carry
// their own copy, so the velocities cannot diverge between steps.
type Shaft struct {
	Velocity float64 // rad/s
}

// RPM converts the shaft angular velocity to revolutions per minute.
func (s *Shaft) RPM() float64 {
	return s.Velocity * 60 / (2 * math.Pi)
}
