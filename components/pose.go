package components

import "gonum.org/v1/gonum/spatial/r2"

// PoseStamped is one immutable sample of a scripted maneuver: where the
// agent should be and which way it should face at a given scene time.
// Ordered sequences of these form a move list.
type PoseStamped struct {
	Time float64
	Pos  r2.Vec
	Dir  float64
}
