package components

import "gonum.org/v1/gonum/spatial/r2"

// Kinematics is the ark component holding an agent's continuous motion
// state. Pos/Vel/Acc are in world units (meters, seconds); Dir is the
// facing direction in radians, normalized to [0, 2pi).
type Kinematics struct {
	Pos r2.Vec
	Vel r2.Vec
	Acc r2.Vec
	Dir float64

	VMax      float64 // speed clamp applied by integration
	Radius    float64 // body radius used by the obstacle force
	RelaxTime float64 // desired-force relaxation time

	// Per-agent force factors. Spawned from config, then adjusted by
	// type rules (elder slowdown, robot social-drive overrides).
	FactorDesired  float64
	FactorSocial   float64
	FactorObstacle float64
}

// Speed returns the velocity magnitude.
func (k *Kinematics) Speed() float64 {
	return r2.Norm(k.Vel)
}

// Identity is the ark component tagging an entity with its agent kind and
// a small per-run serial used in logs and telemetry.
type Identity struct {
	Serial int32
	Type   AgentType
}
