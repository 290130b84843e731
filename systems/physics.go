package systems

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
)

// Integrate advances kinematics by one Euler step: the aggregate force is
// the acceleration, velocity is clamped to VMax, position follows velocity.
func Integrate(k *components.Kinematics, force r2.Vec, h float64) {
	k.Acc = force
	k.Vel = r2.Add(k.Vel, r2.Scale(h, k.Acc))

	if speed := r2.Norm(k.Vel); speed > k.VMax && speed > 0 {
		k.Vel = r2.Scale(k.VMax/speed, k.Vel)
	}

	k.Pos = r2.Add(k.Pos, r2.Scale(h, k.Vel))
}

// Halt zeroes velocity and acceleration without touching position.
func Halt(k *components.Kinematics) {
	k.Vel = r2.Vec{}
	k.Acc = r2.Vec{}
}
