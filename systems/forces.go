package systems

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
)

// Moussaid interaction-law constants (Moussaid et al. 2009). These are not
// tunables; calibration adjusts the force factors around them instead.
const (
	socialLambda = 2.0  // relative-velocity importance
	socialGamma  = 0.35 // interaction-range scaling
	socialN      = 2.0  // angular falloff of the deflection term
	socialNPrime = 3.0  // angular falloff of the repulsion term
)

// NeighborKin is the pre-move kinematic sample of one neighbor, prepared
// from the spatial grid before any agent has moved this tick.
type NeighborKin struct {
	Pos r2.Vec
	Vel r2.Vec
}

// DesiredForce relaxes velocity toward VMax along dir. When the agent has
// no target, it decays the current velocity instead (braking).
func DesiredForce(k *components.Kinematics, hasTarget bool, dir r2.Vec) r2.Vec {
	if !hasTarget {
		return r2.Scale(-1/k.RelaxTime, k.Vel)
	}
	want := r2.Scale(k.VMax, dir)
	return r2.Scale(1/k.RelaxTime, r2.Sub(want, k.Vel))
}

// SocialForce sums the Moussaid pairwise interaction over the given
// neighbors: a repulsion term along the interaction direction plus a
// deflection term along its left normal.
func SocialForce(k *components.Kinematics, neighbors []NeighborKin) r2.Vec {
	var force r2.Vec

	for i := range neighbors {
		nb := &neighbors[i]

		diff := r2.Sub(nb.Pos, k.Pos)
		dist := r2.Norm(diff)
		if dist < 1e-9 {
			continue
		}
		diffDir := r2.Scale(1/dist, diff)

		velDiff := r2.Sub(k.Vel, nb.Vel)
		interaction := r2.Add(r2.Scale(socialLambda, velDiff), diffDir)
		interactionLen := r2.Norm(interaction)
		if interactionLen < 1e-9 {
			continue
		}
		interactionDir := r2.Scale(1/interactionLen, interaction)

		theta := SignedAngle(interactionDir, diffDir)
		b := socialGamma * interactionLen

		repulsion := -math.Exp(-dist/b - (socialNPrime*b*theta)*(socialNPrime*b*theta))
		deflection := -sign(theta) * math.Exp(-dist/b-(socialN*b*theta)*(socialN*b*theta))

		force = r2.Add(force, r2.Scale(repulsion, interactionDir))
		force = r2.Add(force, r2.Scale(deflection, RotateLeft(interactionDir)))
	}

	return force
}

// ObstacleForce pushes away from the closest point on the closest obstacle,
// with exponential falloff past the body radius.
func ObstacleForce(k *components.Kinematics, obstacles []components.Obstacle, sigma float64) r2.Vec {
	if len(obstacles) == 0 {
		return r2.Vec{}
	}

	minDist := math.Inf(1)
	var minDiff r2.Vec
	for i := range obstacles {
		cp := obstacles[i].ClosestPoint(k.Pos)
		diff := r2.Sub(k.Pos, cp)
		d := r2.Norm(diff) - k.Radius
		if d < minDist {
			minDist = d
			minDiff = diff
		}
	}

	amount := math.Exp(-minDist / sigma)
	return r2.Scale(amount, SafeUnit(minDiff))
}

// KeepDistanceForce is a radial spring toward the ring at `standoff` around
// `center`: agents too far are pulled in, agents too close are pushed out.
func KeepDistanceForce(k *components.Kinematics, center r2.Vec, standoff float64) r2.Vec {
	toCenter := r2.Sub(center, k.Pos)
	dist := r2.Norm(toCenter)
	if dist < 1e-9 {
		return r2.Vec{}
	}
	radialError := dist - standoff
	return r2.Scale(radialError/dist, toCenter)
}

// RandomForce returns a small decorrelation jitter with uniformly random
// direction and magnitude.
func RandomForce(rng *rand.Rand) r2.Vec {
	angle := rng.Float64() * 2 * math.Pi
	return r2.Scale(rng.Float64(), DirVec(angle))
}

// GroupCoherenceForce pulls toward the group centroid once the agent is
// farther than the relaxed walking distance (half the member count).
func GroupCoherenceForce(k *components.Kinematics, centroid r2.Vec, memberCount int) r2.Vec {
	if memberCount < 2 {
		return r2.Vec{}
	}
	toCom := r2.Sub(centroid, k.Pos)
	threshold := float64(memberCount-1) / 2
	if r2.Norm(toCom) < threshold {
		return r2.Vec{}
	}
	return SafeUnit(toCom)
}

// GroupRepulsionForce pushes away from group members closer than the
// overlap distance.
func GroupRepulsionForce(k *components.Kinematics, members []NeighborKin, overlapDist float64) r2.Vec {
	var force r2.Vec
	for i := range members {
		diff := r2.Sub(k.Pos, members[i].Pos)
		if r2.Norm(diff) < overlapDist {
			force = r2.Add(force, SafeUnit(diff))
		}
	}
	return force
}

// GroupGazeForce steers back toward the group centroid when it has left the
// forward vision cone, proportionally to how far outside it lies.
func GroupGazeForce(k *components.Kinematics, centroid r2.Vec, visionHalfAngle float64) r2.Vec {
	toCom := r2.Sub(centroid, k.Pos)
	if r2.Norm(toCom) < 1e-9 {
		return r2.Vec{}
	}
	off := math.Abs(SignedAngle(DirVec(k.Dir), toCom))
	if off <= visionHalfAngle {
		return r2.Vec{}
	}
	return r2.Scale(off-visionHalfAngle, SafeUnit(toCom))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
