package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

func sqrt(v float64) float64 { return math.Sqrt(v) }

// Clamp limits v to [minVal, maxVal].
func Clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// NormalizeDir wraps a facing direction to [0, 2*Pi).
func NormalizeDir(a float64) float64 {
	const twoPi = 2 * math.Pi
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}

// ShortestArc returns the signed rotation from angle `from` to angle `to`,
// wrapped to (-Pi, Pi]. The sign picks the shorter arc: rotating 350deg
// toward 10deg yields +20deg (through zero), never -340deg.
func ShortestArc(from, to float64) float64 {
	d := math.Mod(to-from, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// RotateToward steps the facing `cur` toward `target` by at most `step`
// radians along the shorter arc, normalized to [0, 2*Pi).
func RotateToward(cur, target, step float64) float64 {
	arc := ShortestArc(cur, target)
	if math.Abs(arc) <= step {
		return NormalizeDir(target)
	}
	if arc < 0 {
		step = -step
	}
	return NormalizeDir(cur + step)
}

// FacingReached reports whether cur is within tol radians of target along
// the shorter arc.
func FacingReached(cur, target, tol float64) bool {
	return math.Abs(ShortestArc(cur, target)) < tol
}

// Heading returns the direction of v in [0, 2*Pi), or ok=false when v is
// too short to define one.
func Heading(v r2.Vec) (dir float64, ok bool) {
	if r2.Norm(v) < 1e-3 {
		return 0, false
	}
	return NormalizeDir(math.Atan2(v.Y, v.X)), true
}

// DirVec returns the unit vector pointing along dir.
func DirVec(dir float64) r2.Vec {
	return r2.Vec{X: math.Cos(dir), Y: math.Sin(dir)}
}

// AngleOf returns the direction of v in [0, 2*Pi) with no minimum length.
func AngleOf(v r2.Vec) float64 {
	return NormalizeDir(math.Atan2(v.Y, v.X))
}

// RotateLeft returns v rotated +90 degrees (counter-clockwise).
func RotateLeft(v r2.Vec) r2.Vec {
	return r2.Vec{X: -v.Y, Y: v.X}
}

// SignedAngle returns the signed angle from a to b in (-Pi, Pi].
func SignedAngle(a, b r2.Vec) float64 {
	return math.Atan2(r2.Cross(a, b), r2.Dot(a, b))
}

// SafeUnit returns the unit vector of v, or the zero vector when v is too
// short to normalize (r2.Unit would return NaNs).
func SafeUnit(v r2.Vec) r2.Vec {
	n := r2.Norm(v)
	if n < 1e-12 {
		return r2.Vec{}
	}
	return r2.Scale(1/n, v)
}

// IsValidVec reports whether both vector components are finite.
func IsValidVec(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}
