package components

import "gonum.org/v1/gonum/spatial/r2"

// Obstacle is a static line segment (walls, shelf edges). Point obstacles
// are segments with A == B.
type Obstacle struct {
	A, B r2.Vec
}

// ClosestPoint returns the point on the segment nearest to p.
func (o *Obstacle) ClosestPoint(p r2.Vec) r2.Vec {
	ab := r2.Sub(o.B, o.A)
	lenSq := r2.Norm2(ab)
	if lenSq == 0 {
		return o.A
	}
	t := r2.Dot(r2.Sub(p, o.A), ab) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return r2.Add(o.A, r2.Scale(t, ab))
}
