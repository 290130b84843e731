package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

const angleTol = 1e-9

// ---------- Scalar helpers ----------

func TestClamp(t *testing.T) {
	cases := []struct {
		v, lo, hi, want float64
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{0, 0, 10, 0},
		{10, 0, 10, 10},
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

// ---------- Angle normalization ----------

func TestNormalizeDir(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{2 * math.Pi, 0},
		{-math.Pi / 2, 3 * math.Pi / 2},
		{5 * math.Pi, math.Pi},
		{-2 * math.Pi, 0},
	}
	for _, c := range cases {
		got := NormalizeDir(c.in)
		if math.Abs(got-c.want) > angleTol {
			t.Errorf("NormalizeDir(%v) = %v, want %v", c.in, got, c.want)
		}
		if got < 0 || got >= 2*math.Pi {
			t.Errorf("NormalizeDir(%v) = %v outside [0, 2Pi)", c.in, got)
		}
	}
}

func TestShortestArc_ThroughZero(t *testing.T) {
	// 350deg toward 10deg is +20deg through zero, not -340deg.
	from := 350.0 * math.Pi / 180
	to := 10.0 * math.Pi / 180
	want := 20.0 * math.Pi / 180

	got := ShortestArc(from, to)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("ShortestArc(350deg, 10deg) = %v rad, want %v", got, want)
	}

	// And the reverse direction is -20deg.
	got = ShortestArc(to, from)
	if math.Abs(got+want) > 1e-9 {
		t.Errorf("ShortestArc(10deg, 350deg) = %v rad, want %v", got, -want)
	}
}

func TestShortestArc_HalfTurnTieIsPositive(t *testing.T) {
	// Exactly opposite facings: the arc is Pi either way, and the
	// convention resolves the tie to +Pi so rotation direction is stable.
	if got := ShortestArc(0, math.Pi); math.Abs(got-math.Pi) > angleTol {
		t.Errorf("ShortestArc(0, Pi) = %v, want +Pi", got)
	}
	if got := ShortestArc(math.Pi, 0); math.Abs(got-math.Pi) > angleTol {
		t.Errorf("ShortestArc(Pi, 0) = %v, want +Pi", got)
	}
}

func TestShortestArc_Range(t *testing.T) {
	for from := 0.0; from < 2*math.Pi; from += 0.37 {
		for to := 0.0; to < 2*math.Pi; to += 0.41 {
			d := ShortestArc(from, to)
			if d <= -math.Pi || d > math.Pi {
				t.Fatalf("ShortestArc(%v, %v) = %v outside (-Pi, Pi]", from, to, d)
			}
			if math.Abs(ShortestArc(NormalizeDir(from+d), to)) > 1e-9 {
				t.Fatalf("ShortestArc(%v, %v) = %v does not land on target", from, to, d)
			}
		}
	}
}

// ---------- Rotation stepping ----------

func TestRotateToward_SnapsWhenClose(t *testing.T) {
	got := RotateToward(0.1, 0.15, 0.2)
	if math.Abs(got-0.15) > angleTol {
		t.Errorf("RotateToward should land on target when step covers the arc: got %v", got)
	}
}

func TestRotateToward_StepsShorterArc(t *testing.T) {
	// cur just below 2Pi, target just past zero: the short arc crosses
	// the wrap, so one step moves forward over it.
	got := RotateToward(6.25, 0.2, 0.1)
	want := NormalizeDir(6.25 + 0.1)
	if math.Abs(got-want) > angleTol {
		t.Errorf("RotateToward(6.25, 0.2, 0.1) = %v, want %v", got, want)
	}

	// Negative arc steps the other way.
	got = RotateToward(0.2, 6.25, 0.1)
	if math.Abs(got-0.1) > angleTol {
		t.Errorf("RotateToward(0.2, 6.25, 0.1) = %v, want 0.1", got)
	}
}

func TestRotateToward_Converges(t *testing.T) {
	cur := 5.9
	target := 1.2
	for i := 0; i < 200; i++ {
		cur = RotateToward(cur, target, 0.05)
	}
	if math.Abs(ShortestArc(cur, target)) > angleTol {
		t.Errorf("facing did not converge: cur=%v target=%v", cur, target)
	}
}

func TestFacingReached_Wraparound(t *testing.T) {
	if !FacingReached(0.05, 2*math.Pi-0.05, 0.2) {
		t.Error("facings 0.1 rad apart across the wrap should be within tol 0.2")
	}
	if FacingReached(0, math.Pi/2, 0.2) {
		t.Error("facings Pi/2 apart should not be within tol 0.2")
	}
}

// ---------- Vector angles ----------

func TestHeading(t *testing.T) {
	if _, ok := Heading(r2.Vec{}); ok {
		t.Error("zero vector should not define a heading")
	}
	if _, ok := Heading(r2.Vec{X: 1e-4, Y: 0}); ok {
		t.Error("near-zero vector should not define a heading")
	}

	dir, ok := Heading(r2.Vec{X: 1, Y: 0})
	if !ok || math.Abs(dir) > angleTol {
		t.Errorf("Heading(+X) = %v, %v, want 0, true", dir, ok)
	}
	dir, ok = Heading(r2.Vec{X: 0, Y: -1})
	if !ok || math.Abs(dir-3*math.Pi/2) > angleTol {
		t.Errorf("Heading(-Y) = %v, %v, want 3Pi/2, true", dir, ok)
	}
}

func TestDirVecAngleOfRoundtrip(t *testing.T) {
	for a := 0.0; a < 2*math.Pi; a += 0.3 {
		back := AngleOf(DirVec(a))
		if math.Abs(ShortestArc(back, a)) > 1e-9 {
			t.Errorf("AngleOf(DirVec(%v)) = %v", a, back)
		}
	}
}

func TestRotateLeft(t *testing.T) {
	got := RotateLeft(r2.Vec{X: 1, Y: 0})
	if math.Abs(got.X) > angleTol || math.Abs(got.Y-1) > angleTol {
		t.Errorf("RotateLeft(+X) = %+v, want +Y", got)
	}
	got = RotateLeft(r2.Vec{X: 0, Y: 1})
	if math.Abs(got.X+1) > angleTol || math.Abs(got.Y) > angleTol {
		t.Errorf("RotateLeft(+Y) = %+v, want -X", got)
	}
}

func TestSignedAngle(t *testing.T) {
	got := SignedAngle(r2.Vec{X: 1}, r2.Vec{Y: 1})
	if math.Abs(got-math.Pi/2) > angleTol {
		t.Errorf("SignedAngle(+X, +Y) = %v, want +Pi/2", got)
	}
	got = SignedAngle(r2.Vec{X: 1}, r2.Vec{Y: -1})
	if math.Abs(got+math.Pi/2) > angleTol {
		t.Errorf("SignedAngle(+X, -Y) = %v, want -Pi/2", got)
	}
	if got := SignedAngle(r2.Vec{X: 1}, r2.Vec{X: 2}); math.Abs(got) > angleTol {
		t.Errorf("SignedAngle of parallel vectors = %v, want 0", got)
	}
}

// ---------- Vector hygiene ----------

func TestSafeUnit(t *testing.T) {
	got := SafeUnit(r2.Vec{X: 3, Y: 4})
	if math.Abs(got.X-0.6) > 1e-12 || math.Abs(got.Y-0.8) > 1e-12 {
		t.Errorf("SafeUnit(3,4) = %+v, want (0.6, 0.8)", got)
	}

	got = SafeUnit(r2.Vec{})
	if got.X != 0 || got.Y != 0 {
		t.Errorf("SafeUnit(zero) = %+v, want zero (not NaN)", got)
	}
}

func TestIsValidVec(t *testing.T) {
	cases := []struct {
		v    r2.Vec
		want bool
	}{
		{r2.Vec{X: 1, Y: 2}, true},
		{r2.Vec{}, true},
		{r2.Vec{X: math.NaN()}, false},
		{r2.Vec{Y: math.NaN()}, false},
		{r2.Vec{X: math.Inf(1)}, false},
		{r2.Vec{Y: math.Inf(-1)}, false},
	}
	for _, c := range cases {
		if got := IsValidVec(c.v); got != c.want {
			t.Errorf("IsValidVec(%+v) = %v, want %v", c.v, got, c.want)
		}
	}
}
