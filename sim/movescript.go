package sim

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/systems"
)

// ScriptParams bundles the rates and tolerances of the movement script
// generator.
type ScriptParams struct {
	LinearRate      float64
	AngularRate     float64
	AngleTolerance  float64
	DistTolerance   float64
	TravelDistance  float64
	LeadTime        float64
	OvershootMargin float64
}

func scriptParams() ScriptParams {
	c := config.Cfg().Scripts
	return ScriptParams{
		LinearRate:      c.LinearRate,
		AngularRate:     c.AngularRate,
		AngleTolerance:  c.AngleTolerance,
		DistTolerance:   c.DistanceTolerance,
		TravelDistance:  c.TravelDistance,
		LeadTime:        c.LeadTime,
		OvershootMargin: c.OvershootMargin,
	}
}

// ApproachAndFace synthesizes the move list for the reached-shelf maneuver:
// a rotation phase toward targetAngle along the shorter angular path, then a
// fixed-distance forward translation along the final facing. Sampling starts
// a lead time in the future so observed schedules settle before playback.
func ApproachAndFace(start components.PoseStamped, targetAngle, h float64, p ScriptParams) []components.PoseStamped {
	list := make([]components.PoseStamped, 0, 64)
	t := start.Time + p.LeadTime
	list, t, dir := rotatePhase(list, t, start.Pos, start.Dir, targetAngle, h, p)
	list, _, _ = translatePhase(list, t, start.Pos, dir, systems.DirVec(dir), h, p, "approach")
	return list
}

// BackUpAndTurn synthesizes the move list for the back-up maneuver: a
// fixed-distance translation along the reverse of the current facing, then a
// rotation phase toward targetAngle.
func BackUpAndTurn(start components.PoseStamped, targetAngle, h float64, p ScriptParams) []components.PoseStamped {
	list := make([]components.PoseStamped, 0, 64)
	t := start.Time + p.LeadTime
	back := r2.Scale(-1, systems.DirVec(start.Dir))
	list, t, pos := translatePhase(list, t, start.Pos, start.Dir, back, h, p, "backup")
	list, _, _ = rotatePhase(list, t, pos, start.Dir, targetAngle, h, p)
	return list
}

// rotatePhase appends one sample per angular step until the facing is within
// tolerance of target. The step snaps onto the target once the remaining arc
// is smaller than one step, so the phase always terminates.
func rotatePhase(list []components.PoseStamped, t float64, pos r2.Vec, dir, target, h float64, p ScriptParams) ([]components.PoseStamped, float64, float64) {
	step := p.AngularRate * h
	for math.Abs(systems.ShortestArc(dir, target)) > p.AngleTolerance {
		dir = systems.RotateToward(dir, target, step)
		t += h
		list = append(list, components.PoseStamped{Time: t, Pos: pos, Dir: dir})
	}
	return list, t, dir
}

// translatePhase appends one sample per linear step along heading until the
// travel distance is covered. Remaining distance growing past the original
// distance plus the margin means numerical drift; the phase is truncated
// with a warning instead of looping.
func translatePhase(list []components.PoseStamped, t float64, pos r2.Vec, dir float64, heading r2.Vec, h float64, p ScriptParams, label string) ([]components.PoseStamped, float64, r2.Vec) {
	origin := pos
	step := r2.Scale(p.LinearRate*h, heading)
	for {
		remaining := p.TravelDistance - r2.Norm(r2.Sub(pos, origin))
		if remaining <= p.DistTolerance {
			break
		}
		if remaining > p.TravelDistance+p.OvershootMargin {
			slog.Warn("movement script overshoot, truncating",
				"phase", label,
				"remaining", remaining,
				"travel", p.TravelDistance,
			)
			break
		}
		pos = r2.Add(pos, step)
		t += h
		list = append(list, components.PoseStamped{Time: t, Pos: pos, Dir: dir})
	}
	return list, t, pos
}
