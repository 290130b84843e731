package viewer

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/ambleworks/crowd/components"
	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/sim"
)

const (
	panelWidth  = 260
	panelHeight = 470
	rowHeight   = 53
)

var panelBg = rl.Color{R: 20, G: 25, B: 30, A: 240}

// Panel is the raygui force-tuning panel. The desired, social and
// obstacle factors are sampled per agent at spawn, so moving those
// sliders rescales every agent in place and updates the config for
// future spawns. The remaining factors are read from the config each
// tick and only need the config write.
type Panel struct {
	visible bool
	bounds  rl.Rectangle

	baseForces config.ForcesConfig
	baseGroup  config.GroupConfig
}

// NewPanel captures the current config as the reset baseline.
func NewPanel() *Panel {
	cfg := config.Cfg()
	return &Panel{
		baseForces: cfg.Forces,
		baseGroup:  cfg.Group,
	}
}

// Toggle shows or hides the panel.
func (p *Panel) Toggle() { p.visible = !p.visible }

// Contains reports whether a screen position falls inside the visible
// panel, so clicks on it do not select agents underneath.
func (p *Panel) Contains(pos rl.Vector2) bool {
	return p.visible && rl.CheckCollisionPointRec(pos, p.bounds)
}

// Draw renders the panel anchored to the top-right corner and applies
// any slider or button changes to the simulation.
func (p *Panel) Draw(s *sim.Simulation, screenW float32) {
	if !p.visible {
		return
	}
	p.bounds = rl.Rectangle{X: screenW - panelWidth - 10, Y: 10, Width: panelWidth, Height: panelHeight}
	rl.DrawRectangleRec(p.bounds, panelBg)
	rl.DrawRectangleLinesEx(p.bounds, 1, rl.Color{R: 60, G: 70, B: 80, A: 255})

	cfg := config.Cfg()
	scene := s.Scene()
	x := p.bounds.X + 10
	y := p.bounds.Y + 10
	w := p.bounds.Width - 80

	rl.DrawText("Force tuning", int32(x), int32(y), 16, rl.White)
	y += 28

	oldVal := float32(cfg.Forces.FactorDesired)
	if newVal := sliderRow(x, y, w, "Desired", "%.2f", oldVal, 0, 6); newVal != oldVal {
		rescaleFactor(scene, cfg.Forces.FactorDesired, float64(newVal),
			func(k *components.Kinematics) *float64 { return &k.FactorDesired })
		cfg.Forces.FactorDesired = float64(newVal)
	}
	y += rowHeight

	oldVal = float32(cfg.Forces.FactorSocial)
	if newVal := sliderRow(x, y, w, "Social", "%.2f", oldVal, 0, 10); newVal != oldVal {
		rescaleFactor(scene, cfg.Forces.FactorSocial, float64(newVal),
			func(k *components.Kinematics) *float64 { return &k.FactorSocial })
		cfg.Forces.FactorSocial = float64(newVal)
	}
	y += rowHeight

	oldVal = float32(cfg.Forces.FactorObstacle)
	if newVal := sliderRow(x, y, w, "Obstacle", "%.1f", oldVal, 0, 50); newVal != oldVal {
		rescaleFactor(scene, cfg.Forces.FactorObstacle, float64(newVal),
			func(k *components.Kinematics) *float64 { return &k.FactorObstacle })
		cfg.Forces.FactorObstacle = float64(newVal)
	}
	y += rowHeight

	oldVal = float32(cfg.Forces.FactorKeepDistance)
	if newVal := sliderRow(x, y, w, "Keep distance", "%.2f", oldVal, 0, 5); newVal != oldVal {
		cfg.Forces.FactorKeepDistance = float64(newVal)
	}
	y += rowHeight

	oldVal = float32(cfg.Forces.FactorRandom)
	if newVal := sliderRow(x, y, w, "Random", "%.2f", oldVal, 0, 1); newVal != oldVal {
		cfg.Forces.FactorRandom = float64(newVal)
	}
	y += rowHeight

	oldVal = float32(cfg.Group.FactorCoherence)
	if newVal := sliderRow(x, y, w, "Group coherence", "%.2f", oldVal, 0, 5); newVal != oldVal {
		cfg.Group.FactorCoherence = float64(newVal)
	}
	y += rowHeight

	rl.DrawLine(int32(x), int32(y), int32(x+p.bounds.Width-20), int32(y), rl.Color{R: 60, G: 70, B: 80, A: 255})
	y += 12

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: 110, Height: 30}, toggleText(s.Paused(), "Resume", "Pause")) {
		s.TogglePause()
	}
	if gui.Button(rl.Rectangle{X: x + 120, Y: y, Width: 110, Height: 30}, "Snapshot") {
		s.SaveSnapshot()
	}
	y += 40

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: 230, Height: 30}, "Reset forces") {
		p.resetForces(scene)
	}
}

// resetForces restores the baseline captured at startup, rescaling the
// per-agent factors back through the same ratio path.
func (p *Panel) resetForces(scene *sim.Scene) {
	cfg := config.Cfg()
	rescaleFactor(scene, cfg.Forces.FactorDesired, p.baseForces.FactorDesired,
		func(k *components.Kinematics) *float64 { return &k.FactorDesired })
	rescaleFactor(scene, cfg.Forces.FactorSocial, p.baseForces.FactorSocial,
		func(k *components.Kinematics) *float64 { return &k.FactorSocial })
	rescaleFactor(scene, cfg.Forces.FactorObstacle, p.baseForces.FactorObstacle,
		func(k *components.Kinematics) *float64 { return &k.FactorObstacle })
	cfg.Forces = p.baseForces
	cfg.Group = p.baseGroup
}

// rescaleFactor multiplies one per-agent force factor by newVal/oldVal
// for every agent, preserving the relative scaling agent types get at
// spawn. A zero baseline cannot be rescaled and is left alone.
func rescaleFactor(scene *sim.Scene, oldVal, newVal float64, pick func(*components.Kinematics) *float64) {
	if oldVal == 0 {
		return
	}
	ratio := newVal / oldVal
	for _, e := range scene.Agents() {
		k := scene.Kin(e)
		if k == nil {
			continue
		}
		*pick(k) *= ratio
	}
}

func sliderRow(x, y, w float32, label, format string, value, minVal, maxVal float32) float32 {
	rl.DrawText(label, int32(x), int32(y), 14, rl.Gray)
	newVal := gui.SliderBar(
		rl.Rectangle{X: x, Y: y + 18, Width: w, Height: 20},
		"", "",
		value, minVal, maxVal,
	)
	rl.DrawText(fmt.Sprintf(format, value), int32(x+w+8), int32(y+20), 16, rl.LightGray)
	return newVal
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
