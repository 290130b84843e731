// Package viewer renders the running simulation with raylib: the world
// plan, agent markers, a HUD, and a raygui panel for live force tuning.
package viewer

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/camera"
	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/sim"
	"github.com/ambleworks/crowd/telemetry"
)

// Viewer owns the window-side state: camera, selection, tuning panel,
// and the last flushed stats window.
type Viewer struct {
	sim *sim.Simulation
	cam *camera.Camera

	panel *Panel

	lastStats telemetry.WindowStats
	haveStats bool

	selected *sim.Agent
	follow   bool

	screenW, screenH float32
}

// New builds a viewer around a simulation. Call after rl.InitWindow.
func New(s *sim.Simulation) *Viewer {
	cfg := config.Cfg()
	scene := s.Scene()
	v := &Viewer{
		sim: s,
		cam: camera.New(
			float32(cfg.Viewer.Width), float32(cfg.Viewer.Height),
			float32(scene.Width()), float32(scene.Height()),
			float32(cfg.Viewer.Scale),
		),
		panel:   NewPanel(),
		screenW: float32(cfg.Viewer.Width),
		screenH: float32(cfg.Viewer.Height),
	}
	s.AddStatsCallback(func(ws telemetry.WindowStats) {
		v.lastStats = ws
		v.haveStats = true
	})
	return v
}

// Update handles input and advances the simulation.
func (v *Viewer) Update() {
	v.handleInput()
	v.sim.Update()
	v.sim.RecordFrame()
	if v.follow && v.selected != nil {
		k := v.selected.Kin()
		v.cam.CenterOn(float32(k.Pos.X), float32(k.Pos.Y))
	}
}

// selectAt picks the agent nearest to a world position, within one
// meter. A miss clears the selection.
func (v *Viewer) selectAt(p r2.Vec) {
	scene := v.sim.Scene()
	var closest *sim.Agent
	closestDist := 1.0
	for _, e := range scene.Agents() {
		a := scene.Agent(e)
		if a == nil {
			continue
		}
		d := r2.Norm(r2.Sub(a.Kin().Pos, p))
		if d < closestDist {
			closestDist = d
			closest = a
		}
	}
	v.selected = closest
	if v.selected == nil {
		v.follow = false
	}
}
