package viewer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r2"
)

const panSpeed = 8 // screen pixels per frame

func (v *Viewer) handleInput() {
	v.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	// Simulation control.
	if rl.IsKeyPressed(rl.KeySpace) {
		v.sim.TogglePause()
	}
	if rl.IsKeyPressed(rl.KeyN) && v.sim.Paused() {
		v.sim.StepOnce()
	}
	if rl.IsKeyPressed(rl.KeyComma) {
		n := v.sim.StepsPerUpdate() - 1
		if n < 1 {
			n = 1
		}
		v.sim.SetStepsPerUpdate(n)
	}
	if rl.IsKeyPressed(rl.KeyPeriod) {
		n := v.sim.StepsPerUpdate() + 1
		if n > 10 {
			n = 10
		}
		v.sim.SetStepsPerUpdate(n)
	}
	if rl.IsKeyPressed(rl.KeyF5) {
		v.sim.SaveSnapshot()
	}

	// Panel and selection.
	if rl.IsKeyPressed(rl.KeyT) {
		v.panel.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyF) && v.selected != nil {
		v.follow = !v.follow
	}
	if rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		mouse := rl.GetMousePosition()
		if !v.panel.Contains(mouse) {
			wx, wy := v.cam.ScreenToWorld(mouse.X, mouse.Y)
			v.selectAt(r2.Vec{X: float64(wx), Y: float64(wy)})
		}
	}

	v.handleCameraInput()
}

func (v *Viewer) handleCameraInput() {
	// Pan takes screen pixels, so a constant delta pans slower in world
	// units the further in we zoom.
	if rl.IsKeyDown(rl.KeyLeft) {
		v.cam.Pan(-panSpeed, 0)
		v.follow = false
	}
	if rl.IsKeyDown(rl.KeyRight) {
		v.cam.Pan(panSpeed, 0)
		v.follow = false
	}
	if rl.IsKeyDown(rl.KeyUp) {
		v.cam.Pan(0, -panSpeed)
		v.follow = false
	}
	if rl.IsKeyDown(rl.KeyDown) {
		v.cam.Pan(0, panSpeed)
		v.follow = false
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		v.cam.ZoomBy(1 + wheel*0.1)
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		v.cam.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		v.cam.ZoomBy(0.8)
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		v.cam.Reset()
	}
}

func (v *Viewer) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	v.screenW = float32(rl.GetScreenWidth())
	v.screenH = float32(rl.GetScreenHeight())
	v.cam.Resize(v.screenW, v.screenH)
}
