package viewer

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r2"
)

const controlsLegend = "space pause | n step | , . speed | arrows pan | wheel zoom | home reset | click select | f follow | t tuning | f5 snapshot"

func (v *Viewer) drawHUD() {
	scene := v.sim.Scene()

	peds, robots := 0, 0
	for _, e := range scene.Agents() {
		a := scene.Agent(e)
		if a == nil {
			continue
		}
		if a.Type.IsRobot() {
			robots++
		} else {
			peds++
		}
	}

	rl.DrawText("crowd", 10, 10, 20, rl.White)
	rl.DrawText(
		fmt.Sprintf("Tick: %d | Time: %.1fs | Pedestrians: %d | Robots: %d", scene.Tick(), scene.Now(), peds, robots),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Speed: %dx | FPS: %d | Zoom: %.2f", v.sim.StepsPerUpdate(), rl.GetFPS(), v.cam.Zoom),
		10, 55, 16, rl.LightGray,
	)

	if v.haveStats {
		st := v.lastStats
		rl.DrawText(
			fmt.Sprintf("Walk speed: %.2f m/s (p90 %.2f) | Social: %d | Service: %d", st.SpeedMean, st.SpeedP90, st.Social, st.Service),
			10, 75, 16, rl.LightGray,
		)
	}

	statusText := "Running"
	if v.sim.Paused() {
		statusText = "PAUSED"
	}
	rl.DrawText(statusText, 10, 95, 16, rl.Yellow)

	v.drawSelectedInfo()

	rl.DrawText(controlsLegend, 10, int32(v.screenH)-25, 14, rl.Gray)
}

func (v *Viewer) drawSelectedInfo() {
	if v.selected == nil {
		return
	}
	a := v.selected
	k := a.Kin()

	y := int32(125)
	rl.DrawText(fmt.Sprintf("Agent #%d (%s)", a.Serial, a.Type), 10, y, 16, rl.Yellow)
	y += 20
	rl.DrawText(fmt.Sprintf("State: %s", a.SM.State()), 10, y, 14, rl.LightGray)
	y += 16
	rl.DrawText(fmt.Sprintf("Speed: %.2f m/s (max %.2f)", r2.Norm(k.Vel), k.VMax), 10, y, 14, rl.LightGray)
	y += 16
	dest := "-"
	if w := v.sim.Scene().Waypoint(a.CurrentDestination()); w != nil {
		dest = w.Name
	}
	rl.DrawText(fmt.Sprintf("Destination: %s", dest), 10, y, 14, rl.LightGray)
}
