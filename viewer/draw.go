package viewer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/ambleworks/crowd/components"
)

var backgroundColor = rl.Color{R: 18, G: 18, B: 22, A: 255}

// Draw renders one frame. Call between sim updates on the main thread.
func (v *Viewer) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(backgroundColor)

	v.drawWorld()
	v.drawAgents()
	v.drawSelection()
	v.drawHUD()
	v.panel.Draw(v.sim, v.screenW)

	rl.EndDrawing()
}

func (v *Viewer) drawWorld() {
	scene := v.sim.Scene()

	// World bounds.
	x0, y0 := v.cam.WorldToScreen(0, 0)
	ppm := v.cam.PixelsPerMeter()
	bounds := rl.Rectangle{
		X:      x0,
		Y:      y0,
		Width:  float32(scene.Width()) * ppm,
		Height: float32(scene.Height()) * ppm,
	}
	rl.DrawRectangleLinesEx(bounds, 2, rl.DarkGray)

	for _, o := range scene.Obstacles() {
		ax, ay := v.cam.WorldToScreen(float32(o.A.X), float32(o.A.Y))
		bx, by := v.cam.WorldToScreen(float32(o.B.X), float32(o.B.Y))
		rl.DrawLineEx(rl.Vector2{X: ax, Y: ay}, rl.Vector2{X: bx, Y: by}, 3, rl.Color{R: 90, G: 95, B: 105, A: 255})
	}

	for _, id := range scene.WaypointIDs() {
		w := scene.Waypoint(id)
		if w == nil {
			continue
		}
		if !v.cam.IsVisible(float32(w.Pos.X), float32(w.Pos.Y), float32(w.Radius)) {
			continue
		}
		sx, sy := v.cam.WorldToScreen(float32(w.Pos.X), float32(w.Pos.Y))
		rl.DrawCircleLines(int32(sx), int32(sy), float32(w.Radius)*ppm, kindColor(w.Kind))
		if ppm >= 12 {
			rl.DrawText(w.Name, int32(sx)+4, int32(sy)+4, 10, rl.LightGray)
		}
	}
}

func (v *Viewer) drawAgents() {
	scene := v.sim.Scene()
	ppm := v.cam.PixelsPerMeter()

	for _, e := range scene.Agents() {
		a := scene.Agent(e)
		if a == nil {
			continue
		}
		k := a.Kin()
		if !v.cam.IsVisible(float32(k.Pos.X), float32(k.Pos.Y), float32(k.Radius)*2) {
			continue
		}
		sx, sy := v.cam.WorldToScreen(float32(k.Pos.X), float32(k.Pos.Y))
		r := float32(k.Radius) * ppm
		if r < 2 {
			r = 2
		}
		col := familyColor(a.SM.State().Family())

		if a.Type.IsRobot() {
			drawOrientedTriangle(sx, sy, float32(k.Dir), r, col)
			continue
		}

		rl.DrawCircleV(rl.Vector2{X: sx, Y: sy}, r, col)
		// Facing tick.
		tx := sx + float32(math.Cos(k.Dir))*r*1.6
		ty := sy + float32(math.Sin(k.Dir))*r*1.6
		rl.DrawLineV(rl.Vector2{X: sx, Y: sy}, rl.Vector2{X: tx, Y: ty}, rl.White)
	}
}

func (v *Viewer) drawSelection() {
	if v.selected == nil {
		return
	}
	scene := v.sim.Scene()
	ppm := v.cam.PixelsPerMeter()
	k := v.selected.Kin()
	sx, sy := v.cam.WorldToScreen(float32(k.Pos.X), float32(k.Pos.Y))
	r := float32(k.Radius) * ppm
	if r < 2 {
		r = 2
	}
	rl.DrawCircleLines(int32(sx), int32(sy), r+4, rl.Yellow)

	if w := scene.Waypoint(v.selected.CurrentDestination()); w != nil {
		wx, wy := v.cam.WorldToScreen(float32(w.Pos.X), float32(w.Pos.Y))
		rl.DrawLineV(rl.Vector2{X: sx, Y: sy}, rl.Vector2{X: wx, Y: wy}, rl.Fade(rl.Yellow, 0.5))
	}
}

// drawOrientedTriangle draws a triangle pointing in the heading direction.
func drawOrientedTriangle(x, y, heading, radius float32, col rl.Color) {
	cos := float32(math.Cos(float64(heading)))
	sin := float32(math.Sin(float64(heading)))

	frontX := x + cos*radius*1.5
	frontY := y + sin*radius*1.5

	backAngle := heading + math.Pi*0.8
	backLeftX := x + float32(math.Cos(float64(backAngle)))*radius
	backLeftY := y + float32(math.Sin(float64(backAngle)))*radius

	backAngle = heading - math.Pi*0.8
	backRightX := x + float32(math.Cos(float64(backAngle)))*radius
	backRightY := y + float32(math.Sin(float64(backAngle)))*radius

	v1 := rl.Vector2{X: frontX, Y: frontY}
	v2 := rl.Vector2{X: backLeftX, Y: backLeftY}
	v3 := rl.Vector2{X: backRightX, Y: backRightY}

	// DrawTriangle requires counter-clockwise winding (v1, v3, v2)
	rl.DrawTriangle(v1, v3, v2, col)
	rl.DrawTriangleLines(v1, v2, v3, rl.White)
}

func familyColor(f components.StateFamily) rl.Color {
	switch f {
	case components.FamilyLocomotion:
		return rl.Green
	case components.FamilyWork:
		return rl.Orange
	case components.FamilySocial:
		return rl.SkyBlue
	case components.FamilyService:
		return rl.Violet
	default:
		return rl.Gray
	}
}

func kindColor(k components.WaypointKind) rl.Color {
	switch k {
	case components.WaypointShelf:
		return rl.Orange
	case components.WaypointQueue:
		return rl.Gold
	case components.WaypointWork:
		return rl.Beige
	case components.WaypointAttraction:
		return rl.Pink
	case components.WaypointService:
		return rl.Violet
	default:
		return rl.Gray
	}
}
