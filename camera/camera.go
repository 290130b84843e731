// Package camera provides a 2D camera for viewport control.
package camera

// Camera maps world coordinates (meters) to screen pixels.
// The world is a bounded rectangle; panning clamps to it.
type Camera struct {
	// Position is the camera center in world coordinates
	X, Y float32

	// Scale is the base pixels-per-meter at zoom 1.0
	Scale float32

	// Zoom level on top of Scale (1.0 = 1:1, 2.0 = 2x magnification)
	Zoom float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// World dimensions in meters
	WorldW, WorldH float32

	// Zoom constraints
	MinZoom, MaxZoom float32
}

// New creates a camera centered on the world with 1:1 zoom.
func New(viewportW, viewportH, worldW, worldH, scale float32) *Camera {
	return &Camera{
		X:         worldW / 2,
		Y:         worldH / 2,
		Scale:     scale,
		Zoom:      1.0,
		ViewportW: viewportW,
		ViewportH: viewportH,
		WorldW:    worldW,
		WorldH:    worldH,
		MinZoom:   0.2,
		MaxZoom:   8.0,
	}
}

// PixelsPerMeter returns the effective screen scale.
func (c *Camera) PixelsPerMeter() float32 {
	return c.Scale * c.Zoom
}

// WorldToScreen converts world coordinates to screen coordinates.
func (c *Camera) WorldToScreen(wx, wy float32) (sx, sy float32) {
	s := c.PixelsPerMeter()
	sx = c.ViewportW/2 + (wx-c.X)*s
	sy = c.ViewportH/2 + (wy-c.Y)*s
	return sx, sy
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float32) (wx, wy float32) {
	s := c.PixelsPerMeter()
	wx = c.X + (sx-c.ViewportW/2)/s
	wy = c.Y + (sy-c.ViewportH/2)/s
	return wx, wy
}

// IsVisible returns true if a circle at (wx, wy) with given radius in
// meters could be visible on screen (conservative check for culling).
func (c *Camera) IsVisible(wx, wy, radius float32) bool {
	s := c.PixelsPerMeter()
	halfW := c.ViewportW/(2*s) + radius
	halfH := c.ViewportH/(2*s) + radius
	return absf(wx-c.X) <= halfW && absf(wy-c.Y) <= halfH
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Pan moves the camera by the given delta in screen pixels, keeping the
// center inside the world rectangle.
func (c *Camera) Pan(dx, dy float32) {
	s := c.PixelsPerMeter()
	c.X = clamp(c.X+dx/s, 0, c.WorldW)
	c.Y = clamp(c.Y+dy/s, 0, c.WorldH)
}

// CenterOn moves the camera center to a world position, clamped to the
// world rectangle.
func (c *Camera) CenterOn(wx, wy float32) {
	c.X = clamp(wx, 0, c.WorldW)
	c.Y = clamp(wy, 0, c.WorldH)
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float32) {
	c.SetZoom(c.Zoom * factor)
}

// Reset returns the camera to the default position and zoom.
func (c *Camera) Reset() {
	c.X = c.WorldW / 2
	c.Y = c.WorldH / 2
	c.Zoom = 1.0
}

// absf returns the absolute value of a float32.
func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// clamp restricts a value to a range.
func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
