package board

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"collabboard/internal/protocol"
)

// ToolType selects pen or eraser behavior for local capture.
type ToolType string

const (
	ToolPen    ToolType = "pen"
	ToolEraser ToolType = "eraser"
)

// Tool is the active drawing style.
type Tool struct {
	Type  ToolType
	Color string
	Size  int
}

// Color resolves the wire color for the tool: the eraser draws with the
// erase sentinel.
func (t Tool) color() string {
	if t.Type == ToolEraser {
		return protocol.EraseColor
	}
	return t.Color
}

// Viewport maps screen-space pointer coordinates into canvas-pixel space
// using the displayed-vs-intrinsic size ratio.
type Viewport struct {
	CanvasWidth   float64 // intrinsic pixels
	CanvasHeight  float64
	DisplayWidth  float64 // on-screen size
	DisplayHeight float64
	OffsetX       float64 // canvas origin in screen space
	OffsetY       float64
}

// ToCanvas transforms one screen-space point.
func (v Viewport) ToCanvas(screenX, screenY float64) protocol.Point {
	scaleX, scaleY := 1.0, 1.0
	if v.DisplayWidth > 0 {
		scaleX = v.CanvasWidth / v.DisplayWidth
	}
	if v.DisplayHeight > 0 {
		scaleY = v.CanvasHeight / v.DisplayHeight
	}
	return protocol.Point{
		X: (screenX - v.OffsetX) * scaleX,
		Y: (screenY - v.OffsetY) * scaleY,
	}
}

// Capture collects the in-progress local stroke between pointer-down and
// pointer-up. It is single-owner state driven by UI events, so it carries
// no lock.
type Capture struct {
	viewport Viewport
	drawing  bool
	points   []protocol.Point
}

// NewCapture creates a capture bound to a viewport.
func NewCapture(viewport Viewport) *Capture {
	return &Capture{viewport: viewport}
}

// SetViewport updates the coordinate mapping, e.g. after a resize.
func (c *Capture) SetViewport(v Viewport) {
	c.viewport = v
}

// PointerDown starts a new in-progress point sequence.
func (c *Capture) PointerDown(screenX, screenY float64) {
	c.drawing = true
	c.points = []protocol.Point{c.viewport.ToCanvas(screenX, screenY)}
}

// PointerMove appends a point while drawing; ignored otherwise.
func (c *Capture) PointerMove(screenX, screenY float64) {
	if !c.drawing {
		return
	}
	c.points = append(c.points, c.viewport.ToCanvas(screenX, screenY))
}

// PointerUp finalizes the capture. If any points were collected it
// returns the finished stroke and true; the in-progress sequence is
// cleared either way.
func (c *Capture) PointerUp(tool Tool, userID, username string) (protocol.Stroke, bool) {
	if !c.drawing {
		return protocol.Stroke{}, false
	}
	c.drawing = false

	points := c.points
	c.points = nil
	if len(points) == 0 {
		return protocol.Stroke{}, false
	}

	return protocol.Stroke{
		ID:        newStrokeID(),
		Points:    points,
		Color:     tool.color(),
		BrushSize: tool.Size,
		UserID:    userID,
		Username:  username,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, true
}

// InProgress returns the points captured so far, for live rendering.
func (c *Capture) InProgress() []protocol.Point {
	out := make([]protocol.Point, len(c.points))
	copy(out, c.points)
	return out
}

// Drawing reports whether a pointer-drag is active.
func (c *Capture) Drawing() bool {
	return c.drawing
}

// newStrokeID builds a globally unique stroke id: millisecond timestamp
// plus a random suffix, generated client-side.
func newStrokeID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		// timestamp alone still identifies the stroke well enough locally
		return fmt.Sprintf("%d", time.Now().UnixMilli())
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
