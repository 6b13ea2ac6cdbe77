package board

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabboard/internal/protocol"
)

func stroke(id, color string, size int, pts ...protocol.Point) protocol.Stroke {
	return protocol.Stroke{ID: id, Points: pts, Color: color, BrushSize: size}
}

func TestStrokeLogAppendAndClear(t *testing.T) {
	l := NewStrokeLog()
	l.Append(stroke("s1", "#000000", 2, protocol.Point{X: 0, Y: 0}, protocol.Point{X: 10, Y: 10}))
	assert.Equal(t, 1, l.Len())

	// clear event truncates to empty
	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Strokes())
}

func TestStrokeLogReplayIsIdempotent(t *testing.T) {
	// applying the same event sequence to two fresh logs yields an
	// identical ordered stroke list
	events := []protocol.Stroke{
		stroke("a", "#000000", 2, protocol.Point{X: 0, Y: 0}, protocol.Point{X: 1, Y: 1}),
		stroke("b", "#ff0000", 4, protocol.Point{X: 5, Y: 5}, protocol.Point{X: 6, Y: 6}),
		stroke("c", protocol.EraseColor, 8, protocol.Point{X: 2, Y: 2}, protocol.Point{X: 3, Y: 3}),
	}

	first, second := NewStrokeLog(), NewStrokeLog()
	for _, e := range events {
		first.Append(e)
		second.Append(e)
	}
	assert.Equal(t, first.Strokes(), second.Strokes())

	// replaying the recorded log into an empty log reproduces it exactly
	replayed := NewStrokeLog()
	for _, s := range first.Strokes() {
		replayed.Append(s)
	}
	assert.Equal(t, first.Strokes(), replayed.Strokes())
}

func TestStrokeLogReplaceCopies(t *testing.T) {
	l := NewStrokeLog()
	snapshot := []protocol.Stroke{stroke("s1", "#000000", 2, protocol.Point{X: 1, Y: 1})}
	l.Replace(snapshot)

	snapshot[0].ID = "mutated"
	assert.Equal(t, "s1", l.Strokes()[0].ID)
}

func TestViewportTransform(t *testing.T) {
	// intrinsic 800x600 displayed at 400x300 → screen coords double
	v := Viewport{
		CanvasWidth: 800, CanvasHeight: 600,
		DisplayWidth: 400, DisplayHeight: 300,
		OffsetX: 10, OffsetY: 20,
	}
	p := v.ToCanvas(110, 170)
	assert.InDelta(t, 200, p.X, 0.001)
	assert.InDelta(t, 300, p.Y, 0.001)
}

func TestCaptureLifecycle(t *testing.T) {
	c := NewCapture(Viewport{CanvasWidth: 100, CanvasHeight: 100, DisplayWidth: 100, DisplayHeight: 100})

	// moves before pointer-down are ignored
	c.PointerMove(1, 1)
	assert.False(t, c.Drawing())
	assert.Empty(t, c.InProgress())

	c.PointerDown(0, 0)
	c.PointerMove(10, 10)
	c.PointerMove(20, 20)
	assert.True(t, c.Drawing())
	assert.Len(t, c.InProgress(), 3)

	s, ok := c.PointerUp(Tool{Type: ToolPen, Color: "#000000", Size: 2}, "a@x.io", "A")
	require.True(t, ok)
	assert.Len(t, s.Points, 3)
	assert.Equal(t, "#000000", s.Color)
	assert.Equal(t, 2, s.BrushSize)
	assert.Equal(t, "a@x.io", s.UserID)
	assert.NotEmpty(t, s.ID)
	assert.NotEmpty(t, s.Timestamp)

	// capture resets after finalize
	assert.False(t, c.Drawing())
	assert.Empty(t, c.InProgress())

	// pointer-up without a drag yields nothing
	_, ok = c.PointerUp(Tool{Type: ToolPen, Color: "#000000", Size: 2}, "a@x.io", "A")
	assert.False(t, ok)
}

func TestCaptureEraserUsesSentinelColor(t *testing.T) {
	c := NewCapture(Viewport{CanvasWidth: 100, CanvasHeight: 100, DisplayWidth: 100, DisplayHeight: 100})
	c.PointerDown(0, 0)
	c.PointerMove(5, 5)

	s, ok := c.PointerUp(Tool{Type: ToolEraser, Color: "#123456", Size: 8}, "a@x.io", "A")
	require.True(t, ok)
	assert.Equal(t, protocol.EraseColor, s.Color)
}

func TestStrokeIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		c := NewCapture(Viewport{CanvasWidth: 1, CanvasHeight: 1, DisplayWidth: 1, DisplayHeight: 1})
		c.PointerDown(0, 0)
		s, ok := c.PointerUp(Tool{Type: ToolPen, Color: "#000000", Size: 1}, "u", "U")
		require.True(t, ok)
		assert.False(t, seen[s.ID], "duplicate stroke id %s", s.ID)
		seen[s.ID] = true
		assert.True(t, strings.Contains(s.ID, "-"))
	}
}

func TestRenderFromScratch(t *testing.T) {
	strokes := []protocol.Stroke{
		stroke("a", "#000000", 2, protocol.Point{X: 0, Y: 0}, protocol.Point{X: 10, Y: 10}),
		stroke("b", protocol.EraseColor, 8, protocol.Point{X: 1, Y: 1}, protocol.Point{X: 2, Y: 2}),
	}
	ops := Render(strokes, nil, Tool{})

	require.Len(t, ops, 4)
	assert.Equal(t, OpClear, ops[0].Kind)
	assert.Equal(t, OpBackground, ops[1].Kind)

	assert.Equal(t, OpPath, ops[2].Kind)
	assert.Equal(t, CompositeSourceOver, ops[2].Composite)
	assert.Equal(t, "#000000", ops[2].Color)

	// erase strokes composite as a cut-out, preserving log order
	assert.Equal(t, OpPath, ops[3].Kind)
	assert.Equal(t, CompositeDestinationOut, ops[3].Composite)
}

func TestRenderSinglePointIsDot(t *testing.T) {
	ops := Render([]protocol.Stroke{stroke("dot", "#00ff00", 4, protocol.Point{X: 3, Y: 3})}, nil, Tool{})
	require.Len(t, ops, 3)
	assert.Equal(t, OpDot, ops[2].Kind)
}

func TestRenderInProgressStroke(t *testing.T) {
	inProgress := []protocol.Point{{X: 0, Y: 0}, {X: 4, Y: 4}}

	ops := Render(nil, inProgress, Tool{Type: ToolEraser, Size: 6})
	require.Len(t, ops, 3)
	assert.Equal(t, CompositeDestinationOut, ops[2].Composite)
	assert.Equal(t, protocol.EraseColor, ops[2].Color)
	assert.Equal(t, 6, ops[2].Width)
}

func TestRenderIsPure(t *testing.T) {
	strokes := []protocol.Stroke{
		stroke("a", "#000000", 2, protocol.Point{X: 0, Y: 0}, protocol.Point{X: 1, Y: 1}),
	}
	first := Render(strokes, nil, Tool{})
	second := Render(strokes, nil, Tool{})
	assert.Equal(t, first, second)

	// mutating the output must not leak into the inputs
	first[2].Points[0].X = 99
	assert.Equal(t, 0.0, strokes[0].Points[0].X)
}
