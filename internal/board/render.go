package board

import (
	"collabboard/internal/protocol"
)

// Composite modes for a path command. Erase strokes cut pixels out of the
// canvas instead of painting over them, which is what keeps the log
// append-only while an eraser still removes earlier marks.
const (
	CompositeSourceOver     = "source-over"
	CompositeDestinationOut = "destination-out"
)

// Op is one draw command. The renderer emits commands instead of pixels
// so reconstruction is a pure function of its inputs.
type Op struct {
	Kind      OpKind
	Points    []protocol.Point
	Color     string
	Width     int
	Composite string
}

// OpKind discriminates draw commands.
type OpKind string

const (
	OpClear      OpKind = "clear"      // wipe the whole surface
	OpBackground OpKind = "background" // fill white
	OpPath       OpKind = "path"       // stroke a polyline
	OpDot        OpKind = "dot"        // single-point stroke
)

// Render reconstructs the full drawing from scratch: clear, background,
// then every log stroke in insertion order, then the in-progress local
// stroke. It must be called on every mutation of either input.
func Render(strokes []protocol.Stroke, inProgress []protocol.Point, tool Tool) []Op {
	ops := []Op{
		{Kind: OpClear},
		{Kind: OpBackground, Color: "#ffffff"},
	}

	for _, s := range strokes {
		if op, ok := strokeOp(s.Points, s.Color, s.BrushSize); ok {
			ops = append(ops, op)
		}
	}

	if len(inProgress) > 0 {
		color := tool.color()
		if op, ok := strokeOp(inProgress, color, tool.Size); ok {
			ops = append(ops, op)
		}
	}

	return ops
}

// strokeOp builds the command for one stroke. A single point renders as a
// dot; an empty point list is dropped.
func strokeOp(points []protocol.Point, color string, width int) (Op, bool) {
	if len(points) == 0 {
		return Op{}, false
	}

	composite := CompositeSourceOver
	if color == protocol.EraseColor {
		composite = CompositeDestinationOut
	}

	kind := OpPath
	if len(points) < 2 {
		kind = OpDot
	}

	pts := make([]protocol.Point, len(points))
	copy(pts, points)

	return Op{
		Kind:      kind,
		Points:    pts,
		Color:     color,
		Width:     width,
		Composite: composite,
	}, true
}
