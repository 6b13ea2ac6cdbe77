// Package board holds the drawing surface model: an ordered append-only
// stroke log, local pointer capture, and the pure render reconstruction
// that turns both into draw commands.
package board

import (
	"sync"

	"collabboard/internal/protocol"
)

// StrokeLog is the ordered record of drawing operations for one room.
// Append-only from any single client's perspective; a clear truncates it
// to empty. Replaying the log in insertion order against a blank canvas
// reproduces the exact visible drawing state.
type StrokeLog struct {
	mu      sync.RWMutex
	strokes []protocol.Stroke
}

// NewStrokeLog creates an empty log.
func NewStrokeLog() *StrokeLog {
	return &StrokeLog{}
}

// Append adds a stroke to the end of the log.
func (l *StrokeLog) Append(s protocol.Stroke) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.strokes = append(l.strokes, s)
}

// Clear truncates the log to empty.
func (l *StrokeLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.strokes = nil
}

// Replace swaps the whole log for a document snapshot received from the
// server. Used on document_state and on room change, never for merging.
func (l *StrokeLog) Replace(strokes []protocol.Stroke) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.strokes = make([]protocol.Stroke, len(strokes))
	copy(l.strokes, strokes)
}

// Strokes returns a copy of the log in insertion order.
func (l *StrokeLog) Strokes() []protocol.Stroke {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]protocol.Stroke, len(l.strokes))
	copy(out, l.strokes)
	return out
}

// Len returns the number of strokes in the log.
func (l *StrokeLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.strokes)
}
