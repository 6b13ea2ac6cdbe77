package client

import (
	"log"
	"time"

	"collabboard/internal/board"
	"collabboard/internal/protocol"
	"collabboard/internal/roster"
)

// Dispatcher routes decoded server frames to the room state stores.
// All frames for a connection arrive on a single goroutine, so updates
// are applied in arrival order.
type Dispatcher struct {
	Roster  *roster.Roster
	Strokes *board.StrokeLog
	Chat    *ChatLog
}

// NewDispatcher creates a dispatcher with fresh room state.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		Roster:  roster.New(),
		Strokes: board.NewStrokeLog(),
		Chat:    NewChatLog(),
	}
}

// Reset clears all room state. Called when the room selection changes;
// never on disconnect, so the last-known roster stays visible.
func (d *Dispatcher) Reset() {
	d.Roster.Clear()
	d.Strokes.Clear()
	d.Chat.Clear()
}

// Dispatch applies one server frame. Unknown kinds are logged and
// dropped; they never disturb existing state.
func (d *Dispatcher) Dispatch(msg *protocol.Message) {
	switch msg.Kind {
	case protocol.KindRoomJoined:
		if msg.Welcome != "" {
			d.Chat.AppendSystem(msg.Welcome)
		}

	case protocol.KindChatMessage:
		if msg.Chat == nil {
			return
		}
		d.Chat.Append(chatFromPayload(msg.Chat))

	case protocol.KindPresence:
		d.Roster.ReplaceAll(msg.Users)

	case protocol.KindUserJoined:
		if msg.User == nil {
			return
		}
		d.Roster.Upsert(*msg.User)

	case protocol.KindUserLeft:
		if msg.User == nil {
			return
		}
		d.Roster.Remove(msg.User.UserID)

	case protocol.KindStrokeAdded:
		if msg.Stroke == nil {
			return
		}
		d.Strokes.Append(*msg.Stroke)

	case protocol.KindCanvasCleared:
		d.Strokes.Clear()

	case protocol.KindDocumentState:
		d.Strokes.Replace(msg.Strokes)

	default:
		log.Printf("[Dispatch] unhandled message type: %s", msg.Kind)
	}
}

func chatFromPayload(p *protocol.ChatPayload) ChatMessage {
	msg := ChatMessage{
		Kind:      ChatKindChat,
		Author:    p.Username,
		Body:      p.Content,
		Timestamp: time.Now(),
	}
	if p.FileURL != "" {
		msg.Attachment = &Attachment{
			URL:      p.FileURL,
			Filename: p.FileName,
			MimeType: p.FileType,
		}
	}
	return msg
}
