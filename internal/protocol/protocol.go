// Package protocol defines the JSON wire schema shared by the collab
// client and server: one tagged-union frame per message, multiplexed over
// a single WebSocket per room and participant.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message kinds carried in the "type" tag.
const (
	KindRoomJoined    = "room_joined"
	KindChatMessage   = "chat_message"
	KindWhiteboard    = "whiteboard_action"
	KindPresence      = "presence"
	KindUserJoined    = "user_joined"
	KindUserLeft      = "user_left"
	KindStrokeAdded   = "stroke_added"
	KindCanvasCleared = "canvas_cleared"
	KindRequestState  = "request_state"
	KindDocumentState = "document_state"
)

// EraseColor is the sentinel stroke color rendered as a destination-out
// cut-out instead of opaque paint.
const EraseColor = "#ffffff"

// Point is a single canvas-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous pointer-drag drawing operation.
type Stroke struct {
	ID        string  `json:"id"`
	Points    []Point `json:"points"`
	Color     string  `json:"color"`
	BrushSize int     `json:"brush_size"`
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	Timestamp string  `json:"timestamp"`
}

// Participant is one roster entry.
type Participant struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	IsOnline  bool   `json:"is_online"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ChatPayload is the resolved chat message content. The wire carries the
// same logical fields either nested under "message" or at the top level;
// Decode resolves that fallback once so consumers never see both shapes.
type ChatPayload struct {
	Username string `json:"username"`
	Content  string `json:"content"`
	FileURL  string `json:"file_url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileType string `json:"file_type,omitempty"`
}

// User identifies the author of a canvas_cleared event.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is a decoded inbound frame. Kind is always set; exactly the
// fields relevant to that kind are populated. An unrecognized "type" tag
// yields a Message whose Kind is the raw tag with no payload fields set.
type Message struct {
	Kind      string
	Welcome   string        // room_joined
	Chat      *ChatPayload  // chat_message
	Users     []Participant // presence
	User      *Participant  // user_joined, user_left
	Stroke    *Stroke       // stroke_added, whiteboard_action add
	Strokes   []Stroke      // document_state
	ClearedBy *User         // canvas_cleared (optional)
}

// envelope captures every field any inbound kind can carry. Payloads are
// flat JSON objects; "message" is a string for room_joined and an object
// for chat_message, so it stays raw until the kind is known.
type envelope struct {
	Type     string          `json:"type"`
	Message  json.RawMessage `json:"message,omitempty"`
	Username string          `json:"username,omitempty"`
	Content  string          `json:"content,omitempty"`
	FileURL  string          `json:"file_url,omitempty"`
	FileName string          `json:"file_name,omitempty"`
	FileType string          `json:"file_type,omitempty"`
	Users    []Participant   `json:"users,omitempty"`
	UserID   string          `json:"user_id,omitempty"`
	Action   string          `json:"action,omitempty"`
	Stroke   *Stroke         `json:"stroke,omitempty"`
	User     *User           `json:"user,omitempty"`
	State    *DocumentState  `json:"state,omitempty"`
}

// Decode parses one inbound frame. It returns an error only for frames
// that are not valid JSON objects; an unknown "type" tag is not an error
// (the dispatcher logs and ignores it).
func Decode(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	msg := &Message{Kind: env.Type}

	switch env.Type {
	case KindRoomJoined:
		// message is the server-supplied welcome text
		var welcome string
		if len(env.Message) > 0 {
			if err := json.Unmarshal(env.Message, &welcome); err != nil {
				return nil, fmt.Errorf("malformed room_joined message: %w", err)
			}
		}
		msg.Welcome = welcome

	case KindChatMessage:
		msg.Chat = resolveChat(&env)

	case KindPresence:
		msg.Users = env.Users

	case KindUserJoined:
		msg.User = &Participant{
			UserID:   env.UserID,
			Username: env.Username,
			IsOnline: true,
		}

	case KindUserLeft:
		msg.User = &Participant{UserID: env.UserID}

	case KindStrokeAdded:
		msg.Stroke = env.Stroke

	case KindCanvasCleared:
		msg.ClearedBy = env.User

	case KindDocumentState:
		if env.State != nil {
			msg.Strokes = env.State.Strokes
		}

	case KindWhiteboard:
		// Legacy drawing-channel envelope: the board action rides in
		// "action" with its stroke alongside.
		switch env.Action {
		case KindStrokeAdded:
			msg.Kind = KindStrokeAdded
			msg.Stroke = env.Stroke
		case KindCanvasCleared:
			msg.Kind = KindCanvasCleared
			msg.ClearedBy = env.User
		}
	}

	return msg, nil
}

// resolveChat applies the nested-over-flat field fallback exactly once:
// message.username wins over top-level username, and likewise for the
// content and file fields.
func resolveChat(env *envelope) *ChatPayload {
	var nested ChatPayload
	if len(env.Message) > 0 {
		// a non-object "message" is tolerated; fall back to flat fields
		_ = json.Unmarshal(env.Message, &nested)
	}

	chat := &ChatPayload{
		Username: nested.Username,
		Content:  nested.Content,
		FileURL:  nested.FileURL,
		FileName: nested.FileName,
		FileType: nested.FileType,
	}
	if chat.Username == "" {
		chat.Username = env.Username
	}
	if chat.Content == "" {
		chat.Content = env.Content
	}
	if chat.FileURL == "" {
		chat.FileURL = env.FileURL
	}
	if chat.FileName == "" {
		chat.FileName = env.FileName
	}
	if chat.FileType == "" {
		chat.FileType = env.FileType
	}
	return chat
}

// ---------------------------------------------------------------------------
// Outbound frames
// ---------------------------------------------------------------------------

// ChatOut is an outbound chat_message frame.
type ChatOut struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	FileURL     string `json:"file_url,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileType    string `json:"file_type,omitempty"`
	Username    string `json:"username,omitempty"`
}

// NewChatText builds a plain text chat frame.
func NewChatText(content string) ChatOut {
	return ChatOut{Type: KindChatMessage, Content: content, MessageType: "text"}
}

// NewChatFile builds a chat frame carrying a file attachment reference.
func NewChatFile(content, fileURL, fileName, fileType, username string) ChatOut {
	return ChatOut{
		Type:        KindChatMessage,
		Content:     content,
		MessageType: "file",
		FileURL:     fileURL,
		FileName:    fileName,
		FileType:    fileType,
		Username:    username,
	}
}

// StrokeAddedOut is an outbound stroke_added frame.
type StrokeAddedOut struct {
	Type   string `json:"type"`
	Stroke Stroke `json:"stroke"`
}

// NewStrokeAdded builds a stroke broadcast frame.
func NewStrokeAdded(s Stroke) StrokeAddedOut {
	return StrokeAddedOut{Type: KindStrokeAdded, Stroke: s}
}

// CanvasClearedOut is an outbound canvas_cleared frame.
type CanvasClearedOut struct {
	Type string `json:"type"`
	User User   `json:"user"`
}

// NewCanvasCleared builds a clear broadcast frame.
func NewCanvasCleared(userID, username string) CanvasClearedOut {
	return CanvasClearedOut{Type: KindCanvasCleared, User: User{ID: userID, Name: username}}
}

// RequestStateOut asks the server for the current document state.
type RequestStateOut struct {
	Type string `json:"type"`
}

// NewRequestState builds a request_state frame.
func NewRequestState() RequestStateOut {
	return RequestStateOut{Type: KindRequestState}
}

// Encode serializes an outbound frame.
func Encode(frame any) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}
