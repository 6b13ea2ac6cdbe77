package protocol

// Server-emitted frames. The client decodes these through Decode; the hub
// builds them directly so both sides agree on one schema.

// RoomJoinedOut carries the welcome text shown as a system chat line.
type RoomJoinedOut struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewRoomJoined builds a room_joined frame.
func NewRoomJoined(welcome string) RoomJoinedOut {
	return RoomJoinedOut{Type: KindRoomJoined, Message: welcome}
}

// ChatBroadcast is the echoed chat_message frame. The payload is nested
// under "message"; older producers put the same fields at the top level,
// which Decode still accepts.
type ChatBroadcast struct {
	Type    string      `json:"type"`
	Message ChatPayload `json:"message"`
}

// NewChatBroadcast builds the echoed chat frame for a room.
func NewChatBroadcast(payload ChatPayload) ChatBroadcast {
	return ChatBroadcast{Type: KindChatMessage, Message: payload}
}

// PresenceOut is the full-roster snapshot frame.
type PresenceOut struct {
	Type  string        `json:"type"`
	Users []Participant `json:"users"`
}

// NewPresence builds a presence frame replacing the whole roster.
func NewPresence(users []Participant) PresenceOut {
	return PresenceOut{Type: KindPresence, Users: users}
}

// UserJoinedOut announces a single participant joining.
type UserJoinedOut struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// NewUserJoined builds a user_joined frame.
func NewUserJoined(userID, username string) UserJoinedOut {
	return UserJoinedOut{Type: KindUserJoined, UserID: userID, Username: username}
}

// UserLeftOut announces a single participant leaving.
type UserLeftOut struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// NewUserLeft builds a user_left frame.
func NewUserLeft(userID string) UserLeftOut {
	return UserLeftOut{Type: KindUserLeft, UserID: userID}
}

// DocumentStateOut is the reply to request_state: the room's stroke log.
type DocumentStateOut struct {
	Type  string        `json:"type"`
	State DocumentState `json:"state"`
}

// DocumentState wraps the stroke list.
type DocumentState struct {
	Strokes []Stroke `json:"strokes"`
}

// NewDocumentState builds a document_state frame.
func NewDocumentState(strokes []Stroke) DocumentStateOut {
	return DocumentStateOut{Type: KindDocumentState, State: DocumentState{Strokes: strokes}}
}
