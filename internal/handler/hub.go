package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"gorm.io/gorm"

	"collabboard/internal/board"
	"collabboard/internal/cache"
	"collabboard/internal/model"
	"collabboard/internal/presence"
	"collabboard/internal/protocol"
	"collabboard/internal/roster"
)

// wsConn is the subset of *websocket.Conn the hub writes through. Tests
// substitute a recorder.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Hub manages every live room and routes frames between participants.
type Hub struct {
	db           *gorm.DB
	mirror       *presence.Mirror   // nil when redis is not configured
	history      *cache.RedisClient // nil when redis is not configured
	writeTimeout time.Duration
	rooms        map[string]*room
	mu           sync.RWMutex
}

// room is one live collaboration space. Roster and stroke log use the
// same state types the client keeps, so both ends replay identically.
type room struct {
	id      string
	clients map[wsConn]*client
	roster  *roster.Roster
	strokes *board.StrokeLog
	mu      sync.RWMutex
}

// client is one websocket connection in a room.
type client struct {
	userID       string
	username     string
	conn         wsConn
	writeTimeout time.Duration
	writeMu      sync.Mutex
}

// NewHub creates a Hub. mirror and history may be nil.
func NewHub(db *gorm.DB, mirror *presence.Mirror, history *cache.RedisClient) *Hub {
	return &Hub{
		db:      db,
		mirror:  mirror,
		history: history,
		rooms:   make(map[string]*room),
	}
}

// SetWriteTimeout bounds each outbound frame write. A slow or stalled
// connection then fails its own write instead of blocking a broadcast.
func (h *Hub) SetWriteTimeout(d time.Duration) {
	h.writeTimeout = d
}

// getOrCreateRoom returns the live room, restoring its stroke log from
// the database the first time it is opened.
func (h *Hub) getOrCreateRoom(roomID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[roomID]; ok {
		return r
	}

	r := &room{
		id:      roomID,
		clients: make(map[wsConn]*client),
		roster:  roster.New(),
		strokes: board.NewStrokeLog(),
	}
	r.strokes.Replace(h.loadStrokes(roomID))
	h.rooms[roomID] = r
	log.Printf("[Hub] Opened room: %s (%d strokes restored)", roomID, r.strokes.Len())

	return r
}

// loadStrokes reads the persisted stroke log for a room.
func (h *Hub) loadStrokes(roomID string) []protocol.Stroke {
	if h.db == nil {
		return nil
	}

	var records []model.StrokeRecord
	err := h.db.
		Where("room_id = ? AND is_deleted = ?", roomID, false).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		log.Printf("[Hub] Failed to load strokes for room %s: %v", roomID, err)
		return nil
	}

	strokes := make([]protocol.Stroke, 0, len(records))
	for _, rec := range records {
		var s protocol.Stroke
		if err := json.Unmarshal([]byte(rec.StrokeData), &s); err != nil {
			log.Printf("[Hub] Skipping corrupt stroke %s in room %s: %v", rec.StrokeID, roomID, err)
			continue
		}
		strokes = append(strokes, s)
	}
	return strokes
}

// Join registers a connection, welcomes it and announces it to the
// room.
func (h *Hub) Join(conn wsConn, roomID, userID, username string) *client {
	r := h.getOrCreateRoom(roomID)

	c := &client{userID: userID, username: username, conn: conn, writeTimeout: h.writeTimeout}

	r.mu.Lock()
	r.clients[conn] = c
	r.mu.Unlock()

	r.roster.Upsert(protocol.Participant{
		UserID:   userID,
		Username: username,
		IsOnline: true,
	})

	c.send(protocol.NewRoomJoined(fmt.Sprintf("Welcome to %s, %s!", roomID, username)))
	r.broadcast(protocol.NewUserJoined(userID, username), c)
	r.broadcastAll(protocol.NewPresence(r.roster.List()))

	if h.mirror != nil {
		h.mirror.SetOnline(context.Background(), roomID, userID, username)
	}

	log.Printf("[Hub] %s joined room %s (%d online)", userID, roomID, r.roster.Len())
	return c
}

// Leave removes a connection. When it was the participant's last one,
// the departure is announced and the roster updated.
func (h *Hub) Leave(conn wsConn, roomID string) {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	c, ok := r.clients[conn]
	if ok {
		delete(r.clients, conn)
	}
	stillHere := false
	if c != nil {
		for _, other := range r.clients {
			if other.userID == c.userID {
				stillHere = true
				break
			}
		}
	}
	empty := len(r.clients) == 0
	r.mu.Unlock()

	if !ok {
		return
	}

	if !stillHere {
		r.roster.Remove(c.userID)
		r.broadcast(protocol.NewUserLeft(c.userID), nil)
		r.broadcastAll(protocol.NewPresence(r.roster.List()))

		if h.mirror != nil {
			h.mirror.SetOffline(context.Background(), roomID, c.userID)
		}
	}

	log.Printf("[Hub] %s left room %s", c.userID, roomID)

	if empty {
		h.mu.Lock()
		delete(h.rooms, roomID)
		h.mu.Unlock()
		log.Printf("[Hub] Closed empty room: %s", roomID)
	}
}

// HandleFrame applies one inbound client frame.
func (h *Hub) HandleFrame(conn wsConn, roomID string, data []byte) {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.RLock()
	c, ok := r.clients[conn]
	r.mu.RUnlock()
	if !ok {
		return
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		log.Printf("[Hub] Bad frame from %s in room %s: %v", c.userID, roomID, err)
		return
	}

	// Any traffic counts as a liveness signal for the mirror.
	if h.mirror != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := h.mirror.Heartbeat(ctx, roomID, c.userID); err != nil {
				h.mirror.SetOnline(ctx, roomID, c.userID, c.username)
			}
		}()
	}

	switch msg.Kind {
	case protocol.KindChatMessage:
		h.handleChat(r, c, msg.Chat)
	case protocol.KindStrokeAdded:
		h.handleStroke(r, c, msg.Stroke)
	case protocol.KindCanvasCleared:
		h.handleClear(r, c)
	case protocol.KindRequestState:
		c.send(protocol.NewDocumentState(r.strokes.Strokes()))
	default:
		log.Printf("[Hub] Unhandled frame type %q from %s", msg.Kind, c.userID)
	}
}

func (h *Hub) handleChat(r *room, c *client, chat *protocol.ChatPayload) {
	if chat == nil || chat.Content == "" {
		return
	}
	if len(chat.Content) > 2000 {
		chat.Content = chat.Content[:2000]
	}
	if chat.Username == "" {
		chat.Username = c.username
	}

	if h.db != nil {
		rec := model.ChatRecord{
			RoomID:   r.id,
			Username: chat.Username,
			Content:  chat.Content,
			Type:     "TEXT",
		}
		if chat.FileURL != "" {
			rec.Type = "FILE"
			rec.FileURL = &chat.FileURL
			rec.FileName = &chat.FileName
			rec.FileType = &chat.FileType
		}
		if err := h.db.Create(&rec).Error; err != nil {
			log.Printf("[Hub] Failed to persist chat in room %s: %v", r.id, err)
		}
	}

	if h.history != nil {
		line := cache.ChatLine{
			Username: chat.Username,
			Content:  chat.Content,
			Type:     "TEXT",
			FileURL:  chat.FileURL,
			FileName: chat.FileName,
		}
		if chat.FileURL != "" {
			line.Type = "FILE"
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := h.history.AddChatLine(ctx, r.id, &line); err != nil {
				log.Printf("[Hub] Failed to cache chat in room %s: %v", r.id, err)
			}
		}()
	}

	r.broadcastAll(protocol.NewChatBroadcast(*chat))
}

func (h *Hub) handleStroke(r *room, c *client, stroke *protocol.Stroke) {
	if stroke == nil || stroke.ID == "" {
		return
	}
	if stroke.UserID == "" {
		stroke.UserID = c.userID
	}
	if stroke.Username == "" {
		stroke.Username = c.username
	}

	r.strokes.Append(*stroke)

	if h.db != nil {
		data, err := json.Marshal(stroke)
		if err == nil {
			rec := model.StrokeRecord{
				RoomID:     r.id,
				StrokeID:   stroke.ID,
				UserID:     stroke.UserID,
				StrokeData: string(data),
			}
			if err := h.db.Create(&rec).Error; err != nil {
				log.Printf("[Hub] Failed to persist stroke in room %s: %v", r.id, err)
			}
		}
	}

	// The author already drew it locally.
	r.broadcast(protocol.NewStrokeAdded(*stroke), c)
}

func (h *Hub) handleClear(r *room, c *client) {
	r.strokes.Clear()

	if h.db != nil {
		now := time.Now()
		err := h.db.Model(&model.StrokeRecord{}).
			Where("room_id = ? AND is_deleted = ?", r.id, false).
			Updates(map[string]any{"is_deleted": true, "deleted_at": now}).Error
		if err != nil {
			log.Printf("[Hub] Failed to mark strokes deleted in room %s: %v", r.id, err)
		}
	}

	r.broadcast(protocol.NewCanvasCleared(c.userID, c.username), c)
}

// RoomRoster exposes a room's live roster, empty when the room is not
// open.
func (h *Hub) RoomRoster(roomID string) []protocol.Participant {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.roster.List()
}

// RoomStrokes exposes a room's live stroke log, empty when the room is
// not open.
func (h *Hub) RoomStrokes(roomID string) []protocol.Stroke {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.strokes.Strokes()
}

// broadcast sends a frame to every client except skip.
func (r *room) broadcast(frame any, skip *client) {
	data, err := protocol.Encode(frame)
	if err != nil {
		log.Printf("[Room %s] Failed to encode frame: %v", r.id, err)
		return
	}

	r.mu.RLock()
	clients := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		if c != skip {
			clients = append(clients, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range clients {
		c.write(data)
	}
}

// broadcastAll sends a frame to every client in the room.
func (r *room) broadcastAll(frame any) {
	r.broadcast(frame, nil)
}

func (c *client) send(frame any) {
	data, err := protocol.Encode(frame)
	if err != nil {
		log.Printf("[Hub] Failed to encode frame for %s: %v", c.userID, err)
		return
	}
	c.write(data)
}

func (c *client) write(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[Hub] Failed to send to %s: %v", c.userID, err)
	}
}
