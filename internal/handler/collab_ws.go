package handler

import (
	"log"

	"github.com/gofiber/contrib/websocket"
)

// CollabWSHandler serves the room collaboration channel: one socket per
// participant carrying chat, canvas and presence frames.
type CollabWSHandler struct {
	hub *Hub
}

// NewCollabWSHandler creates a CollabWSHandler.
func NewCollabWSHandler(hub *Hub) *CollabWSHandler {
	return &CollabWSHandler{hub: hub}
}

// HandleWebSocket runs the read loop for one connection. Room and
// participant identity were resolved by the upgrade middleware.
func (h *CollabWSHandler) HandleWebSocket(c *websocket.Conn) {
	roomID, ok1 := c.Locals("roomId").(string)
	userID, ok2 := c.Locals("userId").(string)
	username, ok3 := c.Locals("username").(string)

	if !ok1 || !ok2 || !ok3 || roomID == "" || userID == "" {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","message":"invalid session"}`))
		c.Close()
		return
	}
	if username == "" {
		username = userID
	}

	h.hub.Join(c, roomID, userID, username)

	defer func() {
		h.hub.Leave(c, roomID)
		c.Close()
	}()

	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			log.Printf("[CollabWS] Read ended for %s in room %s: %v", userID, roomID, err)
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.hub.HandleFrame(c, roomID, data)
	}
}
