package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"collabboard/internal/cache"
	"collabboard/internal/model"
	"collabboard/internal/presence"
	"collabboard/internal/protocol"
)

// RoomHandler serves the room directory endpoints.
type RoomHandler struct {
	db      *gorm.DB
	hub     *Hub
	mirror  *presence.Mirror   // nil when redis is not configured
	history *cache.RedisClient // nil when redis is not configured
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(db *gorm.DB, hub *Hub, mirror *presence.Mirror, history *cache.RedisClient) *RoomHandler {
	return &RoomHandler{db: db, hub: hub, mirror: mirror, history: history}
}

// RoomResponse is one directory entry.
type RoomResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// CreateRoomRequest is the room creation body.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// ListRooms returns all rooms, newest first.
func (h *RoomHandler) ListRooms(c *fiber.Ctx) error {
	var rooms []model.Room
	if err := h.db.Order("created_at DESC").Find(&rooms).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list rooms",
		})
	}

	responses := make([]RoomResponse, len(rooms))
	for i, r := range rooms {
		responses[i] = toRoomResponse(&r)
	}

	return c.JSON(fiber.Map{
		"rooms": responses,
		"total": len(responses),
	})
}

// CreateRoom registers a new room.
func (h *RoomHandler) CreateRoom(c *fiber.Ctx) error {
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}
	if len(req.Name) > 100 {
		req.Name = req.Name[:100]
	}

	room := model.Room{
		ID:   uuid.New().String(),
		Name: req.Name,
	}
	if err := h.db.Create(&room).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create room",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(toRoomResponse(&room))
}

// GetRoom returns one room.
func (h *RoomHandler) GetRoom(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	var room model.Room
	if err := h.db.First(&room, "id = ?", roomID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "room not found",
		})
	}

	return c.JSON(toRoomResponse(&room))
}

// DeleteRoom removes a room and its persisted strokes and chat.
func (h *RoomHandler) DeleteRoom(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	var room model.Room
	if err := h.db.First(&room, "id = ?", roomID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "room not found",
		})
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&model.StrokeRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&model.ChatRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&model.FileRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&room).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete room",
		})
	}

	if h.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.history.ClearRoom(ctx, roomID)
	}

	return c.JSON(fiber.Map{
		"message": "room deleted",
	})
}

// GetMessages returns recent chat lines, served from the Redis history
// cache when available and falling back to the database.
func (h *RoomHandler) GetMessages(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	limit := c.QueryInt("limit", 50)

	if h.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		lines, err := h.history.RecentChat(ctx, roomID, limit)
		if err == nil && len(lines) > 0 {
			return c.JSON(fiber.Map{
				"messages": lines,
				"total":    len(lines),
				"source":   "cache",
			})
		}
	}

	var records []model.ChatRecord
	err := h.db.
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load messages",
		})
	}

	// DB query is newest-first; the wire order is oldest-first.
	lines := make([]cache.ChatLine, len(records))
	for i, rec := range records {
		line := cache.ChatLine{
			Username:  rec.Username,
			Content:   rec.Content,
			Type:      rec.Type,
			Timestamp: rec.CreatedAt.Unix(),
		}
		if rec.FileURL != nil {
			line.FileURL = *rec.FileURL
		}
		if rec.FileName != nil {
			line.FileName = *rec.FileName
		}
		lines[len(records)-1-i] = line
	}

	return c.JSON(fiber.Map{
		"messages": lines,
		"total":    len(lines),
		"source":   "db",
	})
}

// GetPresence returns who is online in a room. The Redis mirror answers
// across instances when configured; otherwise the local hub roster does.
func (h *RoomHandler) GetPresence(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	if h.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		entries, err := h.mirror.Online(ctx, roomID)
		if err == nil {
			return c.JSON(fiber.Map{
				"users": entries,
				"total": len(entries),
			})
		}
	}

	users := h.hub.RoomRoster(roomID)
	if users == nil {
		users = []protocol.Participant{}
	}
	return c.JSON(fiber.Map{
		"users": users,
		"total": len(users),
	})
}

func toRoomResponse(r *model.Room) RoomResponse {
	return RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}
