package handler

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"collabboard/internal/model"
	"collabboard/internal/storage"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

// FileHandler serves upload and signed URL endpoints backed by a
// storage.Store.
type FileHandler struct {
	db            *gorm.DB
	store         storage.Store
	presignExpiry time.Duration
	previewExpiry time.Duration
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(db *gorm.DB, store storage.Store, presignExpiry, previewExpiry time.Duration) *FileHandler {
	if presignExpiry <= 0 {
		presignExpiry = 24 * time.Hour
	}
	if previewExpiry <= 0 {
		previewExpiry = time.Hour
	}
	return &FileHandler{
		db:            db,
		store:         store,
		presignExpiry: presignExpiry,
		previewExpiry: previewExpiry,
	}
}

// Upload accepts a multipart form with "file", "user_id" and "room_id"
// fields, stores the content and returns the file's metadata with a
// signed download URL.
func (h *FileHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}
	if fileHeader.Size > maxUploadSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "file exceeds the 50MB limit",
		})
	}

	userID := c.FormValue("user_id")
	roomID := c.FormValue("room_id")
	if userID == "" || roomID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and room_id are required",
		})
	}

	var room model.Room
	if err := h.db.First(&room, "id = ?", roomID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "room not found",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to read uploaded file",
		})
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileID := uuid.New().String()
	storageKey := fmt.Sprintf("%s/%s%s", roomID, fileID, filepath.Ext(fileHeader.Filename))

	ctx, cancel := context.WithTimeout(c.Context(), 60*time.Second)
	defer cancel()

	if err := h.store.Put(ctx, storageKey, fileHeader.Filename, contentType, fileHeader.Size, src); err != nil {
		log.Printf("[Files] store %s failed: %v", storageKey, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to store file",
		})
	}

	record := model.FileRecord{
		ID:          fileID,
		RoomID:      roomID,
		UploaderID:  userID,
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Size:        fileHeader.Size,
		StorageKey:  storageKey,
	}
	if err := h.db.Create(&record).Error; err != nil {
		log.Printf("[Files] record %s failed: %v", fileID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to save file record",
		})
	}

	downloadURL, err := h.store.SignedGetURL(ctx, storageKey, h.presignExpiry)
	if err != nil {
		log.Printf("[Files] presign %s failed: %v", storageKey, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to sign download URL",
		})
	}

	log.Printf("[Files] %s uploaded %s to room %s (%d bytes)", userID, fileHeader.Filename, roomID, fileHeader.Size)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"file_id":      record.ID,
		"download_url": downloadURL,
		"filename":     record.Filename,
		"content_type": record.ContentType,
		"size":         record.Size,
	})
}

// Download returns a fresh signed download URL for a stored file.
func (h *FileHandler) Download(c *fiber.Ctx) error {
	record, ok := h.findFile(c.Params("fileId"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "file not found",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	url, err := h.store.SignedGetURL(ctx, record.StorageKey, h.presignExpiry)
	if err != nil {
		log.Printf("[Files] presign %s failed: %v", record.StorageKey, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to sign download URL",
		})
	}

	return c.JSON(fiber.Map{
		"download_url":     url,
		"filename":         record.Filename,
		"content_type":     record.ContentType,
		"expires_in_hours": int(h.presignExpiry.Hours()),
	})
}

// Preview returns a short-lived signed URL suitable for inline display.
func (h *FileHandler) Preview(c *fiber.Ctx) error {
	record, ok := h.findFile(c.Params("fileId"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "file not found",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	url, err := h.store.SignedGetURL(ctx, record.StorageKey, h.previewExpiry)
	if err != nil {
		log.Printf("[Files] presign %s failed: %v", record.StorageKey, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to sign preview URL",
		})
	}

	return c.JSON(fiber.Map{
		"preview_url":        url,
		"filename":           record.Filename,
		"content_type":       record.ContentType,
		"expires_in_minutes": int(h.previewExpiry.Minutes()),
	})
}

// Delete removes a file from storage and the database. Only the
// uploader may delete.
func (h *FileHandler) Delete(c *fiber.Ctx) error {
	record, ok := h.findFile(c.Params("fileId"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "file not found",
		})
	}

	userID := c.Query("user_id")
	if userID == "" || userID != record.UploaderID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "only the uploader can delete this file",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	if err := h.store.Delete(ctx, record.StorageKey); err != nil {
		log.Printf("[Files] delete %s failed: %v", record.StorageKey, err)
	}
	if err := h.db.Delete(record).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete file record",
		})
	}

	return c.JSON(fiber.Map{
		"message": "file deleted",
	})
}

// findFile looks up a file record; the caller owns the 404 response.
func (h *FileHandler) findFile(fileID string) (*model.FileRecord, bool) {
	var record model.FileRecord
	if err := h.db.First(&record, "id = ?", fileID).Error; err != nil {
		return nil, false
	}
	return &record, true
}
