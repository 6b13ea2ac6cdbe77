// Package cache keeps a capped recent-chat history per room in Redis so
// the history endpoint answers without touching the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	historyLimit = 200
	historyTTL   = 24 * time.Hour
)

// ChatLine is one cached chat message.
type ChatLine struct {
	Username  string `json:"username"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	FileURL   string `json:"file_url,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// RedisClient wraps the Redis connection used for chat history.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects and verifies the connection.
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisClient{client: rdb}, nil
}

func historyKey(roomID string) string {
	return "chat:room:" + roomID
}

// AddChatLine appends a line to the room history, trimming to the cap.
func (c *RedisClient) AddChatLine(ctx context.Context, roomID string, line *ChatLine) error {
	if line.Timestamp == 0 {
		line.Timestamp = time.Now().Unix()
	}

	data, err := json.Marshal(line)
	if err != nil {
		return err
	}

	key := historyKey(roomID)
	pipe := c.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -historyLimit, -1)
	pipe.Expire(ctx, key, historyTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentChat returns up to limit lines, oldest first.
func (c *RedisClient) RecentChat(ctx context.Context, roomID string, limit int) ([]ChatLine, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}

	vals, err := c.client.LRange(ctx, historyKey(roomID), int64(-limit), -1).Result()
	if err != nil {
		return nil, err
	}

	lines := make([]ChatLine, 0, len(vals))
	for _, v := range vals {
		var line ChatLine
		if err := json.Unmarshal([]byte(v), &line); err == nil {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// ClearRoom drops the cached history for a room.
func (c *RedisClient) ClearRoom(ctx context.Context, roomID string) error {
	return c.client.Del(ctx, historyKey(roomID)).Err()
}

// Close shuts the Redis connection down.
func (c *RedisClient) Close() error {
	return c.client.Close()
}
