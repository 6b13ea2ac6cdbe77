// Package presence mirrors room rosters into Redis so presence survives
// a server restart and can be shared across instances.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entries expire unless refreshed, so a crashed server's participants
// fall offline on their own.
const entryTTL = 60 * time.Second

// Entry is one mirrored participant.
type Entry struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	LastHeartbeat int64  `json:"last_heartbeat"`
}

// Mirror writes per-room presence entries to Redis.
type Mirror struct {
	client *redis.Client
}

// NewMirror connects to Redis and verifies the connection.
func NewMirror(addr, password string, db int) (*Mirror, error) {
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

	return &Mirror{client: rdb}, nil
}

func userKey(roomID, userID string) string {
	return fmt.Sprintf("presence:room:%s:user:%s", roomID, userID)
}

// SetOnline records the participant with a fresh TTL.
func (m *Mirror) SetOnline(ctx context.Context, roomID, userID, username string) {
	data, err := json.Marshal(Entry{
		UserID:        userID,
		Username:      username,
		LastHeartbeat: time.Now().Unix(),
	})
	if err != nil {
		return
	}

	if err := m.client.Set(ctx, userKey(roomID, userID), data, entryTTL).Err(); err != nil {
		log.Printf("[Presence] Failed to set %s online in %s: %v", userID, roomID, err)
	}
}

// Heartbeat extends the participant's TTL. An expired or missing entry
// is reported so the caller can re-announce.
func (m *Mirror) Heartbeat(ctx context.Context, roomID, userID string) error {
	ok, err := m.client.Expire(ctx, userKey(roomID, userID), entryTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("presence entry for %s in room %s expired", userID, roomID)
	}
	return nil
}

// SetOffline removes the participant's entry.
func (m *Mirror) SetOffline(ctx context.Context, roomID, userID string) {
	if err := m.client.Del(ctx, userKey(roomID, userID)).Err(); err != nil {
		log.Printf("[Presence] Failed to set %s offline in %s: %v", userID, roomID, err)
	}
}

// Online lists the mirrored participants of a room.
func (m *Mirror) Online(ctx context.Context, roomID string) ([]Entry, error) {
	pattern := fmt.Sprintf("presence:room:%s:user:*", roomID)

	var entries []Entry
	iter := m.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		val, err := m.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue // expired between scan and get
		}
		var e Entry
		if err := json.Unmarshal([]byte(val), &e); err == nil {
			entries = append(entries, e)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan presence: %w", err)
	}
	return entries, nil
}

// Close shuts the Redis connection down.
func (m *Mirror) Close() error {
	return m.client.Close()
}
