// Package roster maintains the set of online participants for a room.
package roster

import (
	"sync"
	"time"

	"collabboard/internal/protocol"
)

// Roster is the presence list for one room, keyed by user_id and kept in
// arrival order. It is replaced wholesale when the room changes, never
// merged. Safe for concurrent use: the server hub mutates it from
// connection goroutines, the client from its single reader goroutine.
type Roster struct {
	mu    sync.RWMutex
	users []protocol.Participant
}

// New creates an empty roster.
func New() *Roster {
	return &Roster{}
}

// ReplaceAll swaps the whole roster for the given snapshot. Stale entries
// not present in the new list disappear.
func (r *Roster) ReplaceAll(users []protocol.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = make([]protocol.Participant, len(users))
	copy(r.users, users)
}

// Upsert replaces the entry with the same user_id in place, or appends a
// new one. The participant's timestamp is refreshed if unset.
func (r *Roster) Upsert(p protocol.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Timestamp == "" {
		p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	for i := range r.users {
		if r.users[i].UserID == p.UserID {
			r.users[i] = p
			return
		}
	}
	r.users = append(r.users, p)
}

// Remove deletes the entry matching user_id. Removing an unknown id is a
// no-op.
func (r *Roster) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if r.users[i].UserID == userID {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return
		}
	}
}

// Get returns the entry for user_id, if present.
func (r *Roster) Get(userID string) (protocol.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.users {
		if r.users[i].UserID == userID {
			return r.users[i], true
		}
	}
	return protocol.Participant{}, false
}

// List returns a copy of the roster in arrival order.
func (r *Roster) List() []protocol.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Participant, len(r.users))
	copy(out, r.users)
	return out
}

// Len returns the roster size.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users)
}

// Clear empties the roster. Called on room change only, never on
// disconnect, so the last-known presence stays visible.
func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = nil
}
