package roomapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRooms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/rooms", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rooms":[
			{"id":"r1","name":"design-sync","created_at":"2026-08-01T10:00:00Z"},
			{"id":"r2","name":"standup","created_at":"2026-08-02T09:00:00Z"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/v1", WithToken("tok-1"))
	rooms, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "design-sync", rooms[0].Name)
	assert.Equal(t, "r2", rooms[1].ID)
}

func TestCreateRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "retro", body["name"])
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"r3","name":"retro","created_at":"2026-08-03T12:00:00Z"}`))
	}))
	defer srv.Close()

	room, err := New(srv.URL).Create(context.Background(), "retro")
	require.NoError(t, err)
	assert.Equal(t, "r3", room.ID)
	assert.Equal(t, "retro", room.Name)
}

func TestDeleteRoom(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).Delete(context.Background(), "r1"))
	assert.Equal(t, "/rooms/r1", gotPath)
}

func TestErrorStatusSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"room not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	err := New(srv.URL).Delete(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "room not found")
}
