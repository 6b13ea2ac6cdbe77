package handler

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"collabboard/internal/model"
	"collabboard/internal/protocol"
)

// fakeConn records every frame the hub writes to it.
type fakeConn struct {
	mu           sync.Mutex
	frames       [][]byte
	lastDeadline time.Time
	closed       bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDeadline = t
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) messages(t *testing.T) []*protocol.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := make([]*protocol.Message, 0, len(f.frames))
	for _, raw := range f.frames {
		msg, err := protocol.Decode(raw)
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

func (f *fakeConn) kinds(t *testing.T) []string {
	t.Helper()
	msgs := f.messages(t)
	kinds := make([]string, len(msgs))
	for i, m := range msgs {
		kinds[i] = m.Kind
	}
	return kinds
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.StrokeRecord{}, &model.ChatRecord{}))
	return db
}

func encodeFrame(t *testing.T, frame any) []byte {
	t.Helper()
	data, err := protocol.Encode(frame)
	require.NoError(t, err)
	return data
}

func TestJoinSendsWelcomeAndAnnouncesToOthers(t *testing.T) {
	hub := NewHub(nil, nil, nil)

	alice := &fakeConn{}
	hub.Join(alice, "design", "u1", "alice")

	msgs := alice.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.KindRoomJoined, msgs[0].Kind)
	assert.Equal(t, "Welcome to design, alice!", msgs[0].Welcome)
	assert.Equal(t, protocol.KindPresence, msgs[1].Kind)
	require.Len(t, msgs[1].Users, 1)
	assert.Equal(t, "u1", msgs[1].Users[0].UserID)

	alice.reset()
	bob := &fakeConn{}
	hub.Join(bob, "design", "u2", "bob")

	msgs = alice.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.KindUserJoined, msgs[0].Kind)
	assert.Equal(t, "u2", msgs[0].User.UserID)
	assert.Equal(t, "bob", msgs[0].User.Username)
	assert.Equal(t, protocol.KindPresence, msgs[1].Kind)
	assert.Len(t, msgs[1].Users, 2)

	// The new arrival gets no user_joined for itself.
	assert.NotContains(t, bob.kinds(t), protocol.KindUserJoined)
}

func TestChatBroadcastsToAllAndPersists(t *testing.T) {
	db := openTestDB(t)
	hub := NewHub(db, nil, nil)

	alice := &fakeConn{}
	bob := &fakeConn{}
	hub.Join(alice, "design", "u1", "alice")
	hub.Join(bob, "design", "u2", "bob")
	alice.reset()
	bob.reset()

	hub.HandleFrame(alice, "design", encodeFrame(t, protocol.NewChatText("hello there")))

	for _, conn := range []*fakeConn{alice, bob} {
		msgs := conn.messages(t)
		require.Len(t, msgs, 1)
		assert.Equal(t, protocol.KindChatMessage, msgs[0].Kind)
		require.NotNil(t, msgs[0].Chat)
		assert.Equal(t, "hello there", msgs[0].Chat.Content)
		assert.Equal(t, "alice", msgs[0].Chat.Username)
	}

	var rec model.ChatRecord
	require.NoError(t, db.First(&rec, "room_id = ?", "design").Error)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "hello there", rec.Content)
	assert.Equal(t, "TEXT", rec.Type)
}

func TestFileChatPersistsAsFileType(t *testing.T) {
	db := openTestDB(t)
	hub := NewHub(db, nil, nil)

	alice := &fakeConn{}
	hub.Join(alice, "design", "u1", "alice")
	alice.reset()

	frame := protocol.NewChatFile("shared a file", "https://cdn/report.pdf", "report.pdf", "application/pdf", "alice")
	hub.HandleFrame(alice, "design", encodeFrame(t, frame))

	var rec model.ChatRecord
	require.NoError(t, db.First(&rec, "room_id = ?", "design").Error)
	assert.Equal(t, "FILE", rec.Type)
	require.NotNil(t, rec.FileURL)
	assert.Equal(t, "https://cdn/report.pdf", *rec.FileURL)

	msgs := alice.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "https://cdn/report.pdf", msgs[0].Chat.FileURL)
}

func TestStrokeSkipsAuthorAndPersists(t *testing.T) {
	db := openTestDB(t)
	hub := NewHub(db, nil, nil)

	alice := &fakeConn{}
	bob := &fakeConn{}
	hub.Join(alice, "design", "u1", "alice")
	hub.Join(bob, "design", "u2", "bob")
	alice.reset()
	bob.reset()

	stroke := protocol.Stroke{
		ID:        "s1",
		Points:    []protocol.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
		Color:     "#ff0000",
		BrushSize: 3,
	}
	hub.HandleFrame(alice, "design", encodeFrame(t, protocol.NewStrokeAdded(stroke)))

	assert.Empty(t, alice.kinds(t))

	msgs := bob.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.KindStrokeAdded, msgs[0].Kind)
	require.NotNil(t, msgs[0].Stroke)
	assert.Equal(t, "s1", msgs[0].Stroke.ID)
	assert.Equal(t, "u1", msgs[0].Stroke.UserID)
	assert.Equal(t, "alice", msgs[0].Stroke.Username)

	var rec model.StrokeRecord
	require.NoError(t, db.First(&rec, "room_id = ?", "design").Error)
	assert.Equal(t, "s1", rec.StrokeID)
	assert.Equal(t, "u1", rec.UserID)
	assert.False(t, rec.IsDeleted)
	assert.Contains(t, rec.StrokeData, `"id":"s1"`)

	assert.Len(t, hub.RoomStrokes("design"), 1)
}

func TestClearSoftDeletesAndSkipsAuthor(t *testing.T) {
	db := openTestDB(t)
	hub := NewHub(db, nil, nil)

	alice := &fakeConn{}
	bob := &fakeConn{}
	hub.Join(alice, "design", "u1", "alice")
	hub.Join(bob, "design", "u2", "bob")

	stroke := protocol.Stroke{ID: "s1", Color: "#000", BrushSize: 2}
	hub.HandleFrame(alice, "design", encodeFrame(t, protocol.NewStrokeAdded(stroke)))
	alice.reset()
	bob.reset()

	hub.HandleFrame(alice, "design", encodeFrame(t, protocol.NewCanvasCleared("u1", "alice")))

	assert.Empty(t, alice.kinds(t))

	msgs := bob.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.KindCanvasCleared, msgs[0].Kind)
	require.NotNil(t, msgs[0].ClearedBy)
	assert.Equal(t, "u1", msgs[0].ClearedBy.ID)

	assert.Empty(t, hub.RoomStrokes("design"))

	var rec model.StrokeRecord
	require.NoError(t, db.First(&rec, "room_id = ?", "design").Error)
	assert.True(t, rec.IsDeleted)
	require.NotNil(t, rec.DeletedAt)
}

func TestRequestStateAnswersRequesterOnly(t *testing.T) {
	hub := NewHub(nil, nil, nil)

	alice := &fakeConn{}
	bob := &fakeConn{}
	hub.Join(alice, "design", "u1", "alice")
	hub.Join(bob, "design", "u2", "bob")

	stroke := protocol.Stroke{ID: "s1", Color: "#000", BrushSize: 2}
	hub.HandleFrame(alice, "design", encodeFrame(t, protocol.NewStrokeAdded(stroke)))
	alice.reset()
	bob.reset()

	hub.HandleFrame(bob, "design", encodeFrame(t, protocol.NewRequestState()))

	assert.Empty(t, alice.kinds(t))

	msgs := bob.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.KindDocumentState, msgs[0].Kind)
	require.Len(t, msgs[0].Strokes, 1)
	assert.Equal(t, "s1", msgs[0].Strokes[0].ID)
}

func TestLeaveAnnouncesDepartureAndClosesEmptyRoom(t *testing.T) {
	hub := NewHub(nil, nil, nil)

	alice := &fakeConn{}
	bob := &fakeConn{}
	hub.Join(alice, "design", "u1", "alice")
	hub.Join(bob, "design", "u2", "bob")
	alice.reset()

	hub.Leave(bob, "design")

	msgs := alice.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.KindUserLeft, msgs[0].Kind)
	assert.Equal(t, "u2", msgs[0].User.UserID)
	assert.Equal(t, protocol.KindPresence, msgs[1].Kind)
	assert.Len(t, msgs[1].Users, 1)

	hub.Leave(alice, "design")

	hub.mu.RLock()
	_, open := hub.rooms["design"]
	hub.mu.RUnlock()
	assert.False(t, open)
}

func TestSecondConnectionSameUserSuppressesDeparture(t *testing.T) {
	hub := NewHub(nil, nil, nil)

	tab1 := &fakeConn{}
	tab2 := &fakeConn{}
	other := &fakeConn{}
	hub.Join(tab1, "design", "u1", "alice")
	hub.Join(tab2, "design", "u1", "alice")
	hub.Join(other, "design", "u2", "bob")
	other.reset()

	hub.Leave(tab1, "design")

	// alice still has a live connection, so nothing is announced.
	assert.Empty(t, other.kinds(t))

	hub.Leave(tab2, "design")

	kinds := other.kinds(t)
	require.Len(t, kinds, 2)
	assert.Equal(t, protocol.KindUserLeft, kinds[0])
}

func TestStrokesRestoredFromDatabase(t *testing.T) {
	db := openTestDB(t)

	seed := func(strokeID, data string, deleted bool) {
		rec := model.StrokeRecord{
			RoomID:     "design",
			StrokeID:   strokeID,
			UserID:     "u1",
			StrokeData: data,
			IsDeleted:  deleted,
		}
		require.NoError(t, db.Create(&rec).Error)
	}
	seed("s1", `{"id":"s1","points":[{"x":1,"y":1}],"color":"#000","brush_size":2,"user_id":"u1","username":"alice"}`, false)
	seed("s2", `{"id":"s2","points":[],"color":"#fff","brush_size":4,"user_id":"u1","username":"alice"}`, false)
	seed("s3", `{"id":"s3","points":[],"color":"#aaa","brush_size":1,"user_id":"u1","username":"alice"}`, true)

	hub := NewHub(db, nil, nil)

	conn := &fakeConn{}
	hub.Join(conn, "design", "u2", "bob")
	conn.reset()

	hub.HandleFrame(conn, "design", encodeFrame(t, protocol.NewRequestState()))

	msgs := conn.messages(t)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Strokes, 2)
	assert.Equal(t, "s1", msgs[0].Strokes[0].ID)
	assert.Equal(t, "s2", msgs[0].Strokes[1].ID)
}

func TestWriteTimeoutBoundsEachWrite(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	hub.SetWriteTimeout(5 * time.Second)

	conn := &fakeConn{}
	before := time.Now()
	hub.Join(conn, "design", "u1", "alice")

	conn.mu.Lock()
	deadline := conn.lastDeadline
	conn.mu.Unlock()

	require.False(t, deadline.IsZero())
	assert.True(t, deadline.After(before.Add(4*time.Second)))
	assert.True(t, deadline.Before(before.Add(6*time.Second)))
}

func TestFrameFromUnknownConnectionIgnored(t *testing.T) {
	hub := NewHub(nil, nil, nil)

	member := &fakeConn{}
	hub.Join(member, "design", "u1", "alice")
	member.reset()

	stranger := &fakeConn{}
	hub.HandleFrame(stranger, "design", encodeFrame(t, protocol.NewChatText("sneaky")))

	assert.Empty(t, member.kinds(t))
	assert.Empty(t, stranger.kinds(t))
}
