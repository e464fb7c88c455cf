package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cbodonnell/partyhub/pkg/game"
	"github.com/cbodonnell/partyhub/pkg/messages"
	"github.com/cbodonnell/partyhub/pkg/rooms"
	"github.com/cbodonnell/partyhub/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func readSnapshot(t *testing.T, ctx context.Context, conn *websocket.Conn) (*messages.Message, messages.Snapshot) {
	t.Helper()
	msg, err := ReadMessageFromWS(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, messages.MessageTypeSnapshot, msg.Type)
	snap := messages.Snapshot{}
	require.NoError(t, json.Unmarshal(msg.Payload, &snap))
	return msg, snap
}

func TestRoomFeed_StreamsSnapshots(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st := store.NewMemory()
	def, err := game.Lookup(game.Bingo)
	require.NoError(t, err)
	require.NoError(t, st.MergeWrite(ctx, def.Collection, "r1", store.Document{"status": "waiting", "host": "u1"}))

	var hookCalls atomic.Int32
	cm := NewClientManager()
	feed := NewRoomFeed(NewRoomFeedOptions{
		Store:         st,
		ClientManager: cm,
		Hooks: map[string]SnapshotHook{
			game.Bingo: func(ctx context.Context, def game.Definition, view rooms.View[store.Document], userID string) {
				assert.Equal(t, "u1", userID)
				hookCalls.Add(1)
			},
		},
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feed.Serve(w, r, def, "r1", "u1")
	}))
	defer server.Close()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	msg, snap := readSnapshot(t, ctx, conn)
	assert.Equal(t, "r1", msg.Room)
	assert.Equal(t, uint64(1), msg.Sequence)
	assert.Equal(t, game.Bingo, snap.Game)
	assert.True(t, snap.Exists)
	assert.Equal(t, "waiting", snap.Room["status"])

	room := RoomKey{Game: game.Bingo, RoomID: "r1"}
	assert.Equal(t, 1, cm.Count(room))

	require.NoError(t, st.MergeWrite(ctx, def.Collection, "r1", store.Document{"status": "active"}))
	for {
		msg, snap = readSnapshot(t, ctx, conn)
		if snap.Room["status"] == "active" {
			break
		}
	}
	assert.Greater(t, msg.Sequence, uint64(1))
	assert.GreaterOrEqual(t, hookCalls.Load(), int32(2))

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool {
		return cm.Count(room) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRoomFeed_MissingRoom(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	def, err := game.Lookup(game.Quiz)
	require.NoError(t, err)
	feed := NewRoomFeed(NewRoomFeedOptions{Store: store.NewMemory(), ClientManager: NewClientManager()})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feed.Serve(w, r, def, "nope", "u1")
	}))
	defer server.Close()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, snap := readSnapshot(t, ctx, conn)
	assert.False(t, snap.Exists)
	assert.Nil(t, snap.Room)
}
