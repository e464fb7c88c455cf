package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeMessage(t *testing.T) {
	snapshot, err := NewMessage(MessageTypeSnapshot, "r1", Snapshot{
		Game:   "bingo",
		Exists: true,
		Room:   map[string]interface{}{"status": "active", "drawnNumbers": []interface{}{float64(7)}},
	})
	require.NoError(t, err)
	snapshot.Sequence = 3

	failure, err := NewMessage(MessageTypeError, "r2", Error{Error: "room subscription failed"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		message *Message
	}{
		{name: "snapshot", message: snapshot},
		{name: "error", message: failure},
		{name: "empty payload", message: &Message{Type: MessageTypeSnapshot}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := SerializeMessage(tt.message)
			require.NoError(t, err)

			got, err := DeserializeMessage(b)
			require.NoError(t, err)
			assert.Equal(t, tt.message.Type, got.Type)
			assert.Equal(t, tt.message.Room, got.Room)
			assert.Equal(t, tt.message.Sequence, got.Sequence)
			assert.Equal(t, string(tt.message.Payload), string(got.Payload))
		})
	}
}

func TestSnapshotPayload(t *testing.T) {
	m, err := NewMessage(MessageTypeSnapshot, "r1", Snapshot{Game: "quiz", Exists: true, Room: map[string]interface{}{"phase": "answer"}})
	require.NoError(t, err)
	b, err := SerializeMessage(m)
	require.NoError(t, err)

	got, err := DeserializeMessage(b)
	require.NoError(t, err)
	snap := Snapshot{}
	require.NoError(t, json.Unmarshal(got.Payload, &snap))
	assert.Equal(t, "quiz", snap.Game)
	assert.Equal(t, "answer", snap.Room["phase"])
}

func TestDeserializeMessage_Garbage(t *testing.T) {
	_, err := DeserializeMessage([]byte("not zstd"))
	assert.Error(t, err)

	_, err = DeserializeMessageFlatbuffer([]byte{1})
	assert.Error(t, err)
}
