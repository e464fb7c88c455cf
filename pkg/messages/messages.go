package messages

import "encoding/json"

// Message types
const (
	MessageTypeSnapshot = "snapshot"
	MessageTypeError    = "error"
)

// Message is one frame pushed to a room's websocket clients
type Message struct {
	Type string `json:"type"`
	Room string `json:"room"`
	// Sequence increases by one with every message sent on a connection
	Sequence uint64          `json:"sequence"`
	Payload  json.RawMessage `json:"payload"`
}

// Snapshot is the payload of a snapshot message.
// Room is nil when the room does not exist.
type Snapshot struct {
	Game   string                 `json:"game"`
	Exists bool                   `json:"exists"`
	Room   map[string]interface{} `json:"room"`
}

// Error is the payload of an error message
type Error struct {
	Error string `json:"error"`
}

// NewMessage encodes payload as JSON into a message of the given type.
func NewMessage(messageType, room string, payload interface{}) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:    messageType,
		Room:    room,
		Payload: b,
	}, nil
}
