package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/partyhub/pkg/game"
	"github.com/cbodonnell/partyhub/pkg/log"
	"github.com/cbodonnell/partyhub/pkg/messages"
	"github.com/cbodonnell/partyhub/pkg/rooms"
	"github.com/cbodonnell/partyhub/pkg/store"
	"github.com/cbodonnell/partyhub/pkg/workers"
	"nhooyr.io/websocket"
)

// SnapshotHook runs on the connection of userID before each snapshot is sent.
type SnapshotHook func(ctx context.Context, def game.Definition, view rooms.View[store.Document], userID string)

// RoomFeed streams the live state of a room to websocket clients.
type RoomFeed struct {
	store          store.Store
	clientManager  *ClientManager
	originPatterns []string
	hooks          map[string]SnapshotHook
}

type NewRoomFeedOptions struct {
	Store         store.Store
	ClientManager *ClientManager
	// OriginPatterns are the cross origin hosts allowed to connect
	OriginPatterns []string
	// Hooks are keyed by game id
	Hooks map[string]SnapshotHook
}

func NewRoomFeed(opts NewRoomFeedOptions) *RoomFeed {
	return &RoomFeed{
		store:          opts.Store,
		clientManager:  opts.ClientManager,
		originPatterns: opts.OriginPatterns,
		hooks:          opts.Hooks,
	}
}

// Serve upgrades the request and sends a snapshot message for the current state
// of the room and every change after it, until the client goes away.
func (f *RoomFeed) Serve(w http.ResponseWriter, r *http.Request, def game.Definition, roomID, userID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: f.originPatterns,
	})
	if err != nil {
		log.Error("Failed to accept WebSocket connection: %v", err)
		return
	}
	client := f.clientManager.ConnectClient(RoomKey{Game: def.ID, RoomID: roomID}, userID, conn)
	logger := log.With("room", roomID).With("client", client.ID)
	logger.Debug("Client of %s connected to %s room", userID, def.ID)
	defer func() {
		f.clientManager.DisconnectClient(client.ID)
		logger.Debug("Client disconnected")
	}()

	// reads are discarded; ctx ends when the client closes the connection
	ctx := conn.CloseRead(r.Context())

	mirror, err := rooms.Watch[store.Document](ctx, f.store, def.Collection, roomID)
	if err != nil {
		f.fail(ctx, conn, roomID, err)
		return
	}
	defer mirror.Close()

	hook := f.hooks[def.ID]
	var sequence uint64
	worker := workers.NewSnapshotRelayWorker(workers.NewSnapshotRelayWorkerOptions[store.Document]{
		Mirror: mirror,
		Sink: func(ctx context.Context, view rooms.View[store.Document]) error {
			if hook != nil {
				hook(ctx, def, view, userID)
			}
			msg, err := messages.NewMessage(messages.MessageTypeSnapshot, roomID, messages.Snapshot{
				Game:   def.ID,
				Exists: view.Exists,
				Room:   view.Room,
			})
			if err != nil {
				return fmt.Errorf("failed to marshal snapshot: %v", err)
			}
			sequence++
			msg.Sequence = sequence
			return WriteMessageToWS(ctx, conn, msg)
		},
	})

	err = worker.Start(ctx)
	switch {
	case ctx.Err() != nil:
		logger.Trace("Connection closed by client")
	case mirror.Err() != nil:
		f.fail(ctx, conn, roomID, mirror.Err())
	case err != nil:
		logger.Error("Failed to relay room snapshot: %v", err)
		conn.Close(websocket.StatusInternalError, "relay failed")
	default:
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

// fail sends an error message and closes the connection
func (f *RoomFeed) fail(ctx context.Context, conn *websocket.Conn, roomID string, cause error) {
	log.Error("Room feed for %s failed: %v", roomID, cause)
	msg, err := messages.NewMessage(messages.MessageTypeError, roomID, messages.Error{Error: cause.Error()})
	if err == nil {
		if err := WriteMessageToWS(ctx, conn, msg); err != nil {
			log.Debug("Failed to send error message: %v", err)
		}
	}
	conn.Close(websocket.StatusInternalError, "room subscription failed")
}

// WriteMessageToWS writes a Message to a WebSocket connection
func WriteMessageToWS(ctx context.Context, conn *websocket.Conn, msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	if err := conn.Write(ctx, websocket.MessageBinary, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}

	return nil
}

// ReadMessageFromWS reads a Message from a WebSocket connection
func ReadMessageFromWS(ctx context.Context, conn *websocket.Conn) (*messages.Message, error) {
	messageType, b, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if messageType != websocket.MessageBinary {
		return nil, errors.New("unexpected text message")
	}

	msg, err := messages.DeserializeMessage(b)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}

	return msg, nil
}
