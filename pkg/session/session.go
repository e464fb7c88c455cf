// Package session manages room membership: creating rooms, joining them and
// finding an open one. It is shared by every game type; each Manager works on
// one game's room collection.
package session

import (
	"context"
	"fmt"

	"github.com/cbodonnell/partyhub/pkg/game"
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/log"
	"github.com/cbodonnell/partyhub/pkg/store"
)

var openRooms = store.Filter{Field: "status", Value: string(types.StatusWaiting)}

type Manager struct {
	deps       game.Deps
	collection string
}

type NewManagerOptions struct {
	Deps       game.Deps
	Collection string
}

func NewManager(opts NewManagerOptions) *Manager {
	return &Manager{
		deps:       opts.Deps,
		collection: opts.Collection,
	}
}

// Collection returns the room collection this manager works on.
func (m *Manager) Collection() string {
	return m.collection
}

// Join adds who to the room, creating the room with who as host if it does not exist.
// Joining again with the same identity changes nothing.
func (m *Manager) Join(ctx context.Context, roomID string, who types.Player) error {
	if who.ID == "" {
		return types.Precondition(types.ErrMissingIdentity)
	}
	err := m.deps.Store.Transact(ctx, func(ctx context.Context, tx store.Tx) error {
		snap, err := tx.Get(m.collection, roomID)
		if err != nil {
			return err
		}
		if !snap.Exists {
			return m.createInTx(tx, roomID, who)
		}
		return m.joinInTx(tx, snap, who)
	})
	if err != nil {
		return fmt.Errorf("failed to join room %s: %w", roomID, err)
	}
	log.Debug("Player %s joined %s/%s", who.ID, m.collection, roomID)
	return nil
}

// Create inserts a fresh waiting room with who as its only player and host.
func (m *Manager) Create(ctx context.Context, who types.Player) (string, error) {
	if who.ID == "" {
		return "", types.Precondition(types.ErrMissingIdentity)
	}
	doc, err := store.Encode(m.newRoom(who))
	if err != nil {
		return "", err
	}
	id, err := m.deps.Store.Insert(ctx, m.collection, doc)
	if err != nil {
		return "", fmt.Errorf("failed to create room: %w", err)
	}
	log.Debug("Player %s created %s/%s", who.ID, m.collection, id)
	return id, nil
}

// SearchAndJoin joins the oldest waiting room and returns its id.
func (m *Manager) SearchAndJoin(ctx context.Context, who types.Player) (string, error) {
	if who.ID == "" {
		return "", types.Precondition(types.ErrMissingIdentity)
	}
	snaps, err := m.deps.Store.Query(ctx, m.collection, openRooms)
	if err != nil {
		return "", fmt.Errorf("failed to search rooms: %w", err)
	}
	if len(snaps) == 0 {
		return "", types.Precondition(types.ErrNoOpenRoom)
	}

	roomID := snaps[0].ID
	err = m.deps.Store.Transact(ctx, func(ctx context.Context, tx store.Tx) error {
		snap, err := tx.Get(m.collection, roomID)
		if err != nil {
			return err
		}
		if !snap.Exists {
			return types.Precondition(types.ErrRoomDisappeared)
		}
		return m.joinInTx(tx, snap, who)
	})
	if err != nil {
		return "", fmt.Errorf("failed to join room %s: %w", roomID, err)
	}
	return roomID, nil
}

// Load returns the envelope of one room.
func (m *Manager) Load(ctx context.Context, roomID string) (types.Room, error) {
	snap, err := m.deps.Store.Get(ctx, m.collection, roomID)
	if store.IsNotFound(err) {
		return types.Room{}, types.Precondition(types.ErrRoomNotFound)
	}
	if err != nil {
		return types.Room{}, err
	}
	room := types.Room{}
	if err := snap.DataTo(&room); err != nil {
		return types.Room{}, err
	}
	return room, nil
}

// ListOpen returns the waiting rooms, oldest first.
func (m *Manager) ListOpen(ctx context.Context) ([]types.Room, error) {
	snaps, err := m.deps.Store.Query(ctx, m.collection, openRooms)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return DecodeRooms(snaps)
}

// WatchOpen streams the waiting rooms whenever the set changes.
func (m *Manager) WatchOpen(ctx context.Context) (*store.Subscription[[]store.Snapshot], error) {
	return m.deps.Store.SubscribeQuery(ctx, m.collection, openRooms)
}

// DecodeRooms converts query results into room envelopes.
func DecodeRooms(snaps []store.Snapshot) ([]types.Room, error) {
	rooms := make([]types.Room, 0, len(snaps))
	for _, snap := range snaps {
		room := types.Room{}
		if err := snap.DataTo(&room); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (m *Manager) newRoom(who types.Player) types.Room {
	return types.Room{
		Host:      who.ID,
		Players:   []types.Player{who},
		Status:    types.StatusWaiting,
		CreatedAt: m.deps.Millis(),
	}
}

func (m *Manager) createInTx(tx store.Tx, roomID string, who types.Player) error {
	doc, err := store.Encode(m.newRoom(who))
	if err != nil {
		return err
	}
	return tx.Set(m.collection, roomID, doc)
}

func (m *Manager) joinInTx(tx store.Tx, snap store.Snapshot, who types.Player) error {
	room := types.Room{}
	if err := snap.DataTo(&room); err != nil {
		return types.Preconditionf(types.ErrCorruptRoomRecord, "%v", err)
	}

	update := store.Document{}
	if !room.HasPlayer(who.ID) {
		update["players"] = append(room.Players, who)
	}
	if room.Host == "" {
		update["host"] = who.ID
	}
	if room.Status == "" {
		update["status"] = types.StatusWaiting
	}
	if len(update) == 0 {
		return nil
	}
	return tx.Update(m.collection, snap.ID, update)
}
