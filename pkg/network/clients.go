package network

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// RoomKey identifies a room across game types
type RoomKey struct {
	Game   string
	RoomID string
}

// Client represents a connected websocket client
type Client struct {
	ID          string
	Room        RoomKey
	UserID      string
	Conn        *websocket.Conn
	ConnectedAt time.Time
}

// ClientManager tracks the clients watching each room
type ClientManager struct {
	clients     map[string]*Client
	rooms       map[RoomKey]map[string]struct{}
	clientsLock sync.RWMutex
}

// NewClientManager creates a new ClientManager
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[string]*Client),
		rooms:   make(map[RoomKey]map[string]struct{}),
	}
}

// ConnectClient registers a connection to a room and returns the new client
func (cm *ClientManager) ConnectClient(room RoomKey, userID string, conn *websocket.Conn) *Client {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client := &Client{
		ID:          uuid.NewString(),
		Room:        room,
		UserID:      userID,
		Conn:        conn,
		ConnectedAt: time.Now(),
	}
	cm.clients[client.ID] = client
	if cm.rooms[room] == nil {
		cm.rooms[room] = make(map[string]struct{})
	}
	cm.rooms[room][client.ID] = struct{}{}
	return client
}

// DisconnectClient removes a client from the manager
func (cm *ClientManager) DisconnectClient(clientID string) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client, ok := cm.clients[clientID]
	if !ok {
		return
	}
	delete(cm.clients, clientID)
	delete(cm.rooms[client.Room], clientID)
	if len(cm.rooms[client.Room]) == 0 {
		delete(cm.rooms, client.Room)
	}
}

// GetClients returns copies of the clients watching a room, oldest connection first
func (cm *ClientManager) GetClients(room RoomKey) []Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()

	clients := make([]Client, 0, len(cm.rooms[room]))
	for id := range cm.rooms[room] {
		clients = append(clients, *cm.clients[id])
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].ConnectedAt.Before(clients[j].ConnectedAt)
	})
	return clients
}

// Count returns the number of clients watching a room
func (cm *ClientManager) Count(room RoomKey) int {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	return len(cm.rooms[room])
}

func (cm *ClientManager) Exists(clientID string) bool {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	_, ok := cm.clients[clientID]
	return ok
}
