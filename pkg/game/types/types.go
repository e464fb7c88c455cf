package types

// Player is a member of a room.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Status is the coarse lifecycle state of a room.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Room is the session envelope shared by every game type.
type Room struct {
	ID        string   `json:"-"`
	Host      string   `json:"host,omitempty"`
	Players   []Player `json:"players"`
	Status    Status   `json:"status"`
	CreatedAt int64    `json:"createdAt"`
}

func (r *Room) SetID(id string) {
	r.ID = id
}

// HasPlayer reports whether id is in the room.
func (r *Room) HasPlayer(id string) bool {
	_, ok := r.Player(id)
	return ok
}

// Player returns the member with the given id.
func (r *Room) Player(id string) (Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// PlayerIDs returns member ids in join order.
func (r *Room) PlayerIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// RequireHost fails unless actor is the room's host.
func (r *Room) RequireHost(actor string) error {
	if r.Host == "" || r.Host != actor {
		return Precondition(ErrNotHost)
	}
	return nil
}

// RequireStatus fails unless the room is in one of the given states.
func (r *Room) RequireStatus(allowed ...Status) error {
	for _, s := range allowed {
		if r.Status == s {
			return nil
		}
	}
	return Preconditionf(ErrWrongStatus, "room is %s", r.Status)
}
