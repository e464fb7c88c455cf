package auth

import (
	"context"

	"github.com/cbodonnell/partyhub/pkg/game/types"
)

type contextKey int

const identityContextKey contextKey = iota

// Identity is the authenticated caller of a request.
type Identity struct {
	UID  string
	Name string
}

// Player returns the identity as a room member. The uid stands in for a missing name.
func (i Identity) Player() types.Player {
	name := i.Name
	if name == "" {
		name = i.UID
	}
	return types.Player{ID: i.UID, Name: name}
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}
