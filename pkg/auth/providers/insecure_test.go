package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsecureAuthProvider_VerifyToken(t *testing.T) {
	p := NewInsecureAuthProvider()

	claims, err := p.VerifyToken(context.Background(), " player-1 ")
	require.NoError(t, err)
	assert.Equal(t, "player-1", claims.UID)

	_, err = p.VerifyToken(context.Background(), "  ")
	assert.Error(t, err)
}
