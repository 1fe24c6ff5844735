package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithIdentity(context.Background(), &Identity{UserID: 1, Username: "admin"})
	identity, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "admin", identity.Username)

	ctx = ContextWithIdentity(context.Background(), nil)
	_, ok = IdentityFromContext(ctx)
	assert.False(t, ok)
}
