package identity_test

import (
	"testing"

	"github.com/facilitaservicos/authcore/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := identity.HashPassword("Sup3r$ecure!")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "Sup3r$ecure!", hash)

	assert.True(t, identity.CheckPasswordHash("Sup3r$ecure!", hash))
	assert.False(t, identity.CheckPasswordHash("wrong", hash))
	assert.False(t, identity.CheckPasswordHash("Sup3r$ecure!", "not-a-hash"))
}
