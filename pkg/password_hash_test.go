package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	passwordHash, err := HashPassword("sr")
	require.NoError(t, err)
	assert.NotEmpty(t, passwordHash)
	assert.NotEqual(t, "sr", passwordHash)
	assert.True(t, CheckPasswordHash("sr", passwordHash))
	assert.False(t, CheckPasswordHash("wrong", passwordHash))

	// same password, different salt, different hash
	otherHash, err := HashPassword("sr")
	require.NoError(t, err)
	assert.NotEqual(t, passwordHash, otherHash)
	assert.True(t, CheckPasswordHash("sr", otherHash))
}

func TestCheckPasswordHash_garbage(t *testing.T) {
	assert.False(t, CheckPasswordHash("sr", "not-a-bcrypt-hash"))
	assert.False(t, CheckPasswordHash("sr", ""))
}
