package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, VerifyPassword("correct horse", hash))
	assert.False(t, VerifyPassword("battery staple", hash))
	assert.False(t, VerifyPassword("correct horse", "not-a-hash"))
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", HashToken("hello"))
	assert.Len(t, HashToken("anything"), 64)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleIncidentCommander.Valid())
	assert.False(t, Role("owner").Valid())
}
