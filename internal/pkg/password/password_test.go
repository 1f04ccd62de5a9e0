package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, Verify("correct horse battery staple", hash))
	assert.False(t, Verify("wrong password", hash))
	assert.False(t, Verify("", hash))
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("some-refresh-token")
	h2 := HashToken("some-refresh-token")
	h3 := HashToken("other-token")

	assert.Equal(t, h1, h2, "hashing is deterministic")
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64, "hex-encoded SHA-256")
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate("12345678"))
	assert.True(t, Validate("a longer passphrase"))
	assert.False(t, Validate("1234567"))
	assert.False(t, Validate(""))
}
