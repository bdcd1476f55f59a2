package utils

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateHash(t *testing.T) {
	assert.Equal(t, `"00000000"`, CalculateHash(nil))
	assert.Equal(t, CalculateHash([]byte("a")), CalculateHash([]byte("a")))
	assert.NotEqual(t, CalculateHash([]byte("a")), CalculateHash([]byte("b")))
}

func TestGenerateRandomID(t *testing.T) {
	a := GenerateRandomID()
	b := GenerateRandomID()
	assert.NotEqual(t, a, b)

	_, err := ulid.Parse(a)
	require.NoError(t, err)
}
