package credstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealerRoundtrip(t *testing.T) {
	salt, err := NewSealSalt()
	require.NoError(t, err)
	sealer, err := NewSealer("hunter2", salt)
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("abc"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "abc")

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), opened)
}

func TestSealerWrongKeyFails(t *testing.T) {
	salt, err := NewSealSalt()
	require.NoError(t, err)
	sealer, err := NewSealer("hunter2", salt)
	require.NoError(t, err)
	other, err := NewSealer("different", salt)
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("abc"))
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestSealerRejectsShortValues(t *testing.T) {
	salt, err := NewSealSalt()
	require.NoError(t, err)
	sealer, err := NewSealer("hunter2", salt)
	require.NoError(t, err)

	_, err = sealer.Open([]byte("short"))
	assert.Error(t, err)
}

func TestSealerRejectsBadSalt(t *testing.T) {
	_, err := NewSealer("hunter2", []byte("tiny"))
	assert.Error(t, err)
}
