package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBox(t *testing.T) *SecretBox {
	t.Helper()
	encoded, err := GenerateKey()
	require.NoError(t, err)
	key, err := ParseKey(encoded)
	require.NoError(t, err)
	box, err := NewSecretBox(key)
	require.NoError(t, err)
	return box
}

func TestSecretBox_RoundTrip(t *testing.T) {
	box := newTestBox(t)

	for _, plaintext := range []string{"sk-test-key-12345", "", "AIzaSy-中文-🔑", strings.Repeat("x", 4096)} {
		sealed, err := box.Seal(plaintext)
		require.NoError(t, err)
		assert.True(t, IsSealed(sealed))

		opened, err := box.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}
}

func TestSecretBox_SealIsRandomized(t *testing.T) {
	box := newTestBox(t)

	a, err := box.Seal("same")
	require.NoError(t, err)
	b, err := box.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSecretBox_OpenPlaintextPassthrough(t *testing.T) {
	box := newTestBox(t)

	opened, err := box.Open("gsk_plain_key")
	require.NoError(t, err)
	assert.Equal(t, "gsk_plain_key", opened)
}

func TestSecretBox_WrongKey(t *testing.T) {
	sealed, err := newTestBox(t).Seal("secret")
	require.NoError(t, err)

	_, err = newTestBox(t).Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSecretBox_Corrupted(t *testing.T) {
	box := newTestBox(t)

	_, err := box.Open(sealedPrefix + "not-base64!!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = box.Open(sealedPrefix + base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewSecretBox_InvalidKeySize(t *testing.T) {
	_, err := NewSecretBox([]byte("too-short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey("")
	require.NoError(t, err)
	assert.Nil(t, key)

	_, err = ParseKey("%%%")
	assert.ErrorIs(t, err, ErrInvalidEncryptionKey)

	_, err = ParseKey(base64.StdEncoding.EncodeToString([]byte("sixteen-bytes!!!")))
	assert.ErrorIs(t, err, ErrInvalidEncryptionKey)
}
