package security

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setKey(t *testing.T, raw string) {
	t.Helper()
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", base64.StdEncoding.EncodeToString([]byte(raw)))
}

func TestEncryptDecrypt(t *testing.T) {
	setKey(t, strings.Repeat("a", keySize))

	sealed, err := EncryptString("lp-app-secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "lp-app-secret")

	again, err := EncryptString("lp-app-secret")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "every seal uses a fresh nonce")

	plain, err := DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "lp-app-secret", plain)
}

func TestDecryptWithOtherKey(t *testing.T) {
	setKey(t, strings.Repeat("a", keySize))
	sealed, err := EncryptString("token")
	require.NoError(t, err)

	setKey(t, strings.Repeat("k", keySize))
	_, err = DecryptString(sealed)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestInvalidInputs(t *testing.T) {
	setKey(t, strings.Repeat("a", keySize))

	_, err := DecryptString("not base64!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = DecryptString(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	setKey(t, "too short")
	_, err = EncryptString("x")
	assert.ErrorIs(t, err, ErrInvalidKey)

	t.Setenv("EXCHANGE_CREDENTIALS_KEY", "")
	_, err = EncryptString("x")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
