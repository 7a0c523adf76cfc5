package vault

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCipher_RequiresActiveVersion(t *testing.T) {
	_, err := NewCipher(KeyConfig{Keys: map[string]string{"v1": "secret"}})
	assert.Error(t, err)

	_, err = NewCipher(KeyConfig{Keys: map[string]string{"v1": "secret"}, ActiveVersion: "v2"})
	assert.Error(t, err)
}

func TestCipher_EncryptDecryptRoundTrip(t *testing.T) {
	cipher, err := NewCipher(KeyConfig{
		Keys:          map[string]string{"v1": "correct horse battery staple"},
		ActiveVersion: "v1",
	})
	require.NoError(t, err)

	encrypted, err := cipher.Encrypt("portal-password-42")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encrypted, "v1:"))
	assert.NotContains(t, encrypted, "portal-password-42")

	plain, err := cipher.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "portal-password-42", plain)
}

func TestCipher_EmptySecret(t *testing.T) {
	cipher, err := NewCipher(KeyConfig{
		Keys:          map[string]string{"v1": "k"},
		ActiveVersion: "v1",
	})
	require.NoError(t, err)

	encrypted, err := cipher.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, encrypted)

	plain, err := cipher.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestCipher_KeyRotation(t *testing.T) {
	// Arrange: seal under v1
	oldCipher, err := NewCipher(KeyConfig{
		Keys:          map[string]string{"v1": "old key"},
		ActiveVersion: "v1",
	})
	require.NoError(t, err)
	encrypted, err := oldCipher.Encrypt("still-valid-secret")
	require.NoError(t, err)

	// Act: rotate to v2 while keeping v1 in the ring
	rotated, err := NewCipher(KeyConfig{
		Keys:          map[string]string{"v1": "old key", "v2": "new key"},
		ActiveVersion: "v2",
	})
	require.NoError(t, err)

	// Assert: old ciphertext still opens, new ciphertext uses v2
	plain, err := rotated.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "still-valid-secret", plain)

	reEncrypted, err := rotated.Encrypt(plain)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reEncrypted, "v2:"))
	assert.Equal(t, "v2", rotated.ActiveVersion())
}

func TestCipher_DecryptUnknownVersion(t *testing.T) {
	cipher, err := NewCipher(KeyConfig{
		Keys:          map[string]string{"v2": "new key"},
		ActiveVersion: "v2",
	})
	require.NoError(t, err)

	_, err = cipher.Decrypt("v1:" + base64.StdEncoding.EncodeToString([]byte("whatever")))
	assert.Error(t, err)
}

func TestCipher_DecryptTamperedCiphertext(t *testing.T) {
	cipher, err := NewCipher(KeyConfig{
		Keys:          map[string]string{"v1": "k"},
		ActiveVersion: "v1",
	})
	require.NoError(t, err)

	encrypted, err := cipher.Encrypt("secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encrypted, "v1:"))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	_, err = cipher.Decrypt("v1:" + base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)

	_, err = cipher.Decrypt("missing-version-prefix")
	assert.Error(t, err)
}

func TestDeriveKey(t *testing.T) {
	// base64 of exactly 32 bytes is used verbatim
	raw := base64.StdEncoding.EncodeToString(make([]byte, 32))
	assert.Len(t, deriveKey(raw), 32)

	// anything else is stretched through SHA-256
	assert.Len(t, deriveKey("a passphrase"), 32)
	assert.NotEqual(t, deriveKey("a passphrase"), deriveKey("another passphrase"))
}
