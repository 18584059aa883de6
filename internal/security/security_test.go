package security_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/security"
)

func TestTokenService(t *testing.T) {
	ts := security.NewTokenService("secret", time.Hour)

	t.Run("RoundTrip", func(t *testing.T) {
		tok, err := ts.CreateForProfile("profile-1")
		require.NoError(t, err)

		sub, err := ts.Subject(tok)
		require.NoError(t, err)
		assert.Equal(t, "profile-1", sub)
	})

	t.Run("Expired", func(t *testing.T) {
		tok, err := ts.CreateWithTTL("profile-1", -time.Minute)
		require.NoError(t, err)

		_, err = ts.Subject(tok)
		assert.Error(t, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := security.NewTokenService("other", time.Hour)
		tok, err := other.CreateForProfile("profile-1")
		require.NoError(t, err)

		_, err = ts.Parse(tok)
		assert.Error(t, err)
	})
}

func TestPasswordHasher(t *testing.T) {
	h := security.NewPasswordHasher(4)
	hashed, err := h.Hash("hunter22")
	require.NoError(t, err)

	assert.NoError(t, h.Verify("hunter22", hashed))
	assert.Error(t, h.Verify("wrong", hashed))
}

func TestEncryptor(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		enc, err := security.NewEncryptor("a plain passphrase", nil)
		require.NoError(t, err)

		sealed, err := enc.Encrypt("hello there")
		require.NoError(t, err)
		assert.NotEqual(t, "hello there", sealed)

		plain, err := enc.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, "hello there", plain)
	})

	t.Run("LegacyKeysDecrypt", func(t *testing.T) {
		oldKey, err := security.GenerateKey()
		require.NoError(t, err)
		old, err := security.NewEncryptor(oldKey, nil)
		require.NoError(t, err)
		sealed, err := old.Encrypt("before rotation")
		require.NoError(t, err)

		rotated, err := security.NewEncryptor("new secret", []string{oldKey})
		require.NoError(t, err)
		plain, err := rotated.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, "before rotation", plain)
	})

	t.Run("UnknownKeyFails", func(t *testing.T) {
		a, _ := security.NewEncryptor("key a", nil)
		b, _ := security.NewEncryptor("key b", nil)
		sealed, err := a.Encrypt("secret")
		require.NoError(t, err)

		_, err = b.Decrypt(sealed)
		assert.Error(t, err)
		assert.Equal(t, "", b.DecryptOrRaw(sealed))
		assert.Equal(t, "plain legacy row", b.DecryptOrRaw("plain legacy row"))
	})

	t.Run("NilPassesThrough", func(t *testing.T) {
		var enc *security.Encryptor
		sealed, err := enc.Encrypt("text")
		require.NoError(t, err)
		assert.Equal(t, "text", sealed)
		assert.Equal(t, "text", enc.DecryptOrRaw(sealed))
	})

	t.Run("EmptyKeyRejected", func(t *testing.T) {
		_, err := security.NewEncryptor("  ", nil)
		assert.Error(t, err)
	})
}
