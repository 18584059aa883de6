package security

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
)

// Encryptor seals message text at rest with fernet tokens. The first key
// encrypts; every key, including legacy ones, is tried on decrypt so keys
// can be rotated without rewriting stored rows.
//
// A nil *Encryptor is valid and passes text through unchanged.
type Encryptor struct {
	keys []*fernet.Key
}

// NewEncryptor builds an Encryptor from the primary key and optional legacy
// keys. Keys that are not base64 fernet keys are stretched with SHA-256 so
// arbitrary secrets from existing .env files keep working.
func NewEncryptor(primary string, legacyKeys []string) (*Encryptor, error) {
	primary = strings.TrimSpace(primary)
	if primary == "" {
		return nil, errors.New("encryption key must not be empty")
	}

	keys := []*fernet.Key{deriveKey(primary)}
	for _, raw := range legacyKeys {
		if raw = strings.TrimSpace(raw); raw != "" {
			keys = append(keys, deriveKey(raw))
		}
	}
	return &Encryptor{keys: keys}, nil
}

func deriveKey(raw string) *fernet.Key {
	if k, err := fernet.DecodeKey(raw); err == nil {
		return k
	}
	sum := sha256.Sum256([]byte(raw))
	k := fernet.Key(sum)
	return &k
}

// GenerateKey returns a fresh base64 fernet key suitable for ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", err
	}
	return k.Encode(), nil
}

func (e *Encryptor) Encrypt(plain string) (string, error) {
	if e == nil {
		return plain, nil
	}
	tok, err := fernet.EncryptAndSign([]byte(plain), e.keys[0])
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

func (e *Encryptor) Decrypt(enc string) (string, error) {
	if e == nil {
		return enc, nil
	}
	if plain := fernet.VerifyAndDecrypt([]byte(enc), 0*time.Second, e.keys); plain != nil {
		return string(plain), nil
	}
	return "", errors.New("failed to decrypt message payload")
}

// DecryptOrRaw decrypts enc and falls back to the stored text for rows
// written before encryption was enabled.
func (e *Encryptor) DecryptOrRaw(enc string) string {
	plain, err := e.Decrypt(enc)
	if err != nil {
		if !looksLikeToken(enc) {
			return enc
		}
		return ""
	}
	return plain
}

func looksLikeToken(s string) bool {
	b, err := base64.URLEncoding.DecodeString(s)
	return err == nil && len(b) > 0 && b[0] == 0x80
}
