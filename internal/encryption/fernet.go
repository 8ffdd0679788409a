// Package encryption decrypts secrets supplied to Sadhana as Fernet tokens.
package encryption

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fernet/fernet-go"
)

// ErrNoKey is returned when a sealed secret is configured without a key.
var ErrNoKey = errors.New("encryption key is empty")

// Encryptor seals and opens secrets with a Fernet key.
type Encryptor struct {
	key *fernet.Key
}

// NewEncryptor parses a URL-safe base64-encoded 32-byte key.
func NewEncryptor(keyStr string) (*Encryptor, error) {
	keyStr = strings.TrimSpace(keyStr)
	if keyStr == "" {
		return nil, ErrNoKey
	}

	k, err := fernet.DecodeKey(keyStr)
	if err != nil {
		return nil, fmt.Errorf("decoding fernet key: %w", err)
	}
	return &Encryptor{key: k}, nil
}

// GenerateKey returns a new random key in its encoded form.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return k.Encode(), nil
}

// Encrypt seals plaintext into a Fernet token.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), e.key)
	if err != nil {
		return "", fmt.Errorf("encrypting: %w", err)
	}
	return string(tok), nil
}

// Decrypt opens a Fernet token. Tokens never expire.
func (e *Encryptor) Decrypt(token string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(strings.TrimSpace(token)), 0, []*fernet.Key{e.key})
	if msg == nil {
		return "", fmt.Errorf("decryption failed: invalid token or key")
	}
	return string(msg), nil
}

// ResolveSecret returns plain when sealed is empty, otherwise the decrypted
// form of sealed using key.
func ResolveSecret(plain, sealed, key string) (string, error) {
	if strings.TrimSpace(sealed) == "" {
		return plain, nil
	}
	enc, err := NewEncryptor(key)
	if err != nil {
		return "", fmt.Errorf("opening sealed secret: %w", err)
	}
	return enc.Decrypt(sealed)
}
