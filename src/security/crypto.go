package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	ErrInvalidKey        = errors.New("credentials key must be 32 bytes, base64 encoded")
	ErrInvalidCiphertext = errors.New("invalid credentials ciphertext")
)

// EncryptString seals plain with the configured key. The result is
// base64(nonce || box).
func EncryptString(plain string) (string, error) {
	key, err := loadKey(GetConfig().CredentialsKey)
	if err != nil {
		return "", err
	}
	return encrypt(key, plain)
}

// DecryptString opens a value produced by EncryptString.
func DecryptString(sealed string) (string, error) {
	key, err := loadKey(GetConfig().CredentialsKey)
	if err != nil {
		return "", err
	}
	return decrypt(key, sealed)
}

func loadKey(encoded string) (*[keySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidKey
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

func encrypt(key *[keySize]byte, plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, key)
	return base64.StdEncoding.EncodeToString(box), nil
}

func decrypt(key *[keySize]byte, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidCiphertext
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, key)
	if !ok {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}
