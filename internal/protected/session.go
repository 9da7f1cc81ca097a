// Package protected implements the protected-session provider: an opaque
// decrypt capability over protected note content. Content is sealed with
// AES-GCM under a key derived from the session passphrase via scrypt.
package protected

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// Session exposes the protected-content capability consumed by the search
// engine. A nil or unavailable session means protected notes are skipped.
type Session interface {
	IsAvailable() bool
	Decrypt(blob []byte) (string, error)
}

// scrypt parameters; interactive-login strength.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
	keyLen  = 32
)

type session struct {
	key []byte
}

// NewSession derives a session key from the passphrase. An empty passphrase
// yields an unavailable session.
func NewSession(passphrase string, salt []byte) (Session, error) {
	if passphrase == "" {
		return unavailable{}, nil
	}
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("protected: derive key: %w", err)
	}
	return &session{key: key}, nil
}

func (s *session) IsAvailable() bool { return true }

// Decrypt opens an AES-GCM sealed blob (nonce-prefixed).
func (s *session) Decrypt(blob []byte) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("protected: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("protected: gcm: %w", err)
	}
	if len(blob) < gcm.NonceSize() {
		return "", fmt.Errorf("protected: blob too short")
	}
	nonce, sealed := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("protected: open: %w", err)
	}
	return string(plain), nil
}

// Encrypt seals plaintext for storage. Used by the note service when a
// protected note is written.
func (s *session) Encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("protected: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("protected: gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("protected: nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

// Encrypter is implemented by sessions that can also seal content.
type Encrypter interface {
	Encrypt(plain []byte) ([]byte, error)
}

type unavailable struct{}

func (unavailable) IsAvailable() bool { return false }

func (unavailable) Decrypt([]byte) (string, error) {
	return "", fmt.Errorf("protected: session not available")
}

// Unavailable returns a session with no decrypt capability.
func Unavailable() Session { return unavailable{} }
