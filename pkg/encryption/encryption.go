// Package encryption provides data-at-rest encryption for EmberQL's cold
// storage tier.
//
// It implements AES-256-GCM authenticated encryption, with keys derived
// from an operator-supplied password via PBKDF2 rather than pulled from
// an external key-management service.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// versionHeaderSize is the width of the key-version prefix stored ahead
// of every ciphertext.
const versionHeaderSize = 4

// Errors
var (
	ErrInvalidKey       = errors.New("encryption: invalid key length (must be 32 bytes)")
	ErrInvalidData      = errors.New("encryption: invalid encrypted data")
	ErrDecryptionFailed = errors.New("encryption: decryption failed (authentication error)")
	ErrNoKey            = errors.New("encryption: no encryption key available")
	ErrKeyNotFound      = errors.New("encryption: key version not found")
	ErrKeyExpired       = errors.New("encryption: key has expired")
)

// Key is the AES-256 key material behind one Encryptor, tagged with the
// version number that gets written into every ciphertext it produces.
type Key struct {
	ID        uint32
	Material  []byte
	CreatedAt time.Time
	ExpiresAt time.Time // zero = never
}

// IsExpired returns true if the key has expired.
func (k *Key) IsExpired() bool {
	if k.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(k.ExpiresAt)
}

// Validate checks if the key is valid for use.
func (k *Key) Validate() error {
	if len(k.Material) != 32 {
		return ErrInvalidKey
	}
	if k.IsExpired() {
		return ErrKeyExpired
	}
	return nil
}

// Config holds encryption configuration.
type Config struct {
	Enabled       bool
	KeyDerivation KeyDerivationConfig
}

// KeyDerivationConfig configures key derivation from password.
type KeyDerivationConfig struct {
	// Salt for key derivation; should be unique per installation.
	Salt []byte

	// Iterations is the PBKDF2 round count (0 = default 600,000,
	// the OWASP 2023 recommendation for PBKDF2-HMAC-SHA256).
	Iterations int
}

// DefaultConfig returns secure default configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		KeyDerivation: KeyDerivationConfig{
			Iterations: 600000,
		},
	}
}

// Encryptor provides encryption/decryption operations for the cold tier.
//
// Data format: [4-byte key version][12-byte GCM nonce][ciphertext+tag],
// base64-encoded for string storage. When disabled, Encrypt/Decrypt are a
// plain base64 passthrough so callers don't need to branch on whether
// encryption is configured.
type Encryptor struct {
	key     *Key
	enabled bool
}

// NewEncryptor builds an Encryptor around an already-derived key. Most
// callers want NewEncryptorWithPassword instead; this constructor exists
// for tests and for callers that manage key material themselves.
func NewEncryptor(key *Key, enabled bool) *Encryptor {
	return &Encryptor{key: key, enabled: enabled}
}

// NewEncryptorWithPassword creates an encryptor with a key derived from a
// password using PBKDF2-HMAC-SHA256.
//
// The password is stretched with the configured (or default) iteration
// count into a 256-bit AES key. The salt should be unique per
// installation and persisted alongside the store it protects; reusing
// the built-in default salt is only appropriate for development.
func NewEncryptorWithPassword(password string, config Config) (*Encryptor, error) {
	if !config.Enabled {
		return &Encryptor{enabled: false}, nil
	}

	salt := config.KeyDerivation.Salt
	if len(salt) == 0 {
		salt = []byte("emberql-default-salt-change-me")
	}

	iterations := config.KeyDerivation.Iterations
	if iterations <= 0 {
		iterations = 600000
	}

	material := pbkdf2.Key([]byte(password), salt, iterations, 32, sha256.New)
	key := &Key{
		ID:        1,
		Material:  material,
		CreatedAt: time.Now().UTC(),
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	return &Encryptor{key: key, enabled: true}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM.
// Returns base64-encoded ciphertext with a key-version header.
func (e *Encryptor) Encrypt(plaintext []byte) (string, error) {
	if !e.enabled {
		return base64.StdEncoding.EncodeToString(plaintext), nil
	}
	if e.key == nil {
		return "", ErrNoKey
	}

	ciphertext, err := encrypt(plaintext, e.key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts base64-encoded ciphertext produced by Encrypt.
func (e *Encryptor) Decrypt(ciphertext string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrInvalidData
	}

	if !e.enabled {
		return data, nil
	}
	if e.key == nil {
		return nil, ErrNoKey
	}
	if len(data) < versionHeaderSize {
		return nil, ErrInvalidData
	}

	version := binary.BigEndian.Uint32(data[:versionHeaderSize])
	if version != e.key.ID {
		return nil, ErrKeyNotFound
	}

	return decrypt(data[versionHeaderSize:], e.key)
}

// EncryptString encrypts a string and returns the base64 result.
func (e *Encryptor) EncryptString(plaintext string) (string, error) {
	return e.Encrypt([]byte(plaintext))
}

// DecryptString decrypts base64 ciphertext and returns the original string.
func (e *Encryptor) DecryptString(ciphertext string) (string, error) {
	data, err := e.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsEnabled returns whether encryption is enabled.
func (e *Encryptor) IsEnabled() bool {
	return e.enabled
}

// encrypt performs AES-256-GCM encryption with key version header.
func encrypt(plaintext []byte, key *Key) ([]byte, error) {
	block, err := aes.NewCipher(key.Material)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	// Format: [4 bytes version][nonce][ciphertext]
	result := make([]byte, versionHeaderSize+len(nonce)+len(ciphertext))
	binary.BigEndian.PutUint32(result[:versionHeaderSize], key.ID)
	copy(result[versionHeaderSize:], nonce)
	copy(result[versionHeaderSize+len(nonce):], ciphertext)

	return result, nil
}

// decrypt performs AES-256-GCM decryption (without version header).
func decrypt(data []byte, key *Key) ([]byte, error) {
	block, err := aes.NewCipher(key.Material)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrInvalidData
	}

	nonce := data[:nonceSize]
	ciphertext := data[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
