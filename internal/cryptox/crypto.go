// Package cryptox implements the symmetric encryption helper used to store
// third-party secrets at rest, plus one-way hashing and random string
// helpers shared by the server.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyDerivationLabel seeds the fixed PBKDF2 salt.
	KeyDerivationLabel = "profolio-encryption-salt"
	// KeyDerivationIterations is the PBKDF2 iteration count.
	KeyDerivationIterations = 100_000

	keySize = 32
	ivSize  = 16
	tagSize = 16
)

var (
	// ErrEncryptFailed is the only error Encrypt reports to callers.
	ErrEncryptFailed = errors.New("failed to encrypt data")
	// ErrDecryptFailed is returned for malformed input, wrong key or a
	// failed authentication tag check.
	ErrDecryptFailed = errors.New("failed to decrypt data")
	// ErrEmptyPassphrase is returned by NewEncryptor for an empty passphrase.
	ErrEmptyPassphrase = errors.New("encryption passphrase is empty")
)

// DeriveKey stretches passphrase into a 256-bit AES key with
// PBKDF2-HMAC-SHA256 over a salt derived from KeyDerivationLabel.
func DeriveKey(passphrase []byte) []byte {
	salt := sha256.Sum256([]byte(KeyDerivationLabel))
	return pbkdf2.Key(passphrase, salt[:], KeyDerivationIterations, keySize, sha256.New)
}

// Encryptor performs AES-256-GCM encryption with a key derived once at
// construction. It is immutable and safe for concurrent use.
type Encryptor struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewEncryptor derives the key from passphrase and prepares the cipher.
// Key derivation is deliberately slow, so build one Encryptor per process.
func NewEncryptor(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	key := DeriveKey([]byte(passphrase))
	defer WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, err
	}

	return &Encryptor{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext and returns base64(iv || tag || ciphertext).
//
// A fresh random 16-byte IV is generated for every call, so encrypting the
// same plaintext twice yields different outputs. Any internal failure is
// reported as ErrEncryptFailed without further detail.
//
// Example:
//
//	enc, err := cryptox.NewEncryptor(os.Getenv("ENCRYPTION_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stored, err := enc.Encrypt("sk_test_12345")
//	if err != nil {
//	    log.Fatal(err)
//	}
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(e.rand, iv); err != nil {
		return "", ErrEncryptFailed
	}

	// Seal appends the tag after the ciphertext.
	sealed := e.aead.Seal(nil, iv, []byte(plaintext), nil)
	if len(sealed) < tagSize {
		return "", ErrEncryptFailed
	}
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	buf := make([]byte, 0, ivSize+tagSize+len(ciphertext))
	buf = append(buf, iv...)
	buf = append(buf, tag...)
	buf = append(buf, ciphertext...)

	return base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt reverses Encrypt. The buffer is split at fixed offsets into iv,
// tag and ciphertext; if the tag does not verify the call fails with
// ErrDecryptFailed and no plaintext is returned.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(data) < ivSize+tagSize {
		return "", ErrDecryptFailed
	}

	iv := data[:ivSize]
	tag := data[ivSize : ivSize+tagSize]
	ciphertext := data[ivSize+tagSize:]

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := e.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}
