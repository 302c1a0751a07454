package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters, per spec §3 EncryptedWalletFile: memory >= 64 MiB,
// iterations >= 3, parallelism >= 4.
const (
	Argon2Memory      = 64 * 1024 // KiB
	Argon2Iterations  = 3
	Argon2Parallelism = 4
	Argon2KeyLen      = 32

	SaltSize  = 16
	NonceSize = 12
)

// DeriveAEADKey runs Argon2id(password, salt) to produce a 32-byte
// AES-256-GCM key.
func DeriveAEADKey(password []byte, salt [SaltSize]byte) [Argon2KeyLen]byte {
	derived := argon2.IDKey(password, salt[:], Argon2Iterations, Argon2Memory, Argon2Parallelism, Argon2KeyLen)
	var out [Argon2KeyLen]byte
	copy(out[:], derived)
	return out
}

// NewSalt draws a fresh random 16-byte Argon2id salt.
func NewSalt() ([SaltSize]byte, error) {
	var salt [SaltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return salt, fmt.Errorf("crypto: generate salt: %w", err)
	}
	return salt, nil
}

// NewNonce draws a fresh random 12-byte AES-256-GCM nonce.
func NewNonce() ([NonceSize]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	return nonce, nil
}

// SealGCM encrypts plaintext under key/nonce with AES-256-GCM, returning
// ciphertext with the 16-byte authentication tag appended.
func SealGCM(key [Argon2KeyLen]byte, nonce [NonceSize]byte, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce[:], plaintext, nil), nil
}

// OpenGCM decrypts and authenticates ciphertext produced by SealGCM. A tag
// mismatch (wrong password) returns a non-nil error; the wallet package maps
// any OpenGCM failure to ErrDecryptionFailed.
func OpenGCM(key [Argon2KeyLen]byte, nonce [NonceSize]byte, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce[:], ciphertext, nil)
}

func newGCM(key [Argon2KeyLen]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return gcm, nil
}

// Zeroize overwrites b with zero bytes in place. Used on seed buffers,
// private-key bytes, and derived AEAD keys once they are no longer needed.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
