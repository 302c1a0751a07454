// Package crypto provides the primitives the rest of the node builds on:
// SHA-512 digests, the ML-DSA-87 post-quantum signature scheme, AES-256-GCM
// authenticated encryption, and Argon2id key derivation.
package crypto

import "crypto/sha512"

// Hash512 returns the SHA-512 digest of b. Every hashed structure in the
// protocol (block headers, transactions, Merkle nodes) uses this digest.
func Hash512(b []byte) [64]byte {
	return sha512.Sum512(b)
}
