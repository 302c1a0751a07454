package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode5"
)

// Sizes of the ML-DSA-87 (FIPS 204, security category 5; circl names the
// scheme "dilithium mode5") key material, matching spec §6.
const (
	SeedSize      = mode5.SeedSize
	PublicKeySize = mode5.PublicKeySize
	SignatureSize = mode5.SignatureSize
)

// KeyPair is a reconstructed ML-DSA-87 signing keypair. The opaque signing
// object inside circl's PrivateKey cannot be rebuilt from its packed bytes
// alone in every circl version we might link against, so KeyPair always
// retains the seed it was derived from; callers rebuild the keypair from
// that seed with DeriveKeypair when they need it.
type KeyPair struct {
	Seed       [SeedSize]byte
	PublicKey  []byte
	PrivateKey *mode5.PrivateKey
	pub        *mode5.PublicKey
}

// GenerateSeed draws SeedSize cryptographically random bytes.
func GenerateSeed() ([SeedSize]byte, error) {
	var seed [SeedSize]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return seed, fmt.Errorf("crypto: generate seed: %w", err)
	}
	return seed, nil
}

// DeriveKeypair deterministically reconstructs the ML-DSA-87 keypair from a
// 32-byte seed. The same seed always yields the same keypair.
func DeriveKeypair(seed [SeedSize]byte) (*KeyPair, error) {
	pub, priv := mode5.NewKeyFromSeed(&seed)
	pubBytes := make([]byte, PublicKeySize)
	pub.Pack(pubBytes)
	kp := &KeyPair{
		Seed:       seed,
		PublicKey:  pubBytes,
		PrivateKey: priv,
		pub:        pub,
	}
	return kp, nil
}

// Sign produces a detached ML-DSA-87 signature over digest.
func (kp *KeyPair) Sign(digest [64]byte) ([]byte, error) {
	if kp == nil || kp.PrivateKey == nil {
		return nil, errors.New("crypto: keypair has no private key material")
	}
	sig := make([]byte, SignatureSize)
	mode5.SignTo(kp.PrivateKey, digest[:], sig)
	return sig, nil
}

// Zeroize wipes the seed and any recoverable private-key bytes. Callers must
// invoke this when a KeyPair is no longer needed (wallet lock, process exit).
func (kp *KeyPair) Zeroize() {
	if kp == nil {
		return
	}
	for i := range kp.Seed {
		kp.Seed[i] = 0
	}
	if kp.PrivateKey != nil {
		*kp.PrivateKey = mode5.PrivateKey{}
	}
	kp.PrivateKey = nil
	kp.pub = nil
}

// VerifyMLDSA87 verifies a detached ML-DSA-87 signature over digest under
// the given packed public key. It never panics on malformed input: bad
// lengths simply fail verification.
func VerifyMLDSA87(pubkey []byte, sig []byte, digest [64]byte) bool {
	if len(pubkey) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	var pub mode5.PublicKey
	pub.Unpack(pubkey)
	return mode5.Verify(&pub, digest[:], sig)
}
