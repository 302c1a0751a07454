package wallet

import "github.com/btpc-network/btpc/crypto"

// signWithSeed re-derives the ML-DSA-87 keypair from seed and signs
// digest, returning the packed public key (for the unlocking script) and
// the detached signature. The keypair is zeroized before returning; only
// its already-copied public key and signature bytes survive (spec §4.6.1
// "reconstruct the keypair via its seed").
func signWithSeed(seed []byte, digest [64]byte) (pubkey []byte, sig []byte, err error) {
	if len(seed) != crypto.SeedSize {
		return nil, nil, ErrMissingSeed
	}
	var seedArr [crypto.SeedSize]byte
	copy(seedArr[:], seed)

	kp, err := crypto.DeriveKeypair(seedArr)
	if err != nil {
		return nil, nil, err
	}
	defer kp.Zeroize()

	sig, err = kp.Sign(digest)
	if err != nil {
		return nil, nil, err
	}
	return append([]byte(nil), kp.PublicKey...), sig, nil
}
