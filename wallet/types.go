package wallet

import "github.com/btpc-network/btpc/crypto"

// KeyEntry is one managed signing key (spec §3 KeyEntry). Seed and
// PrivateKeyBytes are the sensitive fields: Manager.Lock zeroizes both.
// Seed may be absent on an entry restored from a legacy blob that never
// captured it; such an entry is read-only (spec §4.6.1 "Load").
type KeyEntry struct {
	Seed            []byte `json:"seed,omitempty"`
	PrivateKeyBytes []byte `json:"private_key_bytes,omitempty"`
	PublicKeyBytes  []byte `json:"public_key_bytes"`
	Address         string `json:"address"`
}

// CanSign reports whether the entry retains enough material to
// re-derive a signing keypair (spec §4.6.1: seed-based regeneration is
// the only reliable reconstruction path for this PQ scheme's opaque
// private-key object).
func (k *KeyEntry) CanSign() bool {
	return len(k.Seed) == crypto.SeedSize
}

// zeroize wipes the entry's sensitive buffers in place.
func (k *KeyEntry) zeroize() {
	crypto.Zeroize(k.Seed)
	crypto.Zeroize(k.PrivateKeyBytes)
}

// WalletData is the plaintext record an EncryptedWalletFile's ciphertext
// decrypts to (spec §3 "Wallet record").
type WalletData struct {
	WalletID string      `json:"wallet_id"`
	Network  string      `json:"network"`
	Keys     []*KeyEntry `json:"keys"`
}
