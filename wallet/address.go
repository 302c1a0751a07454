package wallet

import (
	"encoding/hex"
	"strings"

	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/crypto"
)

// AddressFromPubkey derives a wallet address from an ML-DSA-87 public key:
// the lowercase hex encoding of its full 64-byte hash (spec §3 KeyEntry
// "derive an address from the public key"). Using the same width the
// script VM's HASH opcode produces lets the locking script compare
// against it directly, with no separate hash-to-address mapping to keep
// in sync.
func AddressFromPubkey(pub []byte) string {
	h := crypto.Hash512(pub)
	return hex.EncodeToString(h[:])
}

// NormalizeAddress lowercases an address for comparison, the RPC-boundary
// rule spec §4.6.3 requires so mixed-case input never misses a populated
// UTXO index.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// AddressHash decodes addr into the 64-byte commitment a LockingScriptFor
// output embeds. Returns ErrUnknownAddress for anything that isn't a
// well-formed address, rather than a raw hex-decoding error, since callers
// treat both "bad hex" and "no such key" the same way at the RPC boundary.
func AddressHash(addr string) ([64]byte, error) {
	var hash [64]byte
	b, err := hex.DecodeString(NormalizeAddress(addr))
	if err != nil || len(b) != 64 {
		return hash, ErrUnknownAddress
	}
	copy(hash[:], b)
	return hash, nil
}

// LockingScriptFor builds the pay-to-pubkey-hash style locking script for
// recipientAddress: DUP the unlocked pubkey, HASH it, compare against the
// address, and only run CHECKSIG against the matching branch. This is the
// standard spend target the wallet package produces and recognizes; it is
// built entirely from the fixed opcode set spec §4.4 rule 5 allows (there
// is no OP_VERIFY, so the branch is expressed with IF/ELSE instead of
// Bitcoin's OP_EQUALVERIFY OP_CHECKSIG).
func LockingScriptFor(addressHash [64]byte) ([]byte, error) {
	script := make([]byte, 0, 16+len(addressHash))
	script = append(script, byte(consensus.OpDup), byte(consensus.OpHash))
	script = append(script, consensus.PushData(addressHash[:])...)
	script = append(script, byte(consensus.OpEqual), byte(consensus.OpIf), byte(consensus.OpCheckSig), byte(consensus.OpElse))
	script = append(script, consensus.PushData([]byte{0})...)
	script = append(script, byte(consensus.OpEndIf))
	return script, nil
}

// UnlockingScriptFor builds the unlocking script a spender supplies: just
// the spending public key, which LockingScriptFor's DUP/HASH branch
// verifies against the output's address commitment before CHECKSIG runs.
func UnlockingScriptFor(pub []byte) []byte {
	return consensus.PushData(pub)
}

// addressHashFromLockingScript extracts the address-commitment hash a
// LockingScriptFor output embeds, by checking the fixed prefix/suffix the
// wallet package always produces and slicing out the pushed literal in
// between. Scripts not shaped this way (foreign locking scripts the
// wallet doesn't recognize) return ok=false.
func addressHashFromLockingScript(script []byte) (hash [64]byte, ok bool) {
	const prefixLen = 2 // OpDup, OpHash
	if len(script) < prefixLen+2 {
		return hash, false
	}
	if script[0] != byte(consensus.OpDup) || script[1] != byte(consensus.OpHash) {
		return hash, false
	}
	rest := script[prefixLen:]
	n, consumed, ok2 := readPushLen(rest)
	if !ok2 || n != 64 {
		return hash, false
	}
	if consumed+n > len(rest) {
		return hash, false
	}
	copy(hash[:], rest[consumed:consumed+n])
	return hash, true
}

// readPushLen reads the length of a PUSH opcode's payload from b, which
// must begin with the OpPush tag byte. Mirrors consensus.PushData's
// encoding (it has no exported decoder since only the VM itself needs
// one internally).
func readPushLen(b []byte) (n int, consumed int, ok bool) {
	if len(b) == 0 || b[0] != byte(consensus.OpPush) {
		return 0, 0, false
	}
	b = b[1:]
	if len(b) == 0 {
		return 0, 0, false
	}
	switch {
	case b[0] < 0xfd:
		return int(b[0]), 2, true
	case b[0] == 0xfd:
		if len(b) < 3 {
			return 0, 0, false
		}
		return int(b[1]) | int(b[2])<<8, 4, true
	default:
		return 0, 0, false
	}
}

// OwnsScript reports whether lockingScript pays to one of the addresses in
// owned, returning the matching address in its normalized form.
func OwnsScript(lockingScript []byte, owned map[string]struct{}) (string, bool) {
	hash, ok := addressHashFromLockingScript(lockingScript)
	if !ok {
		return "", false
	}
	addr := hex.EncodeToString(hash[:])
	if _, present := owned[addr]; present {
		return addr, true
	}
	return "", false
}
