package consensus

import "github.com/btpc-network/btpc/crypto"

// MerkleRoot computes the SHA-512 Merkle root over an ordered list of
// transaction ids (spec §3: "Merkle root covers the transaction list").
// A lone, unpaired node at any level is promoted unchanged to the next
// level rather than duplicated, avoiding the duplicate-leaf forgery class
// of bug the Bitcoin-family "CVE-2012-2459" hardening addresses.
func MerkleRoot(txids [][64]byte) ([64]byte, error) {
	if len(txids) == 0 {
		return [64]byte{}, newErr(ErrMerkleInvalid, "merkle: empty transaction list")
	}
	level := make([][64]byte, len(txids))
	copy(level, txids)

	for len(level) > 1 {
		next := make([][64]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i == len(level)-1 {
				next = append(next, level[i])
				continue
			}
			var buf [128]byte
			copy(buf[:64], level[i][:])
			copy(buf[64:], level[i+1][:])
			next = append(next, crypto.Hash512(buf[:]))
		}
		level = next
	}
	return level[0], nil
}

// BlockMerkleRoot is MerkleRoot applied to a block's transactions in order.
func BlockMerkleRoot(txs []Tx) ([64]byte, error) {
	ids := make([][64]byte, len(txs))
	for i, tx := range txs {
		ids[i] = TxID(tx)
	}
	return MerkleRoot(ids)
}
