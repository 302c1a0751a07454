package consensus

import "github.com/btpc-network/btpc/crypto"

// BlockHash returns SHA-512 of the serialized header (spec §3).
func BlockHash(h BlockHeader) [64]byte {
	return crypto.Hash512(EncodeHeader(h))
}

// TxID returns SHA-512 of the canonical transaction serialization (spec §3).
func TxID(tx Tx) [64]byte {
	return crypto.Hash512(EncodeTx(tx))
}
