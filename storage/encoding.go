package storage

import (
	"fmt"

	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/crypto"
	"github.com/btpc-network/btpc/wire"
)

// outpointKeyLen is the fixed bbolt key width for the utxo bucket: a
// 64-byte txid followed by a 4-byte little-endian vout.
const outpointKeyLen = 64 + 4

func encodeOutpointKey(p consensus.OutPoint) []byte {
	w := wire.NewWriter(outpointKeyLen)
	w.WriteFixed(p.Txid[:])
	w.WriteU32(p.Vout)
	return w.Bytes()
}

func decodeOutpointKey(b []byte) (consensus.OutPoint, error) {
	if len(b) != outpointKeyLen {
		return consensus.OutPoint{}, fmt.Errorf("storage: outpoint key wrong length %d", len(b))
	}
	c := wire.NewCursor(b)
	var txid [64]byte
	if err := c.ReadFixed(txid[:]); err != nil {
		return consensus.OutPoint{}, err
	}
	vout, err := c.ReadU32()
	if err != nil {
		return consensus.OutPoint{}, err
	}
	return consensus.OutPoint{Txid: txid, Vout: vout}, nil
}

// scriptIndexKeyLen is the fixed bbolt key width for the utxo-by-script
// index: a 64-byte locking-script hash followed by the 68-byte outpoint
// key. Hashing the script first (rather than using it directly as a
// variable-length prefix) keeps keys fixed-width and avoids one script
// ever being a byte-prefix of another, which would otherwise corrupt a
// prefix scan.
const scriptIndexKeyLen = 64 + outpointKeyLen

func scriptIndexKey(lockingScript []byte, op consensus.OutPoint) []byte {
	h := crypto.Hash512(lockingScript)
	key := make([]byte, 0, scriptIndexKeyLen)
	key = append(key, h[:]...)
	key = append(key, encodeOutpointKey(op)...)
	return key
}

func scriptIndexPrefix(lockingScript []byte) []byte {
	h := crypto.Hash512(lockingScript)
	return append([]byte(nil), h[:]...)
}

// encodeUTXOEntry serializes a consensus.UTXOEntry for persistence:
// amount u64le | locking_script CompactSize-prefixed | height_created u64le | is_coinbase u8.
// This is a storage-engineering format, not a consensus wire format.
func encodeUTXOEntry(e consensus.UTXOEntry) []byte {
	w := wire.NewWriter(8 + 2 + len(e.LockingScript) + 8 + 1)
	w.WriteU64(e.Amount)
	w.WriteVarBytes(e.LockingScript)
	w.WriteU64(e.HeightCreated)
	if e.IsCoinbase {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
	return w.Bytes()
}

func decodeUTXOEntry(b []byte) (consensus.UTXOEntry, error) {
	c := wire.NewCursor(b)
	amount, err := c.ReadU64()
	if err != nil {
		return consensus.UTXOEntry{}, err
	}
	n, err := c.ReadCompactLen(consensus.MaxScriptBytes)
	if err != nil {
		return consensus.UTXOEntry{}, err
	}
	script, err := c.ReadBytes(n)
	if err != nil {
		return consensus.UTXOEntry{}, err
	}
	height, err := c.ReadU64()
	if err != nil {
		return consensus.UTXOEntry{}, err
	}
	coinbaseByte, err := c.ReadU8()
	if err != nil {
		return consensus.UTXOEntry{}, err
	}
	if !c.Done() {
		return consensus.UTXOEntry{}, fmt.Errorf("storage: utxo entry has trailing bytes")
	}
	return consensus.UTXOEntry{
		Amount:        amount,
		LockingScript: script,
		HeightCreated: height,
		IsCoinbase:    coinbaseByte != 0,
	}, nil
}

// TxLocation records where a confirmed transaction lives, supporting the
// transactions column family spec §4.2 requires for tx-by-id lookup.
type TxLocation struct {
	BlockHash [64]byte
	Index     uint32
}

func encodeTxLocation(l TxLocation) []byte {
	w := wire.NewWriter(64 + 4)
	w.WriteFixed(l.BlockHash[:])
	w.WriteU32(l.Index)
	return w.Bytes()
}

func decodeTxLocation(b []byte) (TxLocation, error) {
	c := wire.NewCursor(b)
	var hash [64]byte
	if err := c.ReadFixed(hash[:]); err != nil {
		return TxLocation{}, err
	}
	idx, err := c.ReadU32()
	if err != nil {
		return TxLocation{}, err
	}
	if !c.Done() {
		return TxLocation{}, fmt.Errorf("storage: tx location has trailing bytes")
	}
	return TxLocation{BlockHash: hash, Index: idx}, nil
}
