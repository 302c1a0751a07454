package consensus

import (
	"testing"

	"github.com/btpc-network/btpc/crypto"
)

func leafTx(tag byte) Tx {
	return Tx{
		Version: 1,
		Inputs: []TxInput{{
			PrevOut:         OutPoint{Vout: uint32(tag)},
			UnlockingScript: []byte{tag},
		}},
		Outputs: []TxOutput{{Amount: uint64(tag) + 1, LockingScript: []byte{tag}}},
	}
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	tx := leafTx(1)
	root, err := BlockMerkleRoot([]Tx{tx})
	if err != nil {
		t.Fatal(err)
	}
	if root != TxID(tx) {
		t.Fatal("single-tx merkle root must equal the txid")
	}
}

func TestMerkleRootOddCountPromotesUnchanged(t *testing.T) {
	txs := []Tx{leafTx(1), leafTx(2), leafTx(3)}
	ids := [][64]byte{TxID(txs[0]), TxID(txs[1]), TxID(txs[2])}

	got, err := MerkleRoot(ids)
	if err != nil {
		t.Fatal(err)
	}

	var buf [128]byte
	copy(buf[:64], ids[0][:])
	copy(buf[64:], ids[1][:])
	level1 := crypto.Hash512(buf[:])
	// odd node (ids[2]) promoted unchanged to next level
	var buf2 [128]byte
	copy(buf2[:64], level1[:])
	copy(buf2[64:], ids[2][:])
	want := crypto.Hash512(buf2[:])

	if got != want {
		t.Fatal("odd-node promotion did not match expected hashing order")
	}
}

func TestMerkleRootEmptyRejected(t *testing.T) {
	if _, err := MerkleRoot(nil); err == nil {
		t.Fatal("expected error for empty transaction list")
	}
}

func TestMerkleRootDeterministic(t *testing.T) {
	txs := []Tx{leafTx(1), leafTx(2), leafTx(3), leafTx(4)}
	r1, err := BlockMerkleRoot(txs)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := BlockMerkleRoot(txs)
	if err != nil {
		t.Fatal(err)
	}
	if r1 != r2 {
		t.Fatal("merkle root not deterministic")
	}
}
