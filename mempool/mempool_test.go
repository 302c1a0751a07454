package mempool

import (
	"testing"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/crypto"
)

func testKeypair(t *testing.T) *crypto.KeyPair {
	t.Helper()
	seed, err := crypto.GenerateSeed()
	if err != nil {
		t.Fatal(err)
	}
	kp, err := crypto.DeriveKeypair(seed)
	if err != nil {
		t.Fatal(err)
	}
	return kp
}

func lockingScript(pub []byte) []byte {
	return append(consensus.PushData(pub), byte(consensus.OpCheckSig))
}

func spendTx(kp *crypto.KeyPair, spendOP consensus.OutPoint, amount uint64, tag byte) consensus.Tx {
	tx := consensus.Tx{
		Version: 1,
		Inputs:  []consensus.TxInput{{PrevOut: spendOP, Sequence: 0xffffffff}},
		Outputs: []consensus.TxOutput{{Amount: amount, LockingScript: []byte{tag}}},
	}
	sighash := consensus.Sighash(tx)
	sig, err := kp.Sign(sighash)
	if err != nil {
		panic(err)
	}
	tx.Inputs[0].Signature = sig
	return tx
}

func newTestPool(t *testing.T, view consensus.MapUTXOView) *Pool {
	t.Helper()
	p := chainparams.RegtestParams()
	return New(p, view, 100, 0)
}

func TestAcceptAdmitsSpendOfConfirmedOutput(t *testing.T) {
	kp := testKeypair(t)
	op := consensus.OutPoint{Vout: 0}
	view := consensus.MapUTXOView{op: consensus.UTXOEntry{Amount: 1000, LockingScript: lockingScript(kp.PublicKey), HeightCreated: 1}}
	pool := newTestPool(t, view)

	tx := spendTx(kp, op, 900, 1)
	entry, evicted, err := pool.Accept(tx, 1000)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(evicted) != 0 {
		t.Fatalf("expected no eviction, got %d", len(evicted))
	}
	if entry.Fee != 100 {
		t.Fatalf("fee = %d, want 100", entry.Fee)
	}
	if pool.Size() != 1 {
		t.Fatalf("pool size = %d, want 1", pool.Size())
	}
}

func TestAcceptRejectsDuplicateTx(t *testing.T) {
	kp := testKeypair(t)
	op := consensus.OutPoint{Vout: 0}
	view := consensus.MapUTXOView{op: consensus.UTXOEntry{Amount: 1000, LockingScript: lockingScript(kp.PublicKey)}}
	pool := newTestPool(t, view)

	tx := spendTx(kp, op, 900, 1)
	if _, _, err := pool.Accept(tx, 1); err != nil {
		t.Fatal(err)
	}
	if _, _, err := pool.Accept(tx, 2); err == nil {
		t.Fatal("expected second admission of the same tx to fail")
	}
}

func TestAcceptChainsOffUnconfirmedParentOutput(t *testing.T) {
	kp := testKeypair(t)
	op := consensus.OutPoint{Vout: 0}
	view := consensus.MapUTXOView{op: consensus.UTXOEntry{Amount: 1000, LockingScript: lockingScript(kp.PublicKey)}}
	pool := newTestPool(t, view)

	parent := spendTx(kp, op, 900, 1)
	parentEntry, _, err := pool.Accept(parent, 1)
	if err != nil {
		t.Fatal(err)
	}

	childOP := consensus.OutPoint{Txid: parentEntry.Txid, Vout: 0}
	child := spendTx(kp, childOP, 800, 2)
	childEntry, _, err := pool.Accept(child, 2)
	if err != nil {
		t.Fatalf("expected child spending unconfirmed parent output to be admitted: %v", err)
	}
	if _, isAncestor := childEntry.Ancestors[parentEntry.Txid]; !isAncestor {
		t.Fatal("expected parent to be tracked as an ancestor of the child")
	}
	if _, isDescendant := parentEntry.Descendants[childEntry.Txid]; !isDescendant {
		t.Fatal("expected child to be tracked as a descendant of the parent")
	}
}

func TestAcceptRejectsConflictWithoutHigherFee(t *testing.T) {
	kp := testKeypair(t)
	op := consensus.OutPoint{Vout: 0}
	view := consensus.MapUTXOView{op: consensus.UTXOEntry{Amount: 1000, LockingScript: lockingScript(kp.PublicKey)}}
	pool := newTestPool(t, view)

	first := spendTx(kp, op, 900, 1) // fee 100
	if _, _, err := pool.Accept(first, 1); err != nil {
		t.Fatal(err)
	}

	second := spendTx(kp, op, 950, 2) // fee 50, lower: should be rejected
	if _, _, err := pool.Accept(second, 2); err == nil {
		t.Fatal("expected lower-fee conflicting spend to be rejected")
	}
	if pool.Size() != 1 {
		t.Fatalf("pool size = %d, want 1 (original entry retained)", pool.Size())
	}
}

func TestAcceptReplacesConflictWithStrictlyHigherFee(t *testing.T) {
	kp := testKeypair(t)
	op := consensus.OutPoint{Vout: 0}
	view := consensus.MapUTXOView{op: consensus.UTXOEntry{Amount: 1000, LockingScript: lockingScript(kp.PublicKey)}}
	pool := newTestPool(t, view)

	first := spendTx(kp, op, 900, 1) // fee 100
	firstEntry, _, err := pool.Accept(first, 1)
	if err != nil {
		t.Fatal(err)
	}

	second := spendTx(kp, op, 500, 2) // fee 500, much higher
	_, evicted, err := pool.Accept(second, 2)
	if err != nil {
		t.Fatalf("expected higher-fee replacement to succeed: %v", err)
	}
	if len(evicted) != 1 || evicted[0].Txid != firstEntry.Txid {
		t.Fatalf("expected the original entry to be evicted, got %+v", evicted)
	}
	if pool.Size() != 1 {
		t.Fatalf("pool size = %d, want 1", pool.Size())
	}
}

func TestReplacementEvictsDescendantsOfDisplacedEntry(t *testing.T) {
	kp := testKeypair(t)
	op := consensus.OutPoint{Vout: 0}
	view := consensus.MapUTXOView{op: consensus.UTXOEntry{Amount: 1000, LockingScript: lockingScript(kp.PublicKey)}}
	pool := newTestPool(t, view)

	parent := spendTx(kp, op, 900, 1) // fee 100
	parentEntry, _, err := pool.Accept(parent, 1)
	if err != nil {
		t.Fatal(err)
	}
	childOP := consensus.OutPoint{Txid: parentEntry.Txid, Vout: 0}
	child := spendTx(kp, childOP, 800, 2)
	childEntry, _, err := pool.Accept(child, 2)
	if err != nil {
		t.Fatal(err)
	}

	replacement := spendTx(kp, op, 100, 3) // fee 900, displaces parent (and its descendant)
	_, evicted, err := pool.Accept(replacement, 3)
	if err != nil {
		t.Fatalf("expected replacement to succeed: %v", err)
	}
	evictedIDs := map[[64]byte]bool{}
	for _, e := range evicted {
		evictedIDs[e.Txid] = true
	}
	if !evictedIDs[parentEntry.Txid] || !evictedIDs[childEntry.Txid] {
		t.Fatalf("expected both parent and child to be evicted, got %+v", evicted)
	}
	if pool.Size() != 1 {
		t.Fatalf("pool size = %d, want 1", pool.Size())
	}
}

func TestSizeBoundEvictsLowestFeeRateFirst(t *testing.T) {
	kp := testKeypair(t)
	ops := make([]consensus.OutPoint, 3)
	view := make(consensus.MapUTXOView)
	for i := range ops {
		ops[i] = consensus.OutPoint{Vout: uint32(i)}
		view[ops[i]] = consensus.UTXOEntry{Amount: 1000, LockingScript: lockingScript(kp.PublicKey)}
	}
	p := chainparams.RegtestParams()

	txLow := spendTx(kp, ops[0], 999, 1)  // fee 1, lowest
	txMid := spendTx(kp, ops[1], 990, 2)  // fee 10
	txHigh := spendTx(kp, ops[2], 900, 3) // fee 100, highest

	// Cap small enough that only two of the three transactions fit.
	txSize := uint64(len(consensus.EncodeTx(txLow)))
	pool := New(p, view, 100, 2*txSize)

	if _, _, err := pool.Accept(txLow, 1); err != nil {
		t.Fatal(err)
	}
	if _, _, err := pool.Accept(txMid, 2); err != nil {
		t.Fatal(err)
	}
	_, evicted, err := pool.Accept(txHigh, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(evicted) == 0 {
		t.Fatal("expected the byte budget to force an eviction")
	}
	lowTxid := consensus.TxID(txLow)
	found := false
	for _, e := range evicted {
		if e.Txid == lowTxid {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the lowest fee-rate entry to be the one evicted")
	}
	if _, ok := pool.Get(consensus.TxID(txHigh)); !ok {
		t.Fatal("highest fee-rate entry should survive eviction")
	}
}

func TestRemoveConfirmedClearsConfirmedEntryAndKeepsOthers(t *testing.T) {
	kp := testKeypair(t)
	opA := consensus.OutPoint{Vout: 0}
	opB := consensus.OutPoint{Vout: 1}
	view := consensus.MapUTXOView{
		opA: consensus.UTXOEntry{Amount: 1000, LockingScript: lockingScript(kp.PublicKey)},
		opB: consensus.UTXOEntry{Amount: 1000, LockingScript: lockingScript(kp.PublicKey)},
	}
	pool := newTestPool(t, view)

	txA := spendTx(kp, opA, 900, 1)
	txB := spendTx(kp, opB, 900, 2)
	if _, _, err := pool.Accept(txA, 1); err != nil {
		t.Fatal(err)
	}
	if _, _, err := pool.Accept(txB, 2); err != nil {
		t.Fatal(err)
	}

	blk := consensus.Block{Transactions: []consensus.Tx{{Version: 1, Inputs: []consensus.TxInput{{PrevOut: consensus.OutPoint{Vout: consensus.CoinbasePrevoutVout}}}, Outputs: []consensus.TxOutput{{Amount: 0}}}, txA}}
	newView := consensus.MapUTXOView{opB: view[opB]}
	removed := pool.RemoveConfirmed(blk, newView, 1)

	foundA := false
	for _, e := range removed {
		if e.Txid == consensus.TxID(txA) {
			foundA = true
		}
	}
	if !foundA {
		t.Fatal("expected confirmed tx to be removed from the pool")
	}
	if _, ok := pool.Get(consensus.TxID(txB)); !ok {
		t.Fatal("unrelated unconfirmed tx should remain in the pool")
	}
}

func TestOrderedByFeeRateSortsDescending(t *testing.T) {
	kp := testKeypair(t)
	opA := consensus.OutPoint{Vout: 0}
	opB := consensus.OutPoint{Vout: 1}
	view := consensus.MapUTXOView{
		opA: consensus.UTXOEntry{Amount: 1000, LockingScript: lockingScript(kp.PublicKey)},
		opB: consensus.UTXOEntry{Amount: 1000, LockingScript: lockingScript(kp.PublicKey)},
	}
	pool := newTestPool(t, view)

	txLow := spendTx(kp, opA, 990, 1)  // fee 10
	txHigh := spendTx(kp, opB, 500, 2) // fee 500
	if _, _, err := pool.Accept(txLow, 10); err != nil {
		t.Fatal(err)
	}
	if _, _, err := pool.Accept(txHigh, 20); err != nil {
		t.Fatal(err)
	}

	ordered := pool.OrderedByFeeRate()
	if len(ordered) != 2 || ordered[0].Txid != consensus.TxID(txHigh) {
		t.Fatalf("expected highest fee-rate entry first, got %+v", ordered)
	}
}
