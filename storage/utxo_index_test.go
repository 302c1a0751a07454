package storage

import (
	"testing"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
)

func coinbaseBlockWithScript(t *testing.T, p chainparams.Params, prevHash [64]byte, timestamp uint64, amount uint64, script []byte) consensus.Block {
	t.Helper()
	coinbase := consensus.Tx{
		Version: 1,
		Inputs:  []consensus.TxInput{{PrevOut: consensus.OutPoint{Vout: consensus.CoinbasePrevoutVout}}},
		Outputs: []consensus.TxOutput{{Amount: amount, LockingScript: script}},
	}
	root, err := consensus.BlockMerkleRoot([]consensus.Tx{coinbase})
	if err != nil {
		t.Fatal(err)
	}
	return consensus.Block{
		Header: consensus.BlockHeader{
			Version:    1,
			PrevHash:   prevHash,
			MerkleRoot: root,
			Timestamp:  timestamp,
			Bits:       p.MinDifficultyBits,
		},
		Transactions: []consensus.Tx{coinbase},
	}
}

func TestUTXOsByLockingScriptFindsOnlyMatchingScript(t *testing.T) {
	db := openTestDB(t)
	p := chainparams.RegtestParams()

	scriptA := []byte("address-a-script")
	scriptB := []byte("address-b-script")

	genesis := coinbaseBlockWithScript(t, p, [64]byte{}, p.GenesisTimestamp, 0, []byte{1})
	if err := db.InitGenesis(p, genesis); err != nil {
		t.Fatal(err)
	}
	genesisHash := consensus.BlockHash(genesis.Header)

	blk1 := coinbaseBlockWithScript(t, p, genesisHash, p.GenesisTimestamp+1, consensus.Subsidy(p, 1), scriptA)
	if _, err := db.ApplyBlock(p, blk1, ApplyOptions{LocalTimeUnix: blk1.Header.Timestamp}); err != nil {
		t.Fatal(err)
	}
	blk1Hash := consensus.BlockHash(blk1.Header)

	blk2 := coinbaseBlockWithScript(t, p, blk1Hash, p.GenesisTimestamp+2, consensus.Subsidy(p, 2), scriptB)
	if _, err := db.ApplyBlock(p, blk2, ApplyOptions{LocalTimeUnix: blk2.Header.Timestamp}); err != nil {
		t.Fatal(err)
	}

	found, err := db.UTXOsByLockingScript(scriptA)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("len(found) = %d, want 1", len(found))
	}
	for _, entry := range found {
		if entry.Amount != consensus.Subsidy(p, 1) {
			t.Fatalf("amount = %d, want %d", entry.Amount, consensus.Subsidy(p, 1))
		}
	}

	foundB, err := db.UTXOsByLockingScript(scriptB)
	if err != nil {
		t.Fatal(err)
	}
	if len(foundB) != 1 {
		t.Fatalf("len(foundB) = %d, want 1", len(foundB))
	}

	foundNone, err := db.UTXOsByLockingScript([]byte("unknown-script"))
	if err != nil {
		t.Fatal(err)
	}
	if len(foundNone) != 0 {
		t.Fatalf("len(foundNone) = %d, want 0", len(foundNone))
	}
}

func TestUTXOsByLockingScriptReflectsReorgUndo(t *testing.T) {
	db := openTestDB(t)
	p := chainparams.RegtestParams()
	script := []byte("reorg-watched-script")

	genesis := coinbaseBlockWithScript(t, p, [64]byte{}, p.GenesisTimestamp, 0, []byte{1})
	if err := db.InitGenesis(p, genesis); err != nil {
		t.Fatal(err)
	}
	genesisHash := consensus.BlockHash(genesis.Header)

	blkA1 := coinbaseBlockWithScript(t, p, genesisHash, p.GenesisTimestamp+1, consensus.Subsidy(p, 1), script)
	if _, err := db.ApplyBlock(p, blkA1, ApplyOptions{LocalTimeUnix: blkA1.Header.Timestamp}); err != nil {
		t.Fatal(err)
	}

	found, err := db.UTXOsByLockingScript(script)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("len(found) after apply = %d, want 1", len(found))
	}

	blkB1 := coinbaseBlockWithScript(t, p, genesisHash, p.GenesisTimestamp+2, consensus.Subsidy(p, 1), []byte{9})
	if _, err := db.ApplyBlock(p, blkB1, ApplyOptions{LocalTimeUnix: blkB1.Header.Timestamp}); err != nil {
		t.Fatal(err)
	}
	blkB1Hash := consensus.BlockHash(blkB1.Header)
	blkB2 := coinbaseBlockWithScript(t, p, blkB1Hash, p.GenesisTimestamp+3, consensus.Subsidy(p, 2), []byte{9})
	decision, err := db.ApplyBlock(p, blkB2, ApplyOptions{LocalTimeUnix: blkB2.Header.Timestamp})
	if err != nil {
		t.Fatal(err)
	}
	if decision != ApplyTriggeredReorg {
		t.Fatalf("decision = %v, want ApplyTriggeredReorg", decision)
	}

	foundAfterReorg, err := db.UTXOsByLockingScript(script)
	if err != nil {
		t.Fatal(err)
	}
	if len(foundAfterReorg) != 0 {
		t.Fatalf("len(foundAfterReorg) = %d, want 0 once the A-branch coinbase is disconnected", len(foundAfterReorg))
	}
}
