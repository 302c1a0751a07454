package miner

import (
	"testing"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/mempool"
)

func TestBuildTemplateEmptyMempoolPaysOnlySubsidy(t *testing.T) {
	db, p := freshGenesisDB(t)
	_, addr := freshWalletAddress(t)
	pool := mempool.New(p, db.UTXOView(), db.Manifest().TipHeight, 0)

	tmpl, err := BuildTemplate(p, db, pool, addr, p.GenesisTimestamp+1)
	if err != nil {
		t.Fatalf("BuildTemplate: %v", err)
	}
	if tmpl.Height != 1 {
		t.Fatalf("height = %d, want 1", tmpl.Height)
	}
	if tmpl.Fees != 0 {
		t.Fatalf("fees = %d, want 0", tmpl.Fees)
	}
	if len(tmpl.Transactions) != 1 {
		t.Fatalf("tx count = %d, want 1 (coinbase only)", len(tmpl.Transactions))
	}
	want := consensus.Subsidy(p, 1)
	if got := tmpl.Transactions[0].Outputs[0].Amount; got != want {
		t.Fatalf("coinbase amount = %d, want %d", got, want)
	}
	root, err := consensus.BlockMerkleRoot(tmpl.Transactions)
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Header.MerkleRoot != root {
		t.Fatal("template merkle root does not match its own transaction list")
	}
}

func TestBuildTemplateRejectsUninitializedChain(t *testing.T) {
	p := chainparams.RegtestParams()
	db := openTestDB(t)
	pool := mempool.New(p, db.UTXOView(), 0, 0)
	if _, err := BuildTemplate(p, db, pool, "00", 0); err == nil {
		t.Fatal("expected an error building a template with no genesis applied")
	}
}

func TestBuildTemplateBumpsTimestampPastMedianTimePast(t *testing.T) {
	db, p := freshGenesisDB(t)
	_, addr := freshWalletAddress(t)
	pool := mempool.New(p, db.UTXOView(), db.Manifest().TipHeight, 0)

	// nowUnix at or before the genesis timestamp (the only ancestor, so it
	// is also the median-time-past) must be bumped forward.
	tmpl, err := BuildTemplate(p, db, pool, addr, p.GenesisTimestamp)
	if err != nil {
		t.Fatalf("BuildTemplate: %v", err)
	}
	if tmpl.Header.Timestamp <= p.GenesisTimestamp {
		t.Fatalf("timestamp = %d, want > genesis timestamp %d", tmpl.Header.Timestamp, p.GenesisTimestamp)
	}
}

func TestNextBitsHoldsSteadyBeforeRetargetBoundary(t *testing.T) {
	db, p := freshGenesisDB(t)
	tip, ok, err := db.TipHeader()
	if err != nil || !ok {
		t.Fatalf("TipHeader: ok=%v err=%v", ok, err)
	}
	// Height 1 is never a retarget boundary for any interval > 1.
	bits, err := nextBits(p, db, 0, tip)
	if err != nil {
		t.Fatalf("nextBits: %v", err)
	}
	if bits != tip.Bits {
		t.Fatalf("bits = %#x, want unchanged tip bits %#x", bits, tip.Bits)
	}
}
