package node

import (
	"context"
	"testing"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
)

func TestGenesisBlockSatisfiesItsOwnProofOfWork(t *testing.T) {
	p := chainparams.RegtestParams()
	blk, err := GenesisBlock(context.Background(), p)
	if err != nil {
		t.Fatalf("GenesisBlock: %v", err)
	}
	if err := consensus.PowCheck(blk.Header); err != nil {
		t.Fatalf("PowCheck: %v", err)
	}
	if !blk.Transactions[0].IsCoinbase() {
		t.Fatal("genesis block's first transaction must be a coinbase")
	}
}

func TestGenesisBlockIsDeterministic(t *testing.T) {
	p := chainparams.RegtestParams()
	a, err := GenesisBlock(context.Background(), p)
	if err != nil {
		t.Fatalf("GenesisBlock (a): %v", err)
	}
	b, err := GenesisBlock(context.Background(), p)
	if err != nil {
		t.Fatalf("GenesisBlock (b): %v", err)
	}
	if consensus.BlockHash(a.Header) != consensus.BlockHash(b.Header) {
		t.Fatal("GenesisBlock must be deterministic for a given network's params")
	}
}
