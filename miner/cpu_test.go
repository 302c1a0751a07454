package miner

import (
	"context"
	"testing"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
)

func easyHeader() consensus.BlockHeader {
	p := chainparams.RegtestParams()
	return consensus.BlockHeader{
		Version:   1,
		Timestamp: p.GenesisTimestamp,
		Bits:      p.MinDifficultyBits,
	}
}

func TestSearchCPUFindsSolutionAtRegtestDifficulty(t *testing.T) {
	h, ok, err := SearchCPU(context.Background(), easyHeader(), 0)
	if err != nil {
		t.Fatalf("SearchCPU: %v", err)
	}
	if !ok {
		t.Fatal("expected a solution at trivial regtest difficulty")
	}
	if err := consensus.PowCheck(h); err != nil {
		t.Fatalf("solved header fails PowCheck: %v", err)
	}
}

func TestSearchCPUParallelFindsSolution(t *testing.T) {
	h, ok, err := SearchCPUParallel(context.Background(), easyHeader(), 4)
	if err != nil {
		t.Fatalf("SearchCPUParallel: %v", err)
	}
	if !ok {
		t.Fatal("expected a solution at trivial regtest difficulty")
	}
	if err := consensus.PowCheck(h); err != nil {
		t.Fatalf("solved header fails PowCheck: %v", err)
	}
}

func TestSearchCPUParallelSingleThreadDelegatesToSearchCPU(t *testing.T) {
	h, ok, err := SearchCPUParallel(context.Background(), easyHeader(), 1)
	if err != nil || !ok {
		t.Fatalf("SearchCPUParallel(threads=1): ok=%v err=%v", ok, err)
	}
	if err := consensus.PowCheck(h); err != nil {
		t.Fatalf("solved header fails PowCheck: %v", err)
	}
}

func TestSearchCPURespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// ctx.Done() is checked before the first PowCheck, so an
	// already-cancelled context returns immediately regardless of header.
	if _, _, err := SearchCPU(ctx, easyHeader(), 0); err == nil {
		t.Fatal("expected an error from an already-cancelled search")
	}
}
