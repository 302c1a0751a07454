package rpcserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/mempool"
	"github.com/btpc-network/btpc/miner"
	"github.com/btpc-network/btpc/storage"
	"github.com/btpc-network/btpc/utxo"
)

// coinbaseBlockWithScript mirrors storage_test.go's helper of the same
// name: a single-coinbase block paying amount to an arbitrary locking
// script, with no other transactions.
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

// newTestServer opens a fresh regtest DB in a temp dir, mines a genesis
// block, and wires a Server exactly the way cmd/btpcd's startup will
// (spec §8 scenario 1's regtest bring-up, exercised here at the RPC
// layer instead of a standalone binary).
func newTestServer(t *testing.T) *Server {
	t.Helper()
	p := chainparams.RegtestParams()
	dir := t.TempDir()
	db, err := storage.Open(dir, "regtest")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	genesis := coinbaseBlockWithScript(t, p, [64]byte{}, p.GenesisTimestamp, 0, []byte{1})
	if err := db.InitGenesis(p, genesis); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}

	pool := mempool.New(p, db.UTXOView(), db.Manifest().TipHeight, 0)
	m := miner.New(p, db, pool)
	reservations := utxo.NewManager(db.UTXOView())

	srv, err := NewServer(Deps{
		Params:  p,
		DataDir: dir,
		DB:      db,
		Pool:    pool,
		UTXOs:   reservations,
		Miner:   m,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

// call invokes method through the same dispatch path ServeHTTP uses,
// without going over the wire, and decodes the result into out (if
// non-nil).
func call(t *testing.T, s *Server, method string, params any, out any) *Response {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		raw = b
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp := s.dispatch(ctx, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: method, Params: raw})
	if out != nil && resp.Result != nil {
		b, err := json.Marshal(resp.Result)
		if err != nil {
			t.Fatalf("re-marshal result: %v", err)
		}
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("unmarshal result into %T: %v", out, err)
		}
	}
	return &resp
}

func mustNotError(t *testing.T, resp *Response) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected RPC error: %+v", resp.Error)
	}
}
