package miner

import (
	"context"
	"testing"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/mempool"
	"github.com/btpc-network/btpc/utxo"
	"github.com/btpc-network/btpc/wallet"
)

func TestMineNAdvancesTipByExactlyN(t *testing.T) {
	db, p := freshGenesisDB(t)
	_, addr := freshWalletAddress(t)
	pool := mempool.New(p, db.UTXOView(), db.Manifest().TipHeight, 0)
	m := New(p, db, pool)

	ts := p.GenesisTimestamp + 1
	cfg := Config{PayoutAddress: addr, Threads: 2, TimestampSource: func() uint64 { v := ts; ts++; return v }}

	const n = 5
	results, err := m.MineN(context.Background(), n, cfg)
	if err != nil {
		t.Fatalf("MineN: %v", err)
	}
	if len(results) != n {
		t.Fatalf("got %d results, want %d", len(results), n)
	}
	if db.Manifest().TipHeight != n {
		t.Fatalf("tip height = %d, want %d", db.Manifest().TipHeight, n)
	}
	for i, r := range results {
		if r.Height != uint64(i+1) {
			t.Fatalf("results[%d].Height = %d, want %d", i, r.Height, i+1)
		}
		if r.TxCount != 1 {
			t.Fatalf("results[%d].TxCount = %d, want 1 (coinbase only)", i, r.TxCount)
		}
	}
	if got := m.Status().BlocksFound; got != n {
		t.Fatalf("BlocksFound = %d, want %d", got, n)
	}
}

func TestStartReturnsErrAlreadyRunning(t *testing.T) {
	db, p := freshGenesisDB(t)
	_, addr := freshWalletAddress(t)
	pool := mempool.New(p, db.UTXOView(), db.Manifest().TipHeight, 0)
	m := New(p, db, pool)

	cfg := Config{PayoutAddress: addr, Threads: 1}
	if err := m.Start(cfg, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	if err := m.Start(cfg, nil); err != ErrAlreadyRunning {
		t.Fatalf("second Start error = %v, want ErrAlreadyRunning", err)
	}
	if !m.Status().Running {
		t.Fatal("expected Status().Running to be true while mining")
	}

	m.Stop()
	if m.Status().Running {
		t.Fatal("expected Status().Running to be false after Stop")
	}
}

// TestMinedCoinbaseMaturesAndCanBeSpentIntoTheNextTemplate mines past the
// coinbase maturity window, spends the first block's coinbase output
// through the wallet package, admits that spend into the mempool, and
// checks BuildTemplate picks it up for the next block (spec §8 scenario 1).
func TestMinedCoinbaseMaturesAndCanBeSpentIntoTheNextTemplate(t *testing.T) {
	db, p := freshGenesisDB(t)
	mgr, minerAddr := freshWalletAddress(t)
	recipientAddr, err := mgr.NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}

	pool := mempool.New(p, db.UTXOView(), db.Manifest().TipHeight, 0)
	m := New(p, db, pool)

	ts := p.GenesisTimestamp + 1
	cfg := Config{PayoutAddress: minerAddr, Threads: 2, TimestampSource: func() uint64 { v := ts; ts++; return v }}

	n := int(chainparams.CoinbaseMaturity) + 1
	results, err := m.MineN(context.Background(), n, cfg)
	if err != nil {
		t.Fatalf("MineN: %v", err)
	}
	if len(results) != n {
		t.Fatalf("got %d results, want %d", len(results), n)
	}

	raw, ok, err := db.GetBlockBytes(results[0].Hash)
	if err != nil || !ok {
		t.Fatalf("GetBlockBytes(first mined block): ok=%v err=%v", ok, err)
	}
	firstBlock, err := consensus.DecodeBlock(raw)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	coinbaseTxid := consensus.TxID(firstBlock.Transactions[0])
	op := consensus.OutPoint{Txid: coinbaseTxid, Vout: 0}
	entry, ok, err := db.GetUTXO(op)
	if err != nil || !ok {
		t.Fatalf("GetUTXO(first coinbase): ok=%v err=%v", ok, err)
	}

	reservations := utxo.NewManager(db.UTXOView())
	req := wallet.SpendRequest{RecipientAddress: recipientAddr, Amount: entry.Amount / 2, Fee: 1000}
	spendTx, err := mgr.Send(req, map[consensus.OutPoint]consensus.UTXOEntry{op: entry}, reservations)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	spendPool := mempool.New(p, db.UTXOView(), db.Manifest().TipHeight, 0)
	if _, _, err := spendPool.Accept(spendTx, ts); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	tmpl, err := BuildTemplate(p, db, spendPool, minerAddr, ts+1)
	if err != nil {
		t.Fatalf("BuildTemplate: %v", err)
	}
	if len(tmpl.Transactions) != 2 {
		t.Fatalf("tx count = %d, want 2 (coinbase + spend)", len(tmpl.Transactions))
	}
	if consensus.TxID(tmpl.Transactions[1]) != consensus.TxID(spendTx) {
		t.Fatal("template's second transaction is not the mempool spend")
	}
	if tmpl.Fees != req.Fee {
		t.Fatalf("fees = %d, want %d", tmpl.Fees, req.Fee)
	}
	wantCoinbase := consensus.Subsidy(p, tmpl.Height) + req.Fee
	if got := tmpl.Transactions[0].Outputs[0].Amount; got != wantCoinbase {
		t.Fatalf("coinbase amount = %d, want %d", got, wantCoinbase)
	}
}
