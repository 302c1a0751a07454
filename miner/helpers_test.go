package miner

import (
	"path/filepath"
	"testing"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/storage"
	"github.com/btpc-network/btpc/wallet"
)

// coinbaseBlock mirrors storage_test.go's helper of the same name: a block
// with a single placeholder-scripted coinbase and nothing else.
func coinbaseBlock(t *testing.T, p chainparams.Params, prevHash [64]byte, timestamp uint64, amount uint64) consensus.Block {
	t.Helper()
	coinbase := consensus.Tx{
		Version: 1,
		Inputs:  []consensus.TxInput{{PrevOut: consensus.OutPoint{Vout: consensus.CoinbasePrevoutVout}}},
		Outputs: []consensus.TxOutput{{Amount: amount, LockingScript: []byte{1}}},
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

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(dir, "regtest")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// freshGenesisDB opens a regtest DB and applies an empty-coinbase genesis.
func freshGenesisDB(t *testing.T) (*storage.DB, chainparams.Params) {
	t.Helper()
	p := chainparams.RegtestParams()
	db := openTestDB(t)
	genesis := coinbaseBlock(t, p, [64]byte{}, p.GenesisTimestamp, 0)
	if err := db.InitGenesis(p, genesis); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	return db, p
}

// freshWalletAddress creates a throwaway encrypted wallet and returns one
// of its addresses together with the manager, so tests can sign spends
// from coinbases the miner paid to it.
func freshWalletAddress(t *testing.T) (*wallet.Manager, string) {
	t.Helper()
	mgr, err := wallet.Create(filepath.Join(t.TempDir(), "wallet.dat"), chainparams.Regtest, []byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("wallet.Create: %v", err)
	}
	addr, err := mgr.NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	return mgr, addr
}
