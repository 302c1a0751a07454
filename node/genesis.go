package node

import (
	"context"
	"fmt"
	"runtime"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/miner"
)

// genesisLockingScript is a recognizable, unspendable placeholder: the
// genesis coinbase carries no reward (mirrors the zero-amount genesis
// coinbase the storage and miner packages' own tests build), so no real
// locking script is needed.
var genesisLockingScript = []byte("btpc-genesis")

// GenesisBlock builds the canonical zero-reward genesis block for p and
// searches for a nonce satisfying its own proof-of-work target, the same
// way any other block is found (spec §4.7 "the miner holds no privileged
// write path of its own" applies to genesis too: it is mined, not
// special-cased). Regtest's deliberately trivial bits mean this resolves
// within the first few nonces; for testnet and mainnet a real launch would
// run this once, offline, the way the Bitcoin genesis nonce
// itself was originally found, and bake the result into MainnetParams.
func GenesisBlock(ctx context.Context, p chainparams.Params) (consensus.Block, error) {
	coinbase := consensus.Tx{
		Version: 1,
		Inputs: []consensus.TxInput{{
			PrevOut: consensus.OutPoint{Vout: consensus.CoinbasePrevoutVout},
		}},
		Outputs: []consensus.TxOutput{{Amount: 0, LockingScript: genesisLockingScript}},
	}
	root, err := consensus.BlockMerkleRoot([]consensus.Tx{coinbase})
	if err != nil {
		return consensus.Block{}, err
	}
	header := consensus.BlockHeader{
		Version:    1,
		PrevHash:   [64]byte{},
		MerkleRoot: root,
		Timestamp:  p.GenesisTimestamp,
		Bits:       p.GenesisBits,
	}
	solved, ok, err := miner.SearchCPUParallel(ctx, header, runtime.NumCPU())
	if err != nil {
		return consensus.Block{}, err
	}
	if !ok {
		return consensus.Block{}, fmt.Errorf("node: exhausted nonce space without finding a valid genesis header")
	}
	logger.Info("genesis block found", "network", p.Network.String(), "nonce", solved.Nonce)
	return consensus.Block{Header: solved, Transactions: []consensus.Tx{coinbase}}, nil
}
