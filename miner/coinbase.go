package miner

import (
	"encoding/binary"

	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/wallet"
)

// buildCoinbaseTx builds the block's first transaction: a single sentinel
// input and one output paying amount (subsidy plus collected fees) to
// payoutHash (spec §4.7 "build a coinbase transaction paying
// subsidy(next_height) + Σfees to a configured address"). The height is
// pushed into the input's unlocking script purely so two otherwise-empty
// templates at different heights never produce the same txid; it plays no
// role in validation, which only checks the coinbase's input/output shape.
func buildCoinbaseTx(height uint64, payoutHash [64]byte, amount uint64) (consensus.Tx, error) {
	script, err := wallet.LockingScriptFor(payoutHash)
	if err != nil {
		return consensus.Tx{}, err
	}
	var heightBuf [8]byte
	binary.LittleEndian.PutUint64(heightBuf[:], height)

	return consensus.Tx{
		Version: 1,
		Inputs: []consensus.TxInput{{
			PrevOut:         consensus.OutPoint{Vout: consensus.CoinbasePrevoutVout},
			UnlockingScript: consensus.PushData(heightBuf[:]),
			Sequence:        0xffffffff,
		}},
		Outputs: []consensus.TxOutput{{Amount: amount, LockingScript: script}},
	}, nil
}
