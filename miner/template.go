package miner

import (
	"fmt"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/mempool"
	"github.com/btpc-network/btpc/storage"
	"github.com/btpc-network/btpc/wallet"
)

// Template is an unsolved block: every field but Header.Nonce is final.
// CPU/GPU search fills in Nonce; the template itself is discarded and
// rebuilt whenever the mempool or tip changes (spec §4.7 "When the mempool
// or template changes, the current search is cancelled and a new template
// assembled").
type Template struct {
	Header       consensus.BlockHeader
	Transactions []consensus.Tx
	Height       uint64
	Fees         uint64
}

// BuildTemplate assembles a new block template on top of db's current tip:
// mempool entries in fee-rate-descending order up to the block size bound,
// a coinbase paying subsidy(next_height)+fees to payoutAddress, and the
// resulting Merkle root (spec §4.7 "Template assembly"). db must already
// have a genesis block applied.
func BuildTemplate(p chainparams.Params, db *storage.DB, pool *mempool.Pool, payoutAddress string, nowUnix uint64) (*Template, error) {
	manifest := db.Manifest()
	if manifest == nil {
		return nil, fmt.Errorf("miner: chain is not initialized (no genesis block)")
	}
	tipHeader, ok, err := db.TipHeader()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("miner: tip header not found")
	}
	tipHash := consensus.BlockHash(tipHeader)
	nextHeight := manifest.TipHeight + 1

	ancestorTimestamps, err := db.AncestorTimestamps(tipHash)
	if err != nil {
		return nil, err
	}

	bits, err := nextBits(p, db, manifest.TipHeight, tipHeader)
	if err != nil {
		return nil, err
	}

	payoutHash, err := wallet.AddressHash(payoutAddress)
	if err != nil {
		return nil, err
	}

	placeholderCoinbase, err := buildCoinbaseTx(nextHeight, payoutHash, 0)
	if err != nil {
		return nil, err
	}
	budget := p.MaxBlockSerializedBytes
	used := uint64(consensus.BlockHeaderBytes) + 9 /* worst-case CompactSize tx-count prefix */ + uint64(len(consensus.EncodeTx(placeholderCoinbase)))

	var selected []consensus.Tx
	var fees uint64
	for _, entry := range pool.OrderedByFeeRate() {
		if used+entry.Size > budget {
			break
		}
		selected = append(selected, entry.Tx)
		used += entry.Size
		fees += entry.Fee
	}

	coinbase, err := buildCoinbaseTx(nextHeight, payoutHash, consensus.Subsidy(p, nextHeight)+fees)
	if err != nil {
		return nil, err
	}
	txs := make([]consensus.Tx, 0, 1+len(selected))
	txs = append(txs, coinbase)
	txs = append(txs, selected...)

	merkleRoot, err := consensus.BlockMerkleRoot(txs)
	if err != nil {
		return nil, err
	}

	mtp := consensus.MedianTimePast(ancestorTimestamps)
	timestamp := nowUnix
	if timestamp <= mtp {
		timestamp = mtp + 1
	}

	header := consensus.BlockHeader{
		Version:    1,
		PrevHash:   tipHash,
		MerkleRoot: merkleRoot,
		Timestamp:  timestamp,
		Bits:       bits,
		Nonce:      0,
	}
	return &Template{Header: header, Transactions: txs, Height: nextHeight, Fees: fees}, nil
}

// nextBits returns the target the block at tipHeight+1 must satisfy: the
// tip's own bits, unless tipHeight+1 lands on a retarget boundary, in which
// case it recomputes from the just-completed window (spec §4.4.1).
func nextBits(p chainparams.Params, db *storage.DB, tipHeight uint64, tip consensus.BlockHeader) (uint32, error) {
	nextHeight := tipHeight + 1
	if nextHeight%chainparams.RetargetInterval != 0 {
		return tip.Bits, nil
	}
	tipHash := consensus.BlockHash(tip)
	windowStart, err := ancestorHeader(db, tipHash, chainparams.RetargetInterval-1)
	if err != nil {
		return 0, err
	}
	return consensus.Retarget(p, tip.Bits, windowStart.Timestamp, tip.Timestamp, chainparams.RetargetInterval)
}

// ancestorHeader walks steps parents back from hash (itself included as
// step 0) and returns the header found there.
func ancestorHeader(db *storage.DB, hash [64]byte, steps int) (consensus.BlockHeader, error) {
	cur := hash
	var h consensus.BlockHeader
	for i := 0; ; i++ {
		raw, ok, err := db.GetHeader(cur)
		if err != nil {
			return h, err
		}
		if !ok {
			return h, fmt.Errorf("miner: ancestor header not found %d steps back", steps)
		}
		h, err = consensus.DecodeHeader(raw)
		if err != nil {
			return h, err
		}
		if i == steps {
			return h, nil
		}
		cur = h.PrevHash
	}
}
