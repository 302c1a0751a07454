package storage

import (
	"fmt"
	"math/big"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"

	bolt "go.etcd.io/bbolt"
)

// ApplyOptions carries the wall-clock context ApplyBlock needs for
// timestamp validation (spec §4.4 rule 4); it is threaded through rather
// than read from time.Now so tests and regtest mining can control it.
type ApplyOptions struct {
	LocalTimeUnix uint64
}

// ApplyDecision reports what ApplyBlock did with a block.
type ApplyDecision string

const (
	ApplyAppliedAsTip  ApplyDecision = "applied_as_tip"
	ApplyStoredAsFork  ApplyDecision = "stored_as_fork"
	ApplyAlreadyKnown  ApplyDecision = "already_known"
	ApplyTriggeredReorg ApplyDecision = "triggered_reorg"
)

// InitGenesis initializes an empty chain by applying its genesis block and
// writing every persisted entity (header, block, index, undo, manifest) in
// one step. Calling InitGenesis on an already-initialized chain is an error.
func (d *DB) InitGenesis(p chainparams.Params, genesis consensus.Block) error {
	if d.manifest != nil {
		return fmt.Errorf("storage: chain already initialized")
	}
	hash := consensus.BlockHash(genesis.Header)

	ctx := consensus.BlockValidationContext{
		Height:       0,
		LocalTimeUnix: genesis.Header.Timestamp,
		ExpectedBits: p.GenesisBits,
	}
	if err := consensus.ValidateBlock(p, consensus.MapUTXOView{}, genesis, ctx); err != nil {
		return fmt.Errorf("storage: invalid genesis block: %w", err)
	}

	deltas := consensus.ComputeBlockDeltas(genesis, 0)
	work := WorkFromTarget(consensus.ExpandBits(genesis.Header.Bits))
	index := BlockIndexEntry{
		Height:         0,
		PrevHash:       [64]byte{},
		CumulativeWork: work,
		Status:         BlockStatusValid,
	}

	headerBytes := consensus.EncodeHeader(genesis.Header)
	blockBytes := consensus.EncodeBlock(genesis)
	indexBytes, err := encodeIndexEntry(index)
	if err != nil {
		return err
	}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketHeaders).Put(hash[:], headerBytes); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlocks).Put(hash[:], blockBytes); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIndex).Put(hash[:], indexBytes); err != nil {
			return err
		}
		if err := tx.Bucket(bucketUndo).Put(hash[:], encodeUndoRecord(UndoRecord{Created: outpointsOf(deltas)})); err != nil {
			return err
		}
		bu := tx.Bucket(bucketUtxo)
		bs := tx.Bucket(bucketUtxoByScript)
		for _, c := range deltas.Created {
			if err := bu.Put(encodeOutpointKey(c.OutPoint), encodeUTXOEntry(c.Entry)); err != nil {
				return err
			}
			if err := bs.Put(scriptIndexKey(c.Entry.LockingScript, c.OutPoint), nil); err != nil {
				return err
			}
		}
		btx := tx.Bucket(bucketTransactions)
		for i, t := range genesis.Transactions {
			txid := consensus.TxID(t)
			if err := btx.Put(txid[:], encodeTxLocation(TxLocation{BlockHash: hash, Index: uint32(i)})); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := d.SetManifest(&Manifest{
		SchemaVersion:        SchemaVersionV1,
		Network:              p.Network.String(),
		TipHashHex:           hex64(hash),
		TipHeight:            0,
		TipCumulativeWorkDec: work.Text(10),
	}); err != nil {
		return err
	}
	logger.Info("genesis initialized", "network", p.Network.String(), "hash", hex64(hash))
	return nil
}

func outpointsOf(d consensus.BlockDeltas) []consensus.OutPoint {
	out := make([]consensus.OutPoint, len(d.Created))
	for i, c := range d.Created {
		out[i] = c.OutPoint
	}
	return out
}

// ApplyBlock validates and applies blk against the current chain state. If
// blk directly extends the active tip it is connected immediately. If it
// extends some other known block with less cumulative work than the tip,
// it is stored and indexed but left un-applied (a side branch). If it
// extends another branch with MORE cumulative work than the tip, ReorgToTip
// is invoked to switch the active chain to it.
func (d *DB) ApplyBlock(p chainparams.Params, blk consensus.Block, opts ApplyOptions) (ApplyDecision, error) {
	hash := consensus.BlockHash(blk.Header)
	if _, ok, err := d.GetIndex(hash); err != nil {
		return "", err
	} else if ok {
		return ApplyAlreadyKnown, nil
	}

	parentIdx, ok, err := d.GetIndex(blk.Header.PrevHash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("storage: parent block unknown")
	}
	height := parentIdx.Height + 1
	work := WorkFromTarget(consensus.ExpandBits(blk.Header.Bits))
	cumWork := new(big.Int).Add(parentIdx.CumulativeWork, work)

	if d.manifest != nil && blk.Header.PrevHash == mustParseHex64(d.manifest.TipHashHex) {
		if err := d.connectBlock(p, blk, height, opts); err != nil {
			logger.Warn("block rejected", "height", height, "hash", hex64(hash), "err", err)
			return "", err
		}
		logger.Info("block applied", "height", height, "hash", hex64(hash), "tx_count", len(blk.Transactions))
		return ApplyAppliedAsTip, nil
	}

	// Index the block as a (possibly better) side branch without applying it.
	indexBytes, err := encodeIndexEntry(BlockIndexEntry{Height: height, PrevHash: blk.Header.PrevHash, CumulativeWork: cumWork, Status: BlockStatusValid})
	if err != nil {
		return "", err
	}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketHeaders).Put(hash[:], consensus.EncodeHeader(blk.Header)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlocks).Put(hash[:], consensus.EncodeBlock(blk)); err != nil {
			return err
		}
		return tx.Bucket(bucketIndex).Put(hash[:], indexBytes)
	}); err != nil {
		return "", err
	}

	if d.manifest == nil {
		return ApplyStoredAsFork, nil
	}
	curTip, ok, err := d.GetIndex(mustParseHex64(d.manifest.TipHashHex))
	if err != nil {
		return "", err
	}
	if ok && cumWork.Cmp(curTip.CumulativeWork) > 0 {
		logger.Info("more-work branch found, reorganizing", "height", height, "hash", hex64(hash))
		if err := d.ReorgToTip(p, hash, opts); err != nil {
			logger.Error("reorg failed", "hash", hex64(hash), "err", err)
			return "", err
		}
		return ApplyTriggeredReorg, nil
	}
	return ApplyStoredAsFork, nil
}

// connectBlock directly extends the current applied tip with blk, running
// full validation then writing header/block/index/undo/utxo/tx-location
// and the new manifest tip inside one bbolt write transaction.
func (d *DB) connectBlock(p chainparams.Params, blk consensus.Block, height uint64, opts ApplyOptions) error {
	if d.manifest == nil || blk.Header.PrevHash != mustParseHex64(d.manifest.TipHashHex) {
		return fmt.Errorf("storage: connectBlock: block does not extend current tip")
	}
	hash := consensus.BlockHash(blk.Header)
	view := d.UTXOView()

	ancestorTimestamps, err := d.recentAncestorTimestamps(blk.Header.PrevHash)
	if err != nil {
		return err
	}
	expectedBits, err := expectedBitsForHeight(p, d, height, blk.Header.PrevHash)
	if err != nil {
		return err
	}
	ctx := consensus.BlockValidationContext{
		Height:             height,
		AncestorTimestamps: ancestorTimestamps,
		LocalTimeUnix:      opts.LocalTimeUnix,
		ExpectedBits:       expectedBits,
	}
	if err := consensus.ValidateBlock(p, view, blk, ctx); err != nil {
		return err
	}

	undo, err := ComputeUndoRecord(view, blk)
	if err != nil {
		return err
	}
	deltas := consensus.ComputeBlockDeltas(blk, height)
	undo.Created = outpointsOf(deltas)

	parentIdx, _, err := d.GetIndex(blk.Header.PrevHash)
	if err != nil {
		return err
	}
	work := WorkFromTarget(consensus.ExpandBits(blk.Header.Bits))
	cumWork := new(big.Int).Add(parentIdx.CumulativeWork, work)
	indexBytes, err := encodeIndexEntry(BlockIndexEntry{Height: height, PrevHash: blk.Header.PrevHash, CumulativeWork: cumWork, Status: BlockStatusValid})
	if err != nil {
		return err
	}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketHeaders).Put(hash[:], consensus.EncodeHeader(blk.Header)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlocks).Put(hash[:], consensus.EncodeBlock(blk)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIndex).Put(hash[:], indexBytes); err != nil {
			return err
		}
		if err := tx.Bucket(bucketUndo).Put(hash[:], encodeUndoRecord(undo)); err != nil {
			return err
		}
		bu := tx.Bucket(bucketUtxo)
		bs := tx.Bucket(bucketUtxoByScript)
		for _, s := range undo.Spent {
			if err := bu.Delete(encodeOutpointKey(s.OutPoint)); err != nil {
				return err
			}
			if err := bs.Delete(scriptIndexKey(s.RestoredEntry.LockingScript, s.OutPoint)); err != nil {
				return err
			}
		}
		for _, c := range deltas.Created {
			if err := bu.Put(encodeOutpointKey(c.OutPoint), encodeUTXOEntry(c.Entry)); err != nil {
				return err
			}
			if err := bs.Put(scriptIndexKey(c.Entry.LockingScript, c.OutPoint), nil); err != nil {
				return err
			}
		}
		btx := tx.Bucket(bucketTransactions)
		for i, t := range blk.Transactions {
			txid := consensus.TxID(t)
			if err := btx.Put(txid[:], encodeTxLocation(TxLocation{BlockHash: hash, Index: uint32(i)})); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	return d.SetManifest(&Manifest{
		SchemaVersion:        SchemaVersionV1,
		Network:              d.manifest.Network,
		TipHashHex:           hex64(hash),
		TipHeight:            height,
		TipCumulativeWorkDec: cumWork.Text(10),
	})
}

// recentAncestorTimestamps walks up to chainparams.MedianTimePastWindow
// ancestors from parentHash for the MTP check, oldest first.
// AncestorTimestamps is the exported form of recentAncestorTimestamps, used
// by callers that need to assemble a BlockValidationContext themselves
// (the miner's template-assembly path, ahead of ever calling ApplyBlock).
func (d *DB) AncestorTimestamps(parentHash [64]byte) ([]uint64, error) {
	return d.recentAncestorTimestamps(parentHash)
}

// expectedBitsForHeight derives the bits a block at height must carry,
// independent of whatever bits that block's own header claims: the
// parent's bits, unless height lands on a retarget boundary, in which case
// it recomputes from the just-completed window. This is what lets
// ValidateBlock's ExpectedBits check reject a block that names an
// easier-than-correct target for its height, rather than only checking a
// block's hash against whatever bits it happens to carry.
func expectedBitsForHeight(p chainparams.Params, d *DB, height uint64, parentHash [64]byte) (uint32, error) {
	parentHeaderBytes, ok, err := d.GetHeader(parentHash)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("storage: parent header not found")
	}
	parentHeader, err := consensus.DecodeHeader(parentHeaderBytes)
	if err != nil {
		return 0, err
	}
	if height%chainparams.RetargetInterval != 0 {
		return parentHeader.Bits, nil
	}
	windowStart, err := ancestorHeaderAt(d, parentHash, chainparams.RetargetInterval-1)
	if err != nil {
		return 0, err
	}
	return consensus.Retarget(p, parentHeader.Bits, windowStart.Timestamp, parentHeader.Timestamp, chainparams.RetargetInterval)
}

// ancestorHeaderAt walks steps parents back from hash (itself included as
// step 0) and returns the header found there.
func ancestorHeaderAt(d *DB, hash [64]byte, steps int) (consensus.BlockHeader, error) {
	cur := hash
	var h consensus.BlockHeader
	for i := 0; ; i++ {
		raw, ok, err := d.GetHeader(cur)
		if err != nil {
			return h, err
		}
		if !ok {
			return h, fmt.Errorf("storage: ancestor header not found %d steps back", steps)
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

func (d *DB) recentAncestorTimestamps(parentHash [64]byte) ([]uint64, error) {
	var out []uint64
	cur := parentHash
	for i := 0; i < chainparams.MedianTimePastWindow; i++ {
		headerBytes, ok, err := d.GetHeader(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		h, err := consensus.DecodeHeader(headerBytes)
		if err != nil {
			return nil, err
		}
		out = append([]uint64{h.Timestamp}, out...)
		if h.PrevHash == ([64]byte{}) {
			break
		}
		cur = h.PrevHash
	}
	return out, nil
}
