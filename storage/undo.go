package storage

import (
	"fmt"

	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/wire"
)

// UndoSpent records what an applied block's input deleted from the UTXO
// set, so disconnecting the block can restore it exactly (spec §4.2
// "atomic reorg... deterministic given the stored blocks and index").
type UndoSpent struct {
	OutPoint      consensus.OutPoint
	RestoredEntry consensus.UTXOEntry
}

// UndoRecord is everything needed to reverse one applied block: the
// entries its inputs removed, and the outpoints its outputs created.
type UndoRecord struct {
	Spent   []UndoSpent
	Created []consensus.OutPoint
}

// ComputeUndoRecord derives the undo record for applying blk at height,
// given the UTXO view as of the parent block (before blk's deltas are
// applied).
func ComputeUndoRecord(view consensus.UTXOView, blk consensus.Block) (UndoRecord, error) {
	var undo UndoRecord
	for txIdx, tx := range blk.Transactions {
		if txIdx == 0 {
			continue // coinbase spends nothing
		}
		for _, in := range tx.Inputs {
			entry, ok := view.Get(in.PrevOut)
			if !ok {
				return UndoRecord{}, fmt.Errorf("storage: undo: missing utxo for outpoint %x:%d", in.PrevOut.Txid, in.PrevOut.Vout)
			}
			undo.Spent = append(undo.Spent, UndoSpent{OutPoint: in.PrevOut, RestoredEntry: entry})
		}
	}
	deltas := consensus.ComputeBlockDeltas(blk, 0) // height irrelevant for Created outpoints
	for _, c := range deltas.Created {
		undo.Created = append(undo.Created, c.OutPoint)
	}
	return undo, nil
}

func encodeUndoRecord(u UndoRecord) []byte {
	w := wire.NewWriter(64)
	w.WriteCompactSize(uint64(len(u.Spent)))
	for _, s := range u.Spent {
		w.WriteFixed(encodeOutpointKey(s.OutPoint))
		w.WriteVarBytes(encodeUTXOEntry(s.RestoredEntry))
	}
	w.WriteCompactSize(uint64(len(u.Created)))
	for _, p := range u.Created {
		w.WriteFixed(encodeOutpointKey(p))
	}
	return w.Bytes()
}

func decodeUndoRecord(b []byte) (UndoRecord, error) {
	c := wire.NewCursor(b)
	spentN, err := c.ReadCompactLen(consensus.MaxTxInputs * 1_000_000)
	if err != nil {
		return UndoRecord{}, err
	}
	spent := make([]UndoSpent, 0, spentN)
	for i := 0; i < spentN; i++ {
		keyBytes, err := c.ReadBytes(outpointKeyLen)
		if err != nil {
			return UndoRecord{}, err
		}
		op, err := decodeOutpointKey(keyBytes)
		if err != nil {
			return UndoRecord{}, err
		}
		entryLen, err := c.ReadCompactLen(1 << 32)
		if err != nil {
			return UndoRecord{}, err
		}
		entryBytes, err := c.ReadBytes(entryLen)
		if err != nil {
			return UndoRecord{}, err
		}
		entry, err := decodeUTXOEntry(entryBytes)
		if err != nil {
			return UndoRecord{}, err
		}
		spent = append(spent, UndoSpent{OutPoint: op, RestoredEntry: entry})
	}

	createdN, err := c.ReadCompactLen(consensus.MaxTxOutputs * 1_000_000)
	if err != nil {
		return UndoRecord{}, err
	}
	created := make([]consensus.OutPoint, 0, createdN)
	for i := 0; i < createdN; i++ {
		keyBytes, err := c.ReadBytes(outpointKeyLen)
		if err != nil {
			return UndoRecord{}, err
		}
		op, err := decodeOutpointKey(keyBytes)
		if err != nil {
			return UndoRecord{}, err
		}
		created = append(created, op)
	}
	if !c.Done() {
		return UndoRecord{}, fmt.Errorf("storage: undo record has trailing bytes")
	}
	return UndoRecord{Spent: spent, Created: created}, nil
}
