package consensus

// CreatedUTXO pairs an outpoint with the entry it contributes to the UTXO
// set when a block is applied.
type CreatedUTXO struct {
	OutPoint OutPoint
	Entry    UTXOEntry
}

// BlockDeltas is the set of UTXO mutations a block produces when applied:
// every input's outpoint is removed, every output becomes a new entry
// (spec §3 Invariants, §4.2 apply_block contract).
type BlockDeltas struct {
	Spent   []OutPoint
	Created []CreatedUTXO
}

// ComputeBlockDeltas derives the UTXO deltas for applying blk at height.
// It does not validate blk; callers run ValidateBlock first.
func ComputeBlockDeltas(blk Block, height uint64) BlockDeltas {
	var d BlockDeltas
	for txIdx, tx := range blk.Transactions {
		txid := TxID(tx)
		isCoinbase := txIdx == 0
		if !isCoinbase {
			for _, in := range tx.Inputs {
				d.Spent = append(d.Spent, in.PrevOut)
			}
		}
		for vout, out := range tx.Outputs {
			d.Created = append(d.Created, CreatedUTXO{
				OutPoint: OutPoint{Txid: txid, Vout: uint32(vout)},
				Entry: UTXOEntry{
					Amount:        out.Amount,
					LockingScript: out.LockingScript,
					HeightCreated: height,
					IsCoinbase:    isCoinbase,
				},
			})
		}
	}
	return d
}
