package storage

import (
	"fmt"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"

	bolt "go.etcd.io/bbolt"
)

// ReorgToTip moves the applied chain tip from the current manifest tip to
// newTipHash, which must already be indexed (stored via ApplyBlock as a
// side branch). It disconnects blocks from the old tip down to the common
// ancestor using their undo records, then connects the new branch's blocks
// one at a time. Each step is its own atomic commit point (manifest
// update); if a connect step fails partway through, the chain is left at
// whatever block successfully connected, never in a half-applied block
// (spec §3 Invariants, §4.2).
func (d *DB) ReorgToTip(p chainparams.Params, newTipHash [64]byte, opts ApplyOptions) error {
	if d.manifest == nil {
		return fmt.Errorf("storage: chain not initialized")
	}
	oldTipHash := mustParseHex64(d.manifest.TipHashHex)
	if oldTipHash == newTipHash {
		return nil
	}

	forkHash, err := d.findForkPoint(oldTipHash, newTipHash)
	if err != nil {
		return err
	}
	logger.Info("reorg started", "old_tip", hex64(oldTipHash), "new_tip", hex64(newTipHash), "fork_point", hex64(forkHash))

	cur := oldTipHash
	for cur != forkHash {
		idx, ok, err := d.GetIndex(cur)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("storage: reorg: index missing for %x", cur)
		}
		undo, ok, err := d.GetUndo(cur)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("storage: reorg: undo record missing for %x", cur)
		}

		if err := d.db.Update(func(tx *bolt.Tx) error {
			bu := tx.Bucket(bucketUtxo)
			bs := tx.Bucket(bucketUtxoByScript)
			for _, c := range undo.Created {
				key := encodeOutpointKey(c)
				raw := bu.Get(key)
				if raw != nil {
					entry, err := decodeUTXOEntry(raw)
					if err != nil {
						return err
					}
					if err := bs.Delete(scriptIndexKey(entry.LockingScript, c)); err != nil {
						return err
					}
				}
				if err := bu.Delete(key); err != nil {
					return err
				}
			}
			for _, s := range undo.Spent {
				if err := bu.Put(encodeOutpointKey(s.OutPoint), encodeUTXOEntry(s.RestoredEntry)); err != nil {
					return err
				}
				if err := bs.Put(scriptIndexKey(s.RestoredEntry.LockingScript, s.OutPoint), nil); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}

		parentIdx, ok, err := d.GetIndex(idx.PrevHash)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("storage: reorg: parent index missing for %x", idx.PrevHash)
		}
		if err := d.SetManifest(&Manifest{
			SchemaVersion:        SchemaVersionV1,
			Network:              d.manifest.Network,
			TipHashHex:           hex64(idx.PrevHash),
			TipHeight:            parentIdx.Height,
			TipCumulativeWorkDec: parentIdx.CumulativeWork.Text(10),
		}); err != nil {
			return err
		}
		cur = idx.PrevHash
	}

	path, err := d.pathFromAncestor(forkHash, newTipHash)
	if err != nil {
		return err
	}
	for _, h := range path {
		blockBytes, ok, err := d.GetBlockBytes(h)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("storage: reorg: block bytes missing for %x", h)
		}
		blk, err := consensus.DecodeBlock(blockBytes)
		if err != nil {
			return err
		}
		idx, ok, err := d.GetIndex(h)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("storage: reorg: index missing for %x", h)
		}
		if err := d.connectBlock(p, blk, idx.Height, opts); err != nil {
			idx.Status = BlockStatusInvalid
			if b, encErr := encodeIndexEntry(idx); encErr == nil {
				_ = d.db.Update(func(tx *bolt.Tx) error {
					return tx.Bucket(bucketIndex).Put(h[:], b)
				})
			}
			logger.Error("reorg aborted mid-connect", "hash", hex64(h), "height", idx.Height, "err", err)
			return fmt.Errorf("storage: reorg: connect %x failed: %w", h, err)
		}
	}
	logger.Info("reorg completed", "new_tip", hex64(newTipHash))
	return nil
}

func (d *DB) findForkPoint(a, b [64]byte) ([64]byte, error) {
	ha, ok, err := d.GetIndex(a)
	if err != nil {
		return [64]byte{}, err
	}
	if !ok {
		return [64]byte{}, fmt.Errorf("storage: reorg: index missing for %x", a)
	}
	hb, ok, err := d.GetIndex(b)
	if err != nil {
		return [64]byte{}, err
	}
	if !ok {
		return [64]byte{}, fmt.Errorf("storage: reorg: index missing for %x", b)
	}

	for ha.Height > hb.Height {
		a = ha.PrevHash
		ha, ok, err = d.GetIndex(a)
		if err != nil {
			return [64]byte{}, err
		}
		if !ok {
			return [64]byte{}, fmt.Errorf("storage: reorg: index missing for %x", a)
		}
	}
	for hb.Height > ha.Height {
		b = hb.PrevHash
		hb, ok, err = d.GetIndex(b)
		if err != nil {
			return [64]byte{}, err
		}
		if !ok {
			return [64]byte{}, fmt.Errorf("storage: reorg: index missing for %x", b)
		}
	}
	for a != b {
		a, b = ha.PrevHash, hb.PrevHash
		ha, ok, err = d.GetIndex(a)
		if err != nil {
			return [64]byte{}, err
		}
		if !ok {
			return [64]byte{}, fmt.Errorf("storage: reorg: index missing for %x", a)
		}
		hb, ok, err = d.GetIndex(b)
		if err != nil {
			return [64]byte{}, err
		}
		if !ok {
			return [64]byte{}, fmt.Errorf("storage: reorg: index missing for %x", b)
		}
	}
	return a, nil
}

// pathFromAncestor returns the hashes from ancestor's child up to tip, in
// ascending-height order.
func (d *DB) pathFromAncestor(ancestor, tip [64]byte) ([][64]byte, error) {
	if ancestor == tip {
		return nil, nil
	}
	cur := tip
	var out [][64]byte
	for cur != ancestor {
		out = append(out, cur)
		idx, ok, err := d.GetIndex(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("storage: reorg: index missing for %x", cur)
		}
		cur = idx.PrevHash
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
