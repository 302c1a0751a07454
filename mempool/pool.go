// Package mempool implements the fee-rate ordered pool of not-yet-confirmed
// transactions (spec §3 "Mempool entry", §4.5). Admission validates a
// transaction against the confirmed UTXO set overlaid with the outputs of
// already-admitted ancestors, resolves outpoint conflicts by a
// strictly-higher-fee replacement rule, and keeps the pool under a byte
// budget by evicting the lowest fee-rate entries first.
package mempool

import (
	"sort"
	"sync"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
)

// Pool is safe for concurrent use.
type Pool struct {
	mu sync.Mutex

	params    chainparams.Params
	confirmed consensus.UTXOView
	tipHeight uint64

	maxBytes   uint64
	totalBytes uint64

	entries map[[64]byte]*Entry
	// spentBy maps an outpoint to the txid currently spending it within
	// the pool, so a conflicting spend can be detected and, if it pays
	// enough more, replace it (spec §4.5 replacement rule).
	spentBy map[consensus.OutPoint][64]byte

	evict evictionQueue
}

// DefaultMaxBytes bounds the pool at 300 MB of serialized transactions
// absent an operator override, matching the scale of the reference pack's
// block-template generators.
const DefaultMaxBytes = 300 * 1000 * 1000

// New creates an empty pool. confirmed is the node's persisted UTXO view
// (typically storage.DB.UTXOView()); tipHeight is the height of the chain
// tip that view reflects.
func New(p chainparams.Params, confirmed consensus.UTXOView, tipHeight uint64, maxBytes uint64) *Pool {
	if maxBytes == 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Pool{
		params:    p,
		confirmed: confirmed,
		tipHeight: tipHeight,
		maxBytes:  maxBytes,
		entries:   make(map[[64]byte]*Entry),
		spentBy:   make(map[consensus.OutPoint][64]byte),
	}
}

// Get returns the pool entry for txid, if present.
func (m *Pool) Get(txid [64]byte) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[txid]
	return e, ok
}

// Size returns the number of entries currently admitted.
func (m *Pool) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// TotalBytes returns the sum of serialized sizes of admitted transactions.
func (m *Pool) TotalBytes() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes
}

// OrderedByFeeRate returns every entry sorted by fee_rate descending, with
// received_at ascending as the FIFO tiebreak (spec §4.5, used by the miner
// to build a block template and by the RPC raw-mempool listing).
func (m *Pool) OrderedByFeeRate() []*Entry {
	m.mu.Lock()
	out := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FeeRate != out[j].FeeRate {
			return out[i].FeeRate > out[j].FeeRate
		}
		return out[i].ReceivedAt < out[j].ReceivedAt
	})
	return out
}

// overlayViewLocked returns a UTXOView that resolves an outpoint against
// the confirmed chain first, then against the outputs of already-admitted
// transactions, so a child spending an unconfirmed parent's output
// validates (spec §4.5 "current best UTXO state plus ... the mempool UTXO
// overlay"). Caller must hold m.mu.
func (m *Pool) overlayViewLocked() consensus.UTXOView {
	created := make(consensus.MapUTXOView)
	for _, e := range m.entries {
		txid := e.Txid
		for vout, out := range e.Tx.Outputs {
			created[consensus.OutPoint{Txid: txid, Vout: uint32(vout)}] = consensus.UTXOEntry{
				Amount:        out.Amount,
				LockingScript: out.LockingScript,
				HeightCreated: m.tipHeight + 1,
				IsCoinbase:    false,
			}
		}
	}
	return overlayView{confirmed: m.confirmed, created: created}
}

type overlayView struct {
	confirmed consensus.UTXOView
	created   consensus.MapUTXOView
}

func (v overlayView) Get(op consensus.OutPoint) (consensus.UTXOEntry, bool) {
	if e, ok := v.created.Get(op); ok {
		return e, ok
	}
	return v.confirmed.Get(op)
}

// Accept validates tx and admits it to the pool (spec §4.5). receivedAtUnix
// should come through consensus.NormalizeClockReading so a clock underflow
// never produces a negative timestamp. On success it returns the new entry
// and any entries evicted to make room or to satisfy the replacement rule.
func (m *Pool) Accept(tx consensus.Tx, receivedAtUnix uint64) (*Entry, []*Entry, error) {
	txid := consensus.TxID(tx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[txid]; exists {
		return nil, nil, admissionErr(ErrAlreadyInPool, "transaction already in pool")
	}

	conflicts := m.conflictClosureLocked(tx)

	view := m.overlayViewLocked()
	fee, err := consensus.ValidateTx(view, tx, m.tipHeight)
	if err != nil {
		return nil, nil, consensusRejected(err)
	}

	size := uint64(len(consensus.EncodeTx(tx)))
	rate := feeRate(fee, size)

	if len(conflicts) > 0 {
		conflictFee, conflictSize := aggregate(conflicts)
		if fee <= conflictFee || rate <= feeRate(conflictFee, conflictSize) {
			return nil, nil, admissionErr(ErrConflictLowerFee,
				"replacement does not pay strictly more fee and a higher fee rate than the transactions it would displace")
		}
	}

	var evicted []*Entry
	for _, c := range conflicts {
		evicted = append(evicted, m.removeClosureLocked(c.Txid)...)
	}

	entry := &Entry{
		Tx:          tx,
		Txid:        txid,
		Fee:         fee,
		Size:        size,
		FeeRate:     rate,
		ReceivedAt:  receivedAtUnix,
		Ancestors:   make(map[[64]byte]struct{}),
		Descendants: make(map[[64]byte]struct{}),
	}
	for _, in := range tx.Inputs {
		if parent, ok := m.entries[in.PrevOut.Txid]; ok {
			entry.Ancestors[parent.Txid] = struct{}{}
			for a := range parent.Ancestors {
				entry.Ancestors[a] = struct{}{}
			}
		}
	}
	for a := range entry.Ancestors {
		if anc, ok := m.entries[a]; ok {
			anc.Descendants[txid] = struct{}{}
		}
	}

	m.entries[txid] = entry
	for _, in := range tx.Inputs {
		m.spentBy[in.PrevOut] = txid
	}
	m.totalBytes += size
	m.evict.push(entry)

	evicted = append(evicted, m.enforceSizeBoundLocked(txid)...)

	logger.Info("tx admitted", "txid", hex64Short(txid), "fee_rate", rate, "size", size, "evicted", len(evicted))
	return entry, evicted, nil
}

// conflictClosureLocked returns the set of existing entries (plus their
// full descendant closure) that would be displaced by admitting tx, i.e.
// every entry currently spending one of tx's inputs. Caller holds m.mu.
func (m *Pool) conflictClosureLocked(tx consensus.Tx) []*Entry {
	seed := make(map[[64]byte]struct{})
	for _, in := range tx.Inputs {
		if spender, ok := m.spentBy[in.PrevOut]; ok {
			seed[spender] = struct{}{}
		}
	}
	if len(seed) == 0 {
		return nil
	}
	closureTxids := m.closureLocked(seed)
	out := make([]*Entry, 0, len(closureTxids))
	for id := range closureTxids {
		if e, ok := m.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// closureLocked expands seed txids to include every transitive descendant
// present in the pool. Caller holds m.mu.
func (m *Pool) closureLocked(seed map[[64]byte]struct{}) map[[64]byte]struct{} {
	closure := make(map[[64]byte]struct{}, len(seed))
	queue := make([][64]byte, 0, len(seed))
	for id := range seed {
		closure[id] = struct{}{}
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		e, ok := m.entries[id]
		if !ok {
			continue
		}
		for d := range e.Descendants {
			if _, seen := closure[d]; !seen {
				closure[d] = struct{}{}
				queue = append(queue, d)
			}
		}
	}
	return closure
}

// removeClosureLocked removes rootTxid and every transitive descendant of
// it from the pool, returning the removed entries. Caller holds m.mu.
func (m *Pool) removeClosureLocked(rootTxid [64]byte) []*Entry {
	closure := m.closureLocked(map[[64]byte]struct{}{rootTxid: {}})
	removed := make([]*Entry, 0, len(closure))
	for id := range closure {
		e, ok := m.entries[id]
		if !ok {
			continue
		}
		removed = append(removed, e)
		delete(m.entries, id)
		for _, in := range e.Tx.Inputs {
			if m.spentBy[in.PrevOut] == id {
				delete(m.spentBy, in.PrevOut)
			}
		}
		m.totalBytes -= e.Size
		m.evict.remove(e)
	}
	for _, e := range m.entries {
		for id := range closure {
			delete(e.Ancestors, id)
			delete(e.Descendants, id)
		}
	}
	return removed
}

// enforceSizeBoundLocked evicts the globally lowest fee-rate entries (and
// their descendants) until the pool is back under maxBytes (spec §4.5
// "size-bound eviction"). justAdmitted is exempt from the search target
// chosen first only in the sense that it is itself eligible for eviction
// like any other entry; there is no special protection for it.
func (m *Pool) enforceSizeBoundLocked(justAdmitted [64]byte) []*Entry {
	var evicted []*Entry
	for m.totalBytes > m.maxBytes && m.evict.Len() > 0 {
		victim := m.evict.items[0]
		if _, ok := m.entries[victim.Txid]; !ok {
			m.evict.popMin()
			continue
		}
		evicted = append(evicted, m.removeClosureLocked(victim.Txid)...)
	}
	return evicted
}

// RemoveConfirmed drops every transaction in blk from the pool (it is now
// settled on-chain) and re-validates the remainder against the post-block
// UTXO view, evicting anything that no longer validates -- e.g. a
// transaction that conflicted with one the block confirmed instead (spec
// §4.5 "block-acceptance removal and overlay recompute"). confirmedView
// must already reflect blk; newTipHeight is blk's height.
func (m *Pool) RemoveConfirmed(blk consensus.Block, confirmedView consensus.UTXOView, newTipHeight uint64) []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.confirmed = confirmedView
	m.tipHeight = newTipHeight

	var removed []*Entry
	for _, tx := range blk.Transactions {
		txid := consensus.TxID(tx)
		if _, ok := m.entries[txid]; ok {
			removed = append(removed, m.removeClosureLocked(txid)...)
		}
	}

	removed = append(removed, m.revalidateLocked()...)
	logger.Info("mempool synced to new tip", "height", newTipHeight, "removed", len(removed), "remaining", len(m.entries))
	return removed
}

// revalidateLocked repeatedly re-runs ValidateTx for every remaining entry
// against the current overlay until a pass removes nothing, so a
// transaction invalidated only because an ancestor was itself just evicted
// is caught in a later pass. Caller holds m.mu.
func (m *Pool) revalidateLocked() []*Entry {
	var removed []*Entry
	for {
		view := m.overlayViewLocked()
		badTxid, bad := [64]byte{}, false
		for txid, e := range m.entries {
			if _, err := consensus.ValidateTx(view, e.Tx, m.tipHeight); err != nil {
				badTxid, bad = txid, true
				break
			}
		}
		if !bad {
			return removed
		}
		removed = append(removed, m.removeClosureLocked(badTxid)...)
	}
}

// ReAdmitDisconnected attempts to re-admit every non-coinbase transaction
// from blocks undone by a reorg (spec §4.5 "block-disconnect re-admission
// skipping now-invalid transactions"). Failures are swallowed; a
// transaction that double-spent against the new best chain simply stays
// out of the pool.
func (m *Pool) ReAdmitDisconnected(txs []consensus.Tx, receivedAtUnix uint64) {
	for _, tx := range txs {
		if tx.IsCoinbase() {
			continue
		}
		_, _, _ = m.Accept(tx, receivedAtUnix)
	}
}
