// Package utxo implements the wallet's in-memory optimistic reservation
// layer over the persisted UTXO set (spec §3 "UTXO set", §4.3). Selection
// and broadcast span network I/O; holding a lock across that window would
// serialize the wallet, so reservation is optimistic: an outpoint is
// locked out of selection the instant it's reserved, without blocking
// concurrent reads of the rest of the set.
package utxo

import (
	"fmt"
	"sync"

	"github.com/btpc-network/btpc/consensus"
)

// ErrAlreadyReserved is returned by Reserve when any requested outpoint is
// already held by another in-flight reservation (spec §3 "UtxoAlreadyReserved").
var ErrAlreadyReserved = fmt.Errorf("utxo: outpoint already reserved")

// Manager owns the reservation set layered over a confirmed-chain UTXO
// view. It never replaces that view; it only tracks which outpoints are
// currently spoken for so callers building competing transactions don't
// double-select them (spec §3 "the UTXO manager owns the in-memory
// reservation set").
type Manager struct {
	mu sync.Mutex

	confirmed consensus.UTXOView
	reserved  map[consensus.OutPoint]struct{}
	// pendingSpent holds outpoints marked spent after a successful
	// broadcast but not yet confirmed on-chain (spec §3 rule 3).
	pendingSpent map[consensus.OutPoint]struct{}
}

// NewManager wraps confirmed, the read-only view of the persisted,
// on-chain UTXO set (typically storage.DB.UTXOView()).
func NewManager(confirmed consensus.UTXOView) *Manager {
	return &Manager{
		confirmed:    confirmed,
		reserved:     make(map[consensus.OutPoint]struct{}),
		pendingSpent: make(map[consensus.OutPoint]struct{}),
	}
}

// Reserve atomically checks that none of outpoints is already reserved or
// pending-spent, then reserves all of them together. On any conflict it
// reserves none and returns ErrAlreadyReserved (spec §3 rule 1:
// "Atomicity guarantees no partial reservation").
func (m *Manager) Reserve(outpoints []consensus.OutPoint) (*ReservationToken, error) {
	if len(outpoints) == 0 {
		return nil, fmt.Errorf("utxo: reserve requires at least one outpoint")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range outpoints {
		if _, held := m.reserved[op]; held {
			return nil, ErrAlreadyReserved
		}
		if _, spent := m.pendingSpent[op]; spent {
			return nil, ErrAlreadyReserved
		}
		if _, ok := m.confirmed.Get(op); !ok {
			return nil, fmt.Errorf("utxo: outpoint not found in confirmed set")
		}
	}
	for _, op := range outpoints {
		m.reserved[op] = struct{}{}
	}
	return &ReservationToken{manager: m, outpoints: append([]consensus.OutPoint(nil), outpoints...)}, nil
}

// release removes outpoints from the reservation set. Called by
// ReservationToken.Release, directly or via its drop path; safe to call
// with an outpoint no longer held (idempotent no-op for that entry).
func (m *Manager) release(outpoints []consensus.OutPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range outpoints {
		delete(m.reserved, op)
	}
}

// MarkSpent is called only after a successful broadcast (spec §3 rule 3):
// it moves outpoints from "reserved" to "pending spent" so they stay
// excluded from selection until confirm_block clears them, and are never
// reservable again even after the token that reserved them is dropped.
func (m *Manager) MarkSpent(outpoints []consensus.OutPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range outpoints {
		delete(m.reserved, op)
		m.pendingSpent[op] = struct{}{}
	}
}

// ConfirmBlock applies a block's canonical UTXO deltas to the reservation
// layer: every spent outpoint's pending-spent (and, defensively,
// reservation) entry is cleared now that the chain itself reflects the
// spend (spec §3 rule 4).
func (m *Manager) ConfirmBlock(deltas consensus.BlockDeltas) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range deltas.Spent {
		delete(m.pendingSpent, op)
		delete(m.reserved, op)
	}
}

// SpendableView returns a consensus.UTXOView that excludes any outpoint
// currently reserved or pending-spent, suitable for coin selection.
func (m *Manager) SpendableView() consensus.UTXOView {
	return spendableView{m: m}
}

type spendableView struct{ m *Manager }

func (v spendableView) Get(op consensus.OutPoint) (consensus.UTXOEntry, bool) {
	v.m.mu.Lock()
	_, reserved := v.m.reserved[op]
	_, pending := v.m.pendingSpent[op]
	v.m.mu.Unlock()
	if reserved || pending {
		return consensus.UTXOEntry{}, false
	}
	return v.m.confirmed.Get(op)
}

// IsReserved reports whether op is currently held by an outstanding
// reservation or pending-spend entry, for diagnostics and tests.
func (m *Manager) IsReserved(op consensus.OutPoint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, reserved := m.reserved[op]
	_, pending := m.pendingSpent[op]
	return reserved || pending
}
