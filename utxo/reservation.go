package utxo

import (
	"sync/atomic"

	"github.com/btpc-network/btpc/consensus"
)

// ReservationToken exclusively owns the outpoints it was issued for until
// released. Go has no destructors, so release is explicit: callers MUST
// `defer token.Release()` immediately after a successful Reserve so a
// failed broadcast, an error return, or a panic still releases the
// outpoints (spec §3 rule 2, the RAII-release pattern described in
// GLOSSARY "Reservation token").
type ReservationToken struct {
	manager   *Manager
	outpoints []consensus.OutPoint
	released  int32
}

// Release drops the reservation, freeing its outpoints for other callers.
// Safe to call more than once and safe to call after MarkSpent has already
// moved the outpoints to pending-spent (the second release is then a
// no-op for those entries).
func (t *ReservationToken) Release() {
	if t == nil {
		return
	}
	if !atomic.CompareAndSwapInt32(&t.released, 0, 1) {
		return
	}
	t.manager.release(t.outpoints)
}

// Outpoints returns the set this token reserved.
func (t *ReservationToken) Outpoints() []consensus.OutPoint {
	return append([]consensus.OutPoint(nil), t.outpoints...)
}
