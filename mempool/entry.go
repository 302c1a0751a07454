package mempool

import "github.com/btpc-network/btpc/consensus"

// Entry is one admitted transaction together with the bookkeeping the pool
// needs for ordering, conflict resolution, and cascade removal (spec §3
// "Mempool entry", §4.5).
type Entry struct {
	Tx         consensus.Tx
	Txid       [64]byte
	Fee        uint64
	Size       uint64
	FeeRate    float64 // atomic units per byte
	ReceivedAt uint64

	// Ancestors and Descendants hold the txids of other in-pool entries
	// this one spends from, or that spend from it, transitively.
	Ancestors   map[[64]byte]struct{}
	Descendants map[[64]byte]struct{}

	// index is maintained by evictionQueue (container/heap bookkeeping);
	// callers never set it.
	index int
}

// aggregate sums fee and size across a set of entries, used to compare a
// replacement candidate against the total it would displace (spec §4.5
// replacement rule).
func aggregate(entries []*Entry) (fee uint64, size uint64) {
	for _, e := range entries {
		fee += e.Fee
		size += e.Size
	}
	return fee, size
}

func feeRate(fee, size uint64) float64 {
	if size == 0 {
		return 0
	}
	return float64(fee) / float64(size)
}
