package wallet

import "github.com/btpc-network/btpc/consensus"

// Balance sums the amount of every UTXO in utxos whose locking script pays
// to one of this wallet's addresses (spec §4.6.3). Address comparison is
// case-insensitive and happens inside OwnsScript, so callers never need to
// normalize utxos themselves.
func (m *Manager) Balance(utxos map[consensus.OutPoint]consensus.UTXOEntry) uint64 {
	owned := m.addressSet()
	var total uint64
	for _, entry := range utxos {
		if _, ok := OwnsScript(entry.LockingScript, owned); ok {
			total += entry.Amount
		}
	}
	return total
}

// UTXOsForAddress filters utxos down to those paying the given address.
func UTXOsForAddress(address string, utxos map[consensus.OutPoint]consensus.UTXOEntry) map[consensus.OutPoint]consensus.UTXOEntry {
	owned := map[string]struct{}{NormalizeAddress(address): {}}
	out := make(map[consensus.OutPoint]consensus.UTXOEntry)
	for op, entry := range utxos {
		if _, ok := OwnsScript(entry.LockingScript, owned); ok {
			out[op] = entry
		}
	}
	return out
}
