package consensus

import "github.com/btpc-network/btpc/chainparams"

// Subsidy computes the per-block coinbase reward for height under the
// network's reward schedule: linear decay from InitialSubsidyAtomic at
// height 1 down to InitialSubsidyAtomic/SubsidyDecayBlocks at height
// SubsidyDecayBlocks, and zero above it, after which mining continues
// fee-only (spec §3 Network parameters, §6 Subsidy schedule).
func Subsidy(p chainparams.Params, height uint64) uint64 {
	if height == 0 || height > p.SubsidyDecayBlocks {
		return 0
	}
	remaining := p.SubsidyDecayBlocks - height + 1
	// uint64 product fits: InitialSubsidyAtomic ~ 5e9, decay span ~ 1e6 -> ~5e15, well under 2^63.
	return remaining * p.InitialSubsidyAtomic / p.SubsidyDecayBlocks
}
