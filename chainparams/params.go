// Package chainparams holds the immutable, per-network consensus
// parameters described in spec §3: genesis block, target block time,
// initial reward, reward schedule, minimum difficulty, retarget interval,
// coinbase maturity, and max block size.
package chainparams

// Network identifies which parameter set a node or wallet is operating
// under (spec §3 Wallet record, §6 Default ports and networks).
type Network uint8

const (
	Mainnet Network = iota
	Testnet
	Regtest
)

func (n Network) String() string {
	switch n {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	case Regtest:
		return "regtest"
	default:
		return "unknown"
	}
}

// ParseNetwork converts a lowercase network name to a Network, matching the
// wallet-record enum of spec §3.
func ParseNetwork(s string) (Network, bool) {
	switch s {
	case "mainnet":
		return Mainnet, true
	case "testnet":
		return Testnet, true
	case "regtest":
		return Regtest, true
	default:
		return 0, false
	}
}

// BaseUnitsPerCoin is the atomic-unit scale: 1 whole BTPC = 10^8 atomic
// units (spec §3).
const BaseUnitsPerCoin = 100_000_000

// MaxSupplyAtomic is the fixed 21,000,000 BTPC cap expressed in atomic
// units (spec §3, §6).
const MaxSupplyAtomic = 21_000_000 * BaseUnitsPerCoin

// CoinbaseMaturity is the height delta before a coinbase output becomes
// spendable (spec §3, §6): 100 blocks.
const CoinbaseMaturity = 100

// RetargetInterval is the number of blocks between difficulty
// recalculations (spec §4.4.1).
const RetargetInterval = 2016

// MaxFutureDrift bounds how far a block timestamp may sit ahead of node
// wall-clock time (spec §4.4 rule 4): 2 hours.
const MaxFutureDrift = 2 * 60 * 60

// MedianTimePastWindow is the number of preceding blocks whose median
// timestamp is MTP (spec GLOSSARY).
const MedianTimePastWindow = 11

// Params is the full immutable parameter set for one network.
type Params struct {
	Network Network

	// GenesisTimestamp and GenesisBits seed the genesis header;
	// node.GenesisBlock builds and mines the genesis block from them.
	GenesisTimestamp uint64
	GenesisBits      uint32

	// TargetBlockIntervalSeconds is the desired spacing between blocks.
	TargetBlockIntervalSeconds uint64

	// InitialSubsidyAtomic is the coinbase reward at height 1, before decay.
	InitialSubsidyAtomic uint64

	// SubsidyDecayBlocks is the height span over which the reward linearly
	// decays to zero once the max supply has been fully scheduled (spec §6
	// "linear decay to a fixed max supply").
	SubsidyDecayBlocks uint64

	// MinDifficultyBits is the easiest allowed target; retarget may never
	// produce a target above this (i.e. bits below this floor).
	MinDifficultyBits uint32

	// MaxBlockSerializedBytes bounds a block's total wire size.
	MaxBlockSerializedBytes uint64

	DefaultRPCPort uint16
	DefaultP2PPort uint16
}

// MainnetParams is the production network parameter set.
func MainnetParams() Params {
	return Params{
		Network:                    Mainnet,
		GenesisTimestamp:           1_700_000_000,
		GenesisBits:                0x1d00ffff,
		TargetBlockIntervalSeconds: 600,
		InitialSubsidyAtomic:       50 * BaseUnitsPerCoin,
		SubsidyDecayBlocks:         210_000 * 4, // four ~4-year halvening-equivalent eras, linear
		MinDifficultyBits:          0x1d00ffff,
		MaxBlockSerializedBytes:    4_000_000,
		DefaultRPCPort:             8332,
		DefaultP2PPort:             8333,
	}
}

// TestnetParams relaxes the minimum difficulty for faster test mining.
func TestnetParams() Params {
	p := MainnetParams()
	p.Network = Testnet
	p.MinDifficultyBits = 0x1e00ffff
	p.GenesisBits = p.MinDifficultyBits
	p.DefaultRPCPort = 18332
	p.DefaultP2PPort = 18333
	return p
}

// RegtestParams uses a trivial minimum difficulty so tests and local nodes
// can mine blocks instantly (spec §8 scenario 1: "start node in regtest,
// mine 101 blocks").
func RegtestParams() Params {
	p := MainnetParams()
	p.Network = Regtest
	p.MinDifficultyBits = 0x4100ffff // target 0xffff<<496 in the 64-byte space
	p.GenesisBits = p.MinDifficultyBits
	p.DefaultRPCPort = 18443
	p.DefaultP2PPort = 18444
	return p
}

// For looks up the parameter set for a network.
func For(n Network) Params {
	switch n {
	case Testnet:
		return TestnetParams()
	case Regtest:
		return RegtestParams()
	default:
		return MainnetParams()
	}
}
