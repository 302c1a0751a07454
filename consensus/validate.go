package consensus

import (
	"sort"

	"github.com/btpc-network/btpc/chainparams"
)

// UTXOEntry is the minimal view of an unspent output validation needs:
// amount, locking script, and the height/coinbase-ness required to check
// coinbase maturity (spec §3 UTXO entry).
type UTXOEntry struct {
	Amount        uint64
	LockingScript []byte
	HeightCreated uint64
	IsCoinbase    bool
}

// UTXOView is the read-only UTXO lookup validation depends on. Both the
// storage package's persisted set and the mempool's ancestor overlay
// (spec §4.5) implement this.
type UTXOView interface {
	Get(op OutPoint) (UTXOEntry, bool)
}

// MapUTXOView is a simple in-memory UTXOView, useful for tests and for the
// mempool's per-chain overlay.
type MapUTXOView map[OutPoint]UTXOEntry

func (m MapUTXOView) Get(op OutPoint) (UTXOEntry, bool) {
	e, ok := m[op]
	return e, ok
}

// ValidateTx runs the per-transaction validation of spec §4.4 against a
// UTXO view as of the parent block at parentHeight. It returns the fee
// (sum(inputs) - sum(outputs)) on success.
func ValidateTx(view UTXOView, tx Tx, parentHeight uint64) (fee uint64, err error) {
	if len(tx.Inputs) == 0 {
		return 0, newErr(ErrInsufficientInputs, "tx: no inputs")
	}
	if len(tx.Outputs) == 0 {
		return 0, newErr(ErrInsufficientInputs, "tx: no outputs")
	}

	var totalIn, totalOut uint64
	for _, out := range tx.Outputs {
		if out.Amount > chainparams.MaxSupplyAtomic {
			return 0, newErr(ErrInsufficientInputs, "tx: output amount exceeds max supply")
		}
		totalOut += out.Amount
	}

	sighash := Sighash(tx)
	seen := make(map[OutPoint]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if _, dup := seen[in.PrevOut]; dup {
			return 0, newErr(ErrMissingUTXO, "tx: duplicate input outpoint")
		}
		seen[in.PrevOut] = struct{}{}

		entry, ok := view.Get(in.PrevOut)
		if !ok {
			return 0, newErr(ErrMissingUTXO, "tx: referenced output not found or already spent")
		}
		if entry.IsCoinbase && parentHeight-entry.HeightCreated < chainparams.CoinbaseMaturity {
			return 0, newErr(ErrCoinbaseImmature, "tx: spends immature coinbase output")
		}
		totalIn += entry.Amount

		if len(in.UnlockingScript) > MaxScriptBytes || len(entry.LockingScript) > MaxScriptBytes {
			return 0, newErr(ErrScriptFailure, "tx: oversize script")
		}
		if err := ExecuteScript(in.UnlockingScript, entry.LockingScript, in.Signature, sighash); err != nil {
			return 0, err
		}
	}

	if totalIn < totalOut {
		return 0, newErr(ErrInsufficientInputs, "tx: inputs less than outputs")
	}
	return totalIn - totalOut, nil
}

// BlockValidationContext carries the chain state ValidateBlock needs beyond
// the block itself: height, ancestor timestamps for MTP, local wall-clock
// time, and the bits expected at this height.
type BlockValidationContext struct {
	Height uint64
	// AncestorTimestamps holds up to MedianTimePastWindow preceding block
	// timestamps, oldest first, immediately-preceding block last.
	AncestorTimestamps []uint64
	LocalTimeUnix      uint64
	ExpectedBits       uint32
}

// MedianTimePast computes the median of up to the preceding 11 timestamps
// (spec GLOSSARY, §4.4 rule 3). Fewer than 11 are allowed near genesis.
func MedianTimePast(ancestorTimestamps []uint64) uint64 {
	if len(ancestorTimestamps) == 0 {
		return 0
	}
	window := append([]uint64(nil), ancestorTimestamps...)
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
	return window[(len(window)-1)/2]
}

// NormalizeClockReading maps a system-clock reading that has underflowed
// the Unix epoch to zero, never letting a clock anomaly panic or produce a
// negative timestamp (spec §4.4 rule 4, §5 cancellation/timeouts note).
func NormalizeClockReading(unixSeconds int64) uint64 {
	if unixSeconds < 0 {
		return 0
	}
	return uint64(unixSeconds)
}

// ValidateBlock runs the per-block validation of spec §4.4 against a UTXO
// view as of the parent block. view must already reflect every ancestor
// block but not this one. The subsidy for ctx.Height plus the fees of the
// block's own transactions bound the coinbase's total output.
func ValidateBlock(p chainparams.Params, view UTXOView, blk Block, ctx BlockValidationContext) error {
	if err := PowCheck(blk.Header); err != nil {
		return err
	}
	if blk.Header.Bits != ctx.ExpectedBits {
		return newErr(ErrBitsInvalid, "block: bits does not match expected retarget value")
	}

	mtp := MedianTimePast(ctx.AncestorTimestamps)
	if ctx.Height > 0 && blk.Header.Timestamp <= mtp {
		return newErr(ErrTimestampInvalid, "block: timestamp not strictly greater than MTP")
	}
	if blk.Header.Timestamp > ctx.LocalTimeUnix+chainparams.MaxFutureDrift {
		return newErr(ErrTimestampInvalid, "block: timestamp too far in the future")
	}

	if len(blk.Transactions) == 0 || !blk.Transactions[0].IsCoinbase() {
		return newErr(ErrCoinbaseShape, "block: first transaction must be coinbase")
	}
	for _, tx := range blk.Transactions[1:] {
		if tx.IsCoinbase() {
			return newErr(ErrCoinbaseShape, "block: only the first transaction may be coinbase")
		}
	}

	computedRoot, err := BlockMerkleRoot(blk.Transactions)
	if err != nil {
		return err
	}
	if computedRoot != blk.Header.MerkleRoot {
		return newErr(ErrMerkleInvalid, "block: merkle root mismatch")
	}

	var totalFees uint64
	for _, tx := range blk.Transactions[1:] {
		fee, err := ValidateTx(view, tx, ctx.Height-1)
		if err != nil {
			return err
		}
		totalFees += fee
	}

	var coinbaseOut uint64
	for _, out := range blk.Transactions[0].Outputs {
		coinbaseOut += out.Amount
	}
	maxCoinbase := Subsidy(p, ctx.Height) + totalFees
	if coinbaseOut > maxCoinbase {
		return newErr(ErrCoinbaseOverpay, "block: coinbase output exceeds subsidy plus fees")
	}

	if uint64(len(EncodeBlock(blk))) > p.MaxBlockSerializedBytes {
		return newErr(ErrBlockTooLarge, "block: serialized size exceeds maximum")
	}
	return nil
}
