package consensus

import (
	"bytes"
	"math/big"

	"github.com/btpc-network/btpc/chainparams"
)

// ExpandBits decodes the compact "bits" difficulty encoding into a 64-byte
// big-endian target, following the Bitcoin-family convention exactly (spec
// §9 Open Questions: "match the reference exactly"): the high byte is an
// exponent (number of bytes in the full value), the low 3 bytes are the
// mantissa, and the mantissa's sign bit (0x00800000) is never set for a
// valid positive target.
func ExpandBits(bits uint32) [64]byte {
	exponent := int(bits >> 24)
	mantissa := new(big.Int).SetUint64(uint64(bits & 0x007fffff))

	var target *big.Int
	switch {
	case exponent <= 3:
		target = new(big.Int).Rsh(mantissa, uint(8*(3-exponent)))
	default:
		target = new(big.Int).Lsh(mantissa, uint(8*(exponent-3)))
	}

	var out [64]byte
	b := target.Bytes()
	if len(b) > 64 {
		// Overflow: clamp to the maximum representable target.
		for i := range out {
			out[i] = 0xff
		}
		return out
	}
	copy(out[64-len(b):], b)
	return out
}

// CompactBits re-encodes a 64-byte big-endian target into the compact
// "bits" form, the inverse of ExpandBits.
func CompactBits(target [64]byte) uint32 {
	t := new(big.Int).SetBytes(target[:])
	if t.Sign() == 0 {
		return 0
	}
	b := t.Bytes()
	exponent := len(b)
	var mantissaBytes [3]byte
	switch {
	case exponent <= 3:
		copy(mantissaBytes[:], b)
	default:
		copy(mantissaBytes[:], b[:3])
	}
	mantissa := uint32(mantissaBytes[0])<<16 | uint32(mantissaBytes[1])<<8 | uint32(mantissaBytes[2])
	// If the mantissa's top bit is set it would be misread as a sign bit;
	// shift one byte right and bump the exponent, matching the reference
	// encoding's negative-avoidance rule.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return uint32(exponent)<<24 | mantissa
}

// PowCheck reports whether a block header's hash satisfies its own target:
// SHA-512(header) <= target(bits), compared byte-wise as big-endian
// unsigned integers (spec §4.4 rule 1, §6).
func PowCheck(h BlockHeader) error {
	hash := BlockHash(h)
	target := ExpandBits(h.Bits)
	if bytes.Compare(hash[:], target[:]) > 0 {
		return newErr(ErrPowInvalid, "block hash exceeds target")
	}
	return nil
}

// clampTarget clamps newTarget into [oldTarget/4, oldTarget*4], the
// retarget bound of spec §4.4.1.
func clampTarget(oldTarget, newTarget *big.Int) *big.Int {
	lower := new(big.Int).Rsh(oldTarget, 2)
	if lower.Sign() == 0 {
		lower = big.NewInt(1)
	}
	upper := new(big.Int).Lsh(oldTarget, 2)
	if newTarget.Cmp(lower) < 0 {
		return lower
	}
	if newTarget.Cmp(upper) > 0 {
		return upper
	}
	return newTarget
}

// Retarget computes the next difficulty for a completed retarget window
// (spec §4.4.1). timestampFirst/timestampLast are the timestamps of the
// first and last blocks of the just-completed window; windowBlockCount is
// the number of blocks the window actually contained (must be >= 2).
func Retarget(p chainparams.Params, currentBits uint32, timestampFirst, timestampLast uint64, windowBlockCount int) (uint32, error) {
	if windowBlockCount < 2 {
		return 0, newErr(ErrInsufficientBlocks, "retarget window must contain at least 2 blocks")
	}
	if timestampLast < timestampFirst {
		return 0, newErr(ErrTimestampInvalid, "retarget window timestamps out of order")
	}
	actual := timestampLast - timestampFirst
	if actual == 0 {
		actual = 1
	}
	expected := p.TargetBlockIntervalSeconds * chainparams.RetargetInterval

	oldTargetBytes := ExpandBits(currentBits)
	oldTarget := new(big.Int).SetBytes(oldTargetBytes[:])
	if oldTarget.Sign() == 0 {
		return 0, newErr(ErrBitsInvalid, "retarget: current target is zero")
	}

	num := new(big.Int).Mul(oldTarget, new(big.Int).SetUint64(actual))
	den := new(big.Int).SetUint64(expected)
	newTarget := new(big.Int).Div(num, den)
	newTarget = clampTarget(oldTarget, newTarget)

	minTargetBytes := ExpandBits(p.MinDifficultyBits)
	minTarget := new(big.Int).SetBytes(minTargetBytes[:])
	if newTarget.Cmp(minTarget) > 0 {
		newTarget = minTarget
	}

	var out [64]byte
	b := newTarget.Bytes()
	copy(out[64-len(b):], b)
	return CompactBits(out), nil
}
