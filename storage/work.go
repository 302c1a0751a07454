package storage

import "math/big"

var twoTo512 = new(big.Int).Lsh(big.NewInt(1), 512)

// WorkFromTarget returns floor(2^512 / (target+1)), the chainwork a block
// with the given 64-byte target contributes (spec GLOSSARY "cumulative
// work"; sized for this protocol's 512-bit hash, the PQ-appropriate analogue
// of Bitcoin's 2^256/target).
func WorkFromTarget(target [64]byte) *big.Int {
	t := new(big.Int).SetBytes(target[:])
	t.Add(t, big.NewInt(1))
	return new(big.Int).Quo(twoTo512, t)
}
