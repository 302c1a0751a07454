package consensus

import (
	"bytes"
	"testing"

	"github.com/btpc-network/btpc/chainparams"
)

func TestExpandCompactBitsRoundtrip(t *testing.T) {
	cases := []uint32{0x1d00ffff, 0x1e00ffff, 0x207fffff, 0x1b0404cb, 0x03000001}
	for _, bits := range cases {
		target := ExpandBits(bits)
		back := CompactBits(target)
		reExpanded := ExpandBits(back)
		if !bytes.Equal(target[:], reExpanded[:]) {
			t.Fatalf("bits %#x: expand/compact/expand mismatch", bits)
		}
	}
}

func TestExpandBitsMonotonicWithExponent(t *testing.T) {
	low := ExpandBits(0x03000001)
	high := ExpandBits(0x04000001)
	if bytes.Compare(low[:], high[:]) >= 0 {
		t.Fatal("larger exponent should expand to a larger target")
	}
}

func TestPowCheckAcceptsTrivialRegtestDifficulty(t *testing.T) {
	h := BlockHeader{Bits: chainparams.RegtestParams().MinDifficultyBits}
	if err := PowCheck(h); err != nil {
		t.Fatalf("expected regtest-difficulty header to pass PoW check: %v", err)
	}
}

func TestPowCheckRejectsImpossibleTarget(t *testing.T) {
	h := BlockHeader{Bits: 0x01000001}
	if err := PowCheck(h); err == nil {
		t.Fatal("expected PoW check to fail against a near-zero target")
	}
}

func TestRetargetRejectsShortWindow(t *testing.T) {
	p := chainparams.MainnetParams()
	if _, err := Retarget(p, p.GenesisBits, 0, 100, 1); err == nil {
		t.Fatal("expected error for window with fewer than 2 blocks")
	}
}

func TestRetargetRejectsOutOfOrderTimestamps(t *testing.T) {
	p := chainparams.MainnetParams()
	if _, err := Retarget(p, p.GenesisBits, 100, 0, 2016); err == nil {
		t.Fatal("expected error for last timestamp preceding first")
	}
}

func TestRetargetClampsToQuadrupleBound(t *testing.T) {
	p := chainparams.MainnetParams()
	expectedSpan := p.TargetBlockIntervalSeconds * chainparams.RetargetInterval
	// Blocks arrived instantaneously relative to the expected span: the
	// naive new target would shrink far more than 4x, so it must clamp.
	newBits, err := Retarget(p, p.GenesisBits, 0, 1, 2016)
	if err != nil {
		t.Fatal(err)
	}
	oldTarget := ExpandBits(p.GenesisBits)
	newTarget := ExpandBits(newBits)
	quarter := make([]byte, 64)
	copy(quarter, oldTarget[:])
	if bytes.Compare(newTarget[:], oldTarget[:]) >= 0 {
		t.Fatal("expected tightened (smaller) target for a too-fast window")
	}
	// The clamp floor is exactly oldTarget/4: 0x1d00ffff's target is
	// 0xffff<<208, a quarter of it is 0x3fffc0<<200, encoded as 0x1c3fffc0.
	if newBits != 0x1c3fffc0 {
		t.Fatalf("expected the target to clamp at exactly a quarter of the old one (bits 0x1c3fffc0), got %#x", newBits)
	}
	_ = expectedSpan
}

func TestRetargetFloorsAtMinDifficulty(t *testing.T) {
	p := chainparams.MainnetParams()
	expectedSpan := p.TargetBlockIntervalSeconds * chainparams.RetargetInterval
	// Blocks arrived far slower than expected: naive new target would grow
	// past the network's easiest allowed target, so it must floor there.
	newBits, err := Retarget(p, p.MinDifficultyBits, 0, expectedSpan*1000, 2016)
	if err != nil {
		t.Fatal(err)
	}
	if newBits != p.MinDifficultyBits {
		t.Fatalf("expected retarget to floor at min difficulty bits, got %#x", newBits)
	}
}
