package consensus

import (
	"bytes"

	"github.com/btpc-network/btpc/crypto"
)

// Opcode is one instruction of the minimal fixed opcode set spec §4.4 rule
// 5 allows: PUSH, DUP, HASH, EQUAL, CHECKSIG, IF/ELSE/ENDIF. There is no
// general-purpose scripting VM (spec §1 Non-goals).
type Opcode byte

const (
	OpPush     Opcode = 0x01 // followed by a CompactSize length and that many literal bytes
	OpDup      Opcode = 0x02
	OpHash     Opcode = 0x03
	OpEqual    Opcode = 0x04
	OpCheckSig Opcode = 0x05
	OpIf       Opcode = 0x06
	OpElse     Opcode = 0x07
	OpEndIf    Opcode = 0x08
)

// MaxScriptStackDepth bounds stack growth so a malicious script cannot
// exhaust memory (spec §4.4 "signature-verification cost spikes are
// bounded by rejecting oversize scripts upfront").
const MaxScriptStackDepth = 1000

type scriptVM struct {
	stack  [][]byte
	sighash [64]byte
	sig     []byte
}

func (vm *scriptVM) push(v []byte) error {
	if len(vm.stack) >= MaxScriptStackDepth {
		return newErr(ErrScriptFailure, "stack overflow")
	}
	vm.stack = append(vm.stack, v)
	return nil
}

// top returns the top stack element. Callers must validate non-emptiness
// first; this is the "stack-top access is preceded by emptiness validation"
// contract spec §4.4 rule 5 requires, so this helper only ever panics on a
// caller bug that has already been ruled out — an unreachable invariant,
// not a user-triggerable fault.
func (vm *scriptVM) top() []byte {
	if len(vm.stack) == 0 {
		panic("consensus: scriptVM.top called on empty stack")
	}
	return vm.stack[len(vm.stack)-1]
}

func (vm *scriptVM) pop() ([]byte, error) {
	if len(vm.stack) == 0 {
		return nil, newErr(ErrScriptFailure, "stack underflow")
	}
	v := vm.top()
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func truthy(v []byte) bool {
	for _, b := range v {
		if b != 0 {
			return true
		}
	}
	return false
}

// ExecuteScript runs unlockingScript then lockingScript over a shared
// stack and reports success iff the final stack-top value is truthy (spec
// §4.4 rule 5). sig is the input's detached PQ signature; sighash is the
// digest CHECKSIG verifies it against.
func ExecuteScript(unlockingScript, lockingScript []byte, sig []byte, sighash [64]byte) error {
	vm := &scriptVM{sighash: sighash, sig: sig}
	if err := vm.run(unlockingScript); err != nil {
		return err
	}
	if err := vm.run(lockingScript); err != nil {
		return err
	}
	if len(vm.stack) == 0 {
		return newErr(ErrScriptFailure, "script: empty stack at completion")
	}
	if !truthy(vm.top()) {
		return newErr(ErrScriptFailure, "script: final stack value is not truthy")
	}
	return nil
}

func (vm *scriptVM) run(script []byte) error {
	off := 0
	// execStack tracks, for nested IF/ELSE blocks, whether the current
	// branch is live (all enclosing conditions true).
	var execStack []bool
	isLive := func() bool {
		for _, v := range execStack {
			if !v {
				return false
			}
		}
		return true
	}

	for off < len(script) {
		op := Opcode(script[off])
		off++

		if op == OpIf || op == OpElse || op == OpEndIf {
			switch op {
			case OpIf:
				cond := false
				if isLive() {
					v, err := vm.pop()
					if err != nil {
						return err
					}
					cond = truthy(v)
				}
				execStack = append(execStack, cond)
			case OpElse:
				if len(execStack) == 0 {
					return newErr(ErrScriptFailure, "script: ELSE without IF")
				}
				execStack[len(execStack)-1] = !execStack[len(execStack)-1]
			case OpEndIf:
				if len(execStack) == 0 {
					return newErr(ErrScriptFailure, "script: ENDIF without IF")
				}
				execStack = execStack[:len(execStack)-1]
			}
			continue
		}

		if !isLive() {
			// Skip PUSH payload bytes even inside a dead branch so offsets
			// stay aligned.
			if op == OpPush {
				n, consumed, err := readScriptLen(script[off:])
				if err != nil {
					return err
				}
				off += consumed + n
			}
			continue
		}

		switch op {
		case OpPush:
			n, consumed, err := readScriptLen(script[off:])
			if err != nil {
				return err
			}
			off += consumed
			if off+n > len(script) {
				return newErr(ErrScriptFailure, "script: PUSH truncated")
			}
			if err := vm.push(append([]byte(nil), script[off:off+n]...)); err != nil {
				return err
			}
			off += n
		case OpDup:
			if len(vm.stack) == 0 {
				return newErr(ErrScriptFailure, "DUP: stack underflow")
			}
			if err := vm.push(append([]byte(nil), vm.top()...)); err != nil {
				return err
			}
		case OpHash:
			if len(vm.stack) == 0 {
				return newErr(ErrScriptFailure, "HASH: stack underflow")
			}
			v, err := vm.pop()
			if err != nil {
				return err
			}
			h := crypto.Hash512(v)
			if err := vm.push(h[:]); err != nil {
				return err
			}
		case OpEqual:
			b, err := vm.pop()
			if err != nil {
				return err
			}
			a, err := vm.pop()
			if err != nil {
				return err
			}
			if bytes.Equal(a, b) {
				if err := vm.push([]byte{1}); err != nil {
					return err
				}
			} else {
				if err := vm.push([]byte{0}); err != nil {
					return err
				}
			}
		case OpCheckSig:
			pubkey, err := vm.pop()
			if err != nil {
				return err
			}
			if crypto.VerifyMLDSA87(pubkey, vm.sig, vm.sighash) {
				if err := vm.push([]byte{1}); err != nil {
					return err
				}
			} else {
				if err := vm.push([]byte{0}); err != nil {
					return err
				}
			}
		default:
			return newErr(ErrScriptFailure, "script: unknown opcode")
		}
	}
	if len(execStack) != 0 {
		return newErr(ErrScriptFailure, "script: unterminated IF")
	}
	return nil
}

func readScriptLen(b []byte) (n int, consumed int, err error) {
	if len(b) == 0 {
		return 0, 0, newErr(ErrScriptFailure, "script: truncated PUSH length")
	}
	tag := b[0]
	switch {
	case tag < 0xfd:
		return int(tag), 1, nil
	case tag == 0xfd:
		if len(b) < 3 {
			return 0, 0, newErr(ErrScriptFailure, "script: truncated PUSH length")
		}
		return int(b[1]) | int(b[2])<<8, 3, nil
	default:
		return 0, 0, newErr(ErrScriptFailure, "script: PUSH length too large")
	}
}

// PushData builds a PUSH opcode followed by its CompactSize-style length
// and the literal bytes, as accepted by ExecuteScript. Lengths above 0xfc
// use the 0xfd + 2-byte-LE form; scripts here are small enough that this
// covers every legitimate case.
func PushData(data []byte) []byte {
	out := make([]byte, 0, len(data)+4)
	out = append(out, byte(OpPush))
	switch {
	case len(data) < 0xfd:
		out = append(out, byte(len(data)))
	default:
		out = append(out, 0xfd, byte(len(data)), byte(len(data)>>8))
	}
	out = append(out, data...)
	return out
}
