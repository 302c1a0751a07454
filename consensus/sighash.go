package consensus

import "github.com/btpc-network/btpc/crypto"

// Sighash computes the canonical digest a signature commits to: the SHA-512
// hash of the transaction's canonical encoding with every input's detached
// Signature field cleared (spec §3 TxInput, §4.4 rule 6, GLOSSARY
// "Sighash"). This is a whole-transaction commitment (the PQ-native
// analogue of SIGHASH_ALL); there is no per-sighash-type flag in this
// protocol's minimal opcode set.
func Sighash(tx Tx) [64]byte {
	stripped := Tx{
		Version:  tx.Version,
		Outputs:  tx.Outputs,
		LockTime: tx.LockTime,
	}
	stripped.Inputs = make([]TxInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		stripped.Inputs[i] = TxInput{
			PrevOut:         in.PrevOut,
			UnlockingScript: in.UnlockingScript,
			Sequence:        in.Sequence,
			// Signature intentionally omitted.
		}
	}
	return crypto.Hash512(EncodeTx(stripped))
}
