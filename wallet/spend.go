package wallet

import (
	"encoding/hex"
	"sort"

	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/utxo"
)

// Broadcaster submits a signed transaction to the network. The RPC layer
// implements this; the wallet package only depends on the interface so it
// stays free of transport concerns (spec §4.6.4 step 7 "Broadcast via RPC").
type Broadcaster interface {
	BroadcastTx(tx consensus.Tx) error
}

// SpendRequest is the input to Send (spec §4.6.4).
type SpendRequest struct {
	RecipientAddress string
	Amount           uint64
	Fee              uint64
	// ChangeAddress receives any remainder above Amount+Fee. If empty, the
	// wallet's own first address is used.
	ChangeAddress string
}

// candidate pairs a spendable outpoint with its UTXO entry for selection.
type candidate struct {
	op    consensus.OutPoint
	entry consensus.UTXOEntry
}

// selectCoins picks from candidates, largest-first, until the running sum
// covers target (spec §4.6.4 step 1: "largest-first, or a simple
// branch-and-bound").
func selectCoins(candidates []candidate, target uint64) ([]candidate, uint64, bool) {
	sorted := append([]candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].entry.Amount > sorted[j].entry.Amount })

	var sum uint64
	var picked []candidate
	for _, c := range sorted {
		if sum >= target {
			break
		}
		picked = append(picked, c)
		sum += c.entry.Amount
	}
	return picked, sum, sum >= target
}

// Send builds, signs, and broadcasts a spend transaction (spec §4.6.4
// steps 1-8). candidates should already be restricted to UTXOs this wallet
// owns (e.g. via UTXOsForAddress across all of the wallet's addresses).
// reservations prevents two concurrent sends from selecting the same
// outpoint; on any failure the reservation is released before Send
// returns, so the outpoints are immediately available again.
func (m *Manager) Send(req SpendRequest, candidates map[consensus.OutPoint]consensus.UTXOEntry, reservations *utxo.Manager) (consensus.Tx, error) {
	return m.send(req, candidates, reservations, nil)
}

// SendAndBroadcast is Send followed by bc.BroadcastTx and the
// mark-spent-or-release bookkeeping spec §4.6.4 steps 7-8 describe.
func (m *Manager) SendAndBroadcast(req SpendRequest, candidates map[consensus.OutPoint]consensus.UTXOEntry, reservations *utxo.Manager, bc Broadcaster) (consensus.Tx, error) {
	return m.send(req, candidates, reservations, bc)
}

func (m *Manager) send(req SpendRequest, candidates map[consensus.OutPoint]consensus.UTXOEntry, reservations *utxo.Manager, bc Broadcaster) (consensus.Tx, error) {
	m.mu.RLock()
	if !m.unlocked {
		m.mu.RUnlock()
		return consensus.Tx{}, ErrWalletLocked
	}
	changeAddr := req.ChangeAddress
	if changeAddr == "" && len(m.data.Keys) > 0 {
		changeAddr = m.data.Keys[0].Address
	}
	m.mu.RUnlock()

	target := req.Amount + req.Fee
	pool := make([]candidate, 0, len(candidates))
	for op, entry := range candidates {
		pool = append(pool, candidate{op: op, entry: entry})
	}

	// Selection races against other concurrent sends from the same wallet:
	// if the outpoints picked this round were reserved by another in-flight
	// send first, retry excluding them, since a disjoint UTXO may still
	// cover the target.
	excluded := make(map[consensus.OutPoint]struct{})
	var selected []candidate
	var sum uint64
	var token *utxo.ReservationToken
	var outpoints []consensus.OutPoint
	firstAttempt := true
	for {
		avail := make([]candidate, 0, len(pool))
		for _, c := range pool {
			if _, skip := excluded[c.op]; !skip {
				avail = append(avail, c)
			}
		}
		sel, s, ok := selectCoins(avail, target)
		if !ok {
			if firstAttempt {
				return consensus.Tx{}, ErrInsufficientFunds
			}
			return consensus.Tx{}, ErrUtxoContended
		}
		firstAttempt = false

		attemptOutpoints := make([]consensus.OutPoint, len(sel))
		for i, c := range sel {
			attemptOutpoints[i] = c.op
		}
		tok, err := reservations.Reserve(attemptOutpoints)
		if err == nil {
			selected, sum, token, outpoints = sel, s, tok, attemptOutpoints
			break
		}
		if err != utxo.ErrAlreadyReserved {
			return consensus.Tx{}, err
		}
		for _, op := range attemptOutpoints {
			excluded[op] = struct{}{}
		}
	}
	succeeded := false
	defer func() {
		if !succeeded {
			token.Release()
		}
	}()

	tx, err := m.buildSignedTx(req, selected, sum, changeAddr)
	if err != nil {
		return consensus.Tx{}, err
	}

	if bc != nil {
		if err := bc.BroadcastTx(tx); err != nil {
			return consensus.Tx{}, err
		}
	}

	succeeded = true
	reservations.MarkSpent(outpoints)
	token.Release()
	return tx, nil
}

func (m *Manager) buildSignedTx(req SpendRequest, selected []candidate, sum uint64, changeAddr string) (consensus.Tx, error) {
	recipientHash, err := AddressHash(req.RecipientAddress)
	if err != nil {
		return consensus.Tx{}, err
	}
	recipientScript, err := LockingScriptFor(recipientHash)
	if err != nil {
		return consensus.Tx{}, err
	}

	outputs := []consensus.TxOutput{{Amount: req.Amount, LockingScript: recipientScript}}
	if change := sum - req.Amount - req.Fee; change > 0 {
		changeHash, err := AddressHash(changeAddr)
		if err != nil {
			return consensus.Tx{}, err
		}
		changeScript, err := LockingScriptFor(changeHash)
		if err != nil {
			return consensus.Tx{}, err
		}
		outputs = append(outputs, consensus.TxOutput{Amount: change, LockingScript: changeScript})
	}

	tx := consensus.Tx{
		Version: 1,
		Inputs:  make([]consensus.TxInput, len(selected)),
		Outputs: outputs,
	}
	for i, c := range selected {
		tx.Inputs[i] = consensus.TxInput{PrevOut: c.op, Sequence: 0xffffffff}
	}

	sighash := consensus.Sighash(tx)
	for i, c := range selected {
		addr, ok := addressHashFromLockingScript(c.entry.LockingScript)
		if !ok {
			return consensus.Tx{}, ErrUnknownAddress
		}
		entryAddr := hex.EncodeToString(addr[:])
		keyEntry, ok := m.keyFor(entryAddr)
		if !ok {
			return consensus.Tx{}, ErrUnknownAddress
		}
		if !keyEntry.CanSign() {
			return consensus.Tx{}, ErrMissingSeed
		}
		pubkey, sig, err := signWithSeed(keyEntry.Seed, sighash)
		if err != nil {
			return consensus.Tx{}, err
		}
		tx.Inputs[i].Signature = sig
		tx.Inputs[i].UnlockingScript = UnlockingScriptFor(pubkey)
	}

	return tx, nil
}
