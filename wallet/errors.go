package wallet

import "errors"

// Sentinel errors for the conditions spec §4.6 names explicitly.
var (
	ErrMissingSeed      = errors.New("wallet: key entry has no seed; signing unavailable")
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	ErrUtxoContended    = errors.New("wallet: one or more selected outpoints are already reserved")
	ErrWalletLocked     = errors.New("wallet: locked")
	ErrUnknownAddress   = errors.New("wallet: no key entry for address")
)
