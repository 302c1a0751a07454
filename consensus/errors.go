package consensus

import "fmt"

// ErrorCode names a stable, machine-checkable validation failure, mirrored
// into the outer nodeerrors taxonomy (spec §7) at the RPC boundary.
type ErrorCode string

const (
	ErrParse              ErrorCode = "PARSE"
	ErrMissingUTXO        ErrorCode = "MISSING_UTXO"
	ErrCoinbaseImmature   ErrorCode = "COINBASE_IMMATURE"
	ErrInsufficientInputs ErrorCode = "INSUFFICIENT_INPUTS"
	ErrScriptFailure      ErrorCode = "SCRIPT_FAILURE"
	ErrSignatureInvalid   ErrorCode = "SIGNATURE_INVALID"
	ErrPowInvalid         ErrorCode = "POW_INVALID"
	ErrBitsInvalid        ErrorCode = "BITS_INVALID"
	ErrTimestampInvalid   ErrorCode = "TIMESTAMP_INVALID"
	ErrMerkleInvalid      ErrorCode = "MERKLE_INVALID"
	ErrCoinbaseShape      ErrorCode = "COINBASE_SHAPE_INVALID"
	ErrCoinbaseOverpay    ErrorCode = "COINBASE_OVERPAY"
	ErrBlockTooLarge      ErrorCode = "BLOCK_TOO_LARGE"
	ErrInsufficientBlocks ErrorCode = "INSUFFICIENT_BLOCKS"
)

// ValidationError is the consensus package's tagged error type: a stable
// Code plus a human-readable Msg. Every rejection path returns one of
// these so callers can classify failures without string matching.
type ValidationError struct {
	Code ErrorCode
	Msg  string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newErr(code ErrorCode, msg string) error {
	return &ValidationError{Code: code, Msg: msg}
}

// IsConsensusViolation reports whether err represents a rule violation
// (spec §7 ConsensusViolation) as opposed to a malformed-input parse error.
func IsConsensusViolation(err error) bool {
	ve, ok := err.(*ValidationError)
	if !ok {
		return false
	}
	return ve.Code != ErrParse
}
