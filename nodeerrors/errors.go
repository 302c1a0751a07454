// Package nodeerrors implements the stable error taxonomy every outer
// boundary (RPC, CLI, process supervision) converts internal errors into
// before they reach a user (spec §7). Kind is a stable string a client can
// switch on; UserMessage is one clear sentence; TechnicalDetails carries
// the sanitized original error text for an optional "Show Details" view.
package nodeerrors

import "fmt"

// Kind is one of the taxonomy's stable error kinds.
type Kind string

const (
	MalformedInput     Kind = "MalformedInput"
	ConsensusViolation Kind = "ConsensusViolation"
	StorageCorruption  Kind = "StorageCorruption"
	InsufficientFunds  Kind = "InsufficientFunds"
	UtxoContended      Kind = "UtxoContended"
	MissingSeed        Kind = "MissingSeed"
	DecryptionFailed   Kind = "DecryptionFailed"
	MutexPoisoned      Kind = "MutexPoisoned"
	ProcessCrash       Kind = "ProcessCrash"
	RPCTimeout         Kind = "RPCTimeout"
	NetworkError       Kind = "NetworkError"
	DatabaseLock       Kind = "DatabaseLock"
	PortInUse          Kind = "PortInUse"
	LockFileInUse      Kind = "LockFileInUse"
	ValidationFailure  Kind = "ValidationFailure"
)

// Error is the structured form every RPC response's "error" field carries
// (spec §7 "the outermost RPC handler converts every error into a
// structured response with a stable kind and a user-safe user_message").
// It embeds the lower layer's own error (e.g. *consensus.TxError) as Cause
// so callers that want the original typed error can still unwrap it.
type Error struct {
	Kind             Kind   `json:"kind"`
	UserMessage      string `json:"user_message"`
	TechnicalDetails string `json:"technical_details,omitempty"`
	Cause            error  `json:"-"`
}

func (e *Error) Error() string {
	if e.TechnicalDetails != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.UserMessage, e.TechnicalDetails)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.UserMessage)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error, sanitizing cause's text into TechnicalDetails.
func New(kind Kind, userMessage string, cause error) *Error {
	e := &Error{Kind: kind, UserMessage: userMessage, Cause: cause}
	if cause != nil {
		e.TechnicalDetails = Sanitize(cause.Error())
	}
	return e
}

// Field-specific constructors for the kinds that carry a payload in the
// spec's taxonomy (spec §7: "ConsensusViolation(reason)", "MutexPoisoned
// (component)", "ProcessCrash(type)", "ValidationFailure(field, reason)").

func NewConsensusViolation(reason string, cause error) *Error {
	return New(ConsensusViolation, fmt.Sprintf("the chain rejected this: %s", reason), cause)
}

func NewMutexPoisoned(component string) *Error {
	return New(MutexPoisoned, fmt.Sprintf("an internal lock for %s was left in a broken state", component), nil)
}

func NewProcessCrash(processType string, cause error) *Error {
	return New(ProcessCrash, fmt.Sprintf("%s stopped unexpectedly", processType), cause)
}

func NewValidationFailure(field, reason string) *Error {
	return New(ValidationFailure, fmt.Sprintf("%s: %s", field, reason), nil)
}
