package consensus

import "testing"

func TestValidationErrorMessageFormat(t *testing.T) {
	err := newErr(ErrPowInvalid, "hash exceeds target")
	if err.Error() != "POW_INVALID: hash exceeds target" {
		t.Fatalf("unexpected error message: %q", err.Error())
	}
}

func TestIsConsensusViolationExcludesParseErrors(t *testing.T) {
	if IsConsensusViolation(newErr(ErrParse, "truncated")) {
		t.Fatal("parse errors should not count as consensus violations")
	}
	if !IsConsensusViolation(newErr(ErrPowInvalid, "bad pow")) {
		t.Fatal("pow errors should count as consensus violations")
	}
	if IsConsensusViolation(nil) {
		t.Fatal("nil error should not count as a consensus violation")
	}
}
