package nodeerrors

import (
	"errors"
	"strings"
	"testing"
)

func TestNewSanitizesCauseIntoTechnicalDetails(t *testing.T) {
	cause := errors.New(`decrypt failed: password="hunter2" seed=deadbeef`)
	e := New(DecryptionFailed, "could not unlock this wallet", cause)
	if strings.Contains(e.TechnicalDetails, "hunter2") {
		t.Fatalf("password leaked into technical details: %q", e.TechnicalDetails)
	}
	if strings.Contains(e.TechnicalDetails, "deadbeef") {
		t.Fatalf("seed leaked into technical details: %q", e.TechnicalDetails)
	}
	if !strings.Contains(e.TechnicalDetails, "password=[REDACTED]") {
		t.Fatalf("expected redacted password marker, got %q", e.TechnicalDetails)
	}
}

func TestErrorUnwrapsToCause(t *testing.T) {
	cause := errors.New("boom")
	e := New(NetworkError, "could not reach the peer", cause)
	if !errors.Is(e, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestSanitizePassesThroughUnlabelledText(t *testing.T) {
	in := "connection refused: no route to host"
	if got := Sanitize(in); got != in {
		t.Fatalf("Sanitize(%q) = %q, want unchanged", in, got)
	}
}

func TestSanitizeRedactsSkHexAndKekHex(t *testing.T) {
	in := "failed to wrap sk-hex=ab12cd34 under kek-hex:ff00ff00"
	got := Sanitize(in)
	if strings.Contains(got, "ab12cd34") || strings.Contains(got, "ff00ff00") {
		t.Fatalf("key material leaked: %q", got)
	}
}

func TestValidationFailureFormatsFieldAndReason(t *testing.T) {
	e := NewValidationFailure("bind_addr", "missing port")
	if e.Kind != ValidationFailure {
		t.Fatalf("Kind = %v, want ValidationFailure", e.Kind)
	}
	if !strings.Contains(e.UserMessage, "bind_addr") || !strings.Contains(e.UserMessage, "missing port") {
		t.Fatalf("UserMessage = %q, want it to mention field and reason", e.UserMessage)
	}
}
