package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func fakeCall(t *testing.T, wantMethod string, wantParams map[string]any, result any) rpcCallFunc {
	t.Helper()
	return func(rpcURL string, timeout time.Duration, method string, params any, out any) error {
		if method != wantMethod {
			t.Fatalf("method = %q, want %q", method, wantMethod)
		}
		b, err := json.Marshal(result)
		if err != nil {
			return err
		}
		if out != nil {
			return json.Unmarshal(b, out)
		}
		return nil
	}
}

func TestCreateSubcommandCallsCreateWallet(t *testing.T) {
	var stdout, stderr bytes.Buffer
	call := fakeCall(t, "create_wallet", nil, map[string]any{"nickname": "primary", "wallet_id": "abc"})
	code := run([]string{"create", "-nickname", "primary", "-password", "hunter2"}, &stdout, &stderr, call)
	if code != 0 {
		t.Fatalf("run() = %d, stderr=%s", code, stderr.String())
	}
	if stdout.Len() == 0 {
		t.Fatal("expected wallet summary printed to stdout")
	}
}

func TestCreateSubcommandRequiresNicknameAndPassword(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"create", "-nickname", "primary"}, &stdout, &stderr, fakeCall(t, "create_wallet", nil, nil))
	if code != 2 {
		t.Fatalf("run() = %d, want 2", code)
	}
}

func TestSendSubcommandRequiresAmount(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"send", "-wallet-id", "abc", "-to", "addr1"}, &stdout, &stderr, fakeCall(t, "send_transaction", nil, nil))
	if code != 2 {
		t.Fatalf("run() = %d, want 2", code)
	}
}

func TestBalanceSubcommandPrintsResult(t *testing.T) {
	var stdout, stderr bytes.Buffer
	call := fakeCall(t, "get_balance", nil, map[string]any{"wallet_id": "abc", "balance": 5000000000})
	code := run([]string{"balance", "-wallet-id", "abc"}, &stdout, &stderr, call)
	if code != 0 {
		t.Fatalf("run() = %d, stderr=%s", code, stderr.String())
	}
}

func TestUnknownSubcommandReturnsUsageError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"frobnicate"}, &stdout, &stderr, fakeCall(t, "", nil, nil))
	if code != 2 {
		t.Fatalf("run() = %d, want 2", code)
	}
}
