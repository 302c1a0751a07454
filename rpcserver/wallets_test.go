package rpcserver

import (
	"testing"
)

func TestCreateWalletThenGetWalletSummary(t *testing.T) {
	s := newTestServer(t)

	var created walletSummary
	resp := call(t, s, "create_wallet", createWalletParams{Nickname: "alice", Password: "hunter22"}, &created)
	mustNotError(t, resp)
	if created.Nickname != "alice" || created.WalletID == "" {
		t.Fatalf("created = %+v", created)
	}

	var summaries []walletSummary
	resp = call(t, s, "get_wallet_summary", nil, &summaries)
	mustNotError(t, resp)
	if len(summaries) != 1 || summaries[0].WalletID != created.WalletID {
		t.Fatalf("summaries = %+v", summaries)
	}
}

// TestWalletRegistryPersistsAcrossRestart exercises wallets_metadata.json's
// round trip: a wallet created under one Server must be loadable by a
// second Server instance pointed at the same data directory, the way a
// node restart would see it (spec §6 "non-secret wallet manifest").
func TestWalletRegistryPersistsAcrossRestart(t *testing.T) {
	s := newTestServer(t)
	var created walletSummary
	resp := call(t, s, "create_wallet", createWalletParams{Nickname: "bob", Password: "correcthorse"}, &created)
	mustNotError(t, resp)

	reloaded, err := loadWalletRegistry(s.dataDir, s.params.Network)
	if err != nil {
		t.Fatalf("loadWalletRegistry: %v", err)
	}
	rec, ok := reloaded.byNickname["bob"]
	if !ok {
		t.Fatal("expected wallet \"bob\" to survive a registry reload")
	}
	if rec.record.WalletID != created.WalletID {
		t.Fatalf("reloaded wallet_id = %q, want %q", rec.record.WalletID, created.WalletID)
	}
	// A reloaded record knows its path but has no live Manager until
	// load_wallet is called again.
	if rec.manager != nil {
		t.Fatal("a freshly reloaded registry entry should not already have a live Manager")
	}
}

func TestLockWalletsClearsCachedPassword(t *testing.T) {
	s := newTestServer(t)
	var created walletSummary
	mustNotError(t, call(t, s, "create_wallet", createWalletParams{Nickname: "carol", Password: "sekrit123"}, &created))

	mustNotError(t, call(t, s, "lock_wallets", nil, nil))

	entry, err := s.wallets.byID(created.WalletID)
	if err == nil {
		t.Fatalf("expected byID to reject a locked wallet, got entry %+v", entry)
	}

	mustNotError(t, call(t, s, "unlock_wallets", unlockWalletsParams{Password: "sekrit123"}, nil))
	entry, err = s.wallets.byID(created.WalletID)
	if err != nil {
		t.Fatalf("byID after unlock: %v", err)
	}
	if entry.password == nil {
		t.Fatal("expected unlock_wallets to repopulate the cached password")
	}
}

func TestNewAddressAddsAnAddressToTheWallet(t *testing.T) {
	s := newTestServer(t)
	var created walletSummary
	mustNotError(t, call(t, s, "create_wallet", createWalletParams{Nickname: "dave", Password: "passw0rd!!"}, &created))
	before := len(created.Addresses)

	var addrResult map[string]string
	mustNotError(t, call(t, s, "new_address", newAddressParams{WalletID: created.WalletID}, &addrResult))
	if addrResult["address"] == "" {
		t.Fatal("expected a non-empty address")
	}

	var summaries []walletSummary
	mustNotError(t, call(t, s, "get_wallet_summary", nil, &summaries))
	if len(summaries[0].Addresses) != before+1 {
		t.Fatalf("addresses after new_address = %d, want %d", len(summaries[0].Addresses), before+1)
	}
}

func TestGetBalanceUnknownWalletIsValidationFailure(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "get_balance", getBalanceParams{WalletID: "no-such-id"}, nil)
	if resp.Error == nil || resp.Error.Data.Kind != "ValidationFailure" {
		t.Fatalf("resp.Error = %+v, want ValidationFailure", resp.Error)
	}
}
