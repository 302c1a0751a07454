package process

import (
	"errors"
	"testing"
	"time"

	"github.com/btpc-network/btpc/nodeerrors"
)

func TestStateManagerUpdateEmitsAfterRelease(t *testing.T) {
	sm := NewStateManager("node_status_changed", 0)
	ch, sub := sm.Subscribe(4)
	defer sub.Close()

	got, err := sm.Update(func(v int) int { return v + 1 })
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got != 1 {
		t.Fatalf("snapshot = %d, want 1", got)
	}

	select {
	case v := <-ch:
		if v != 1 {
			t.Fatalf("subscriber saw %d, want 1", v)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the update")
	}
}

func TestStateManagerGetReflectsLatest(t *testing.T) {
	sm := NewStateManager("mining_status_changed", "idle")
	if _, err := sm.Update(func(string) string { return "running" }); err != nil {
		t.Fatal(err)
	}
	got, err := sm.Get()
	if err != nil {
		t.Fatal(err)
	}
	if got != "running" {
		t.Fatalf("Get() = %q, want %q", got, "running")
	}
}

func TestStateManagerPoisonsOnMutatorPanic(t *testing.T) {
	sm := NewStateManager("wallet_summary_changed", 0)
	_, err := sm.Update(func(int) int { panic("boom") })
	if err == nil {
		t.Fatal("expected an error from a panicking mutator")
	}
	var nerr *nodeerrors.Error
	if !errors.As(err, &nerr) || nerr.Kind != nodeerrors.MutexPoisoned {
		t.Fatalf("error = %v, want a MutexPoisoned nodeerrors.Error", err)
	}

	if _, err := sm.Get(); err == nil {
		t.Fatal("expected Get to also report MutexPoisoned once poisoned")
	}
	if _, err := sm.Update(func(v int) int { return v }); err == nil {
		t.Fatal("expected Update to also report MutexPoisoned once poisoned")
	}
}

func TestStateManagerSubscriptionCloseStopsDelivery(t *testing.T) {
	sm := NewStateManager("node_status_changed", 0)
	ch, sub := sm.Subscribe(1)
	sub.Close()
	sub.Close() // safe to call twice

	if _, err := sm.Update(func(v int) int { return v + 1 }); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected the channel to be closed after unsubscribing")
	}
}

func TestStateManagerSlowSubscriberDoesNotBlockUpdate(t *testing.T) {
	sm := NewStateManager("node_status_changed", 0)
	_, sub := sm.Subscribe(1) // capacity 1, nobody ever reads it
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			if _, err := sm.Update(func(v int) int { return v + 1 }); err != nil {
				t.Error(err)
			}
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Update blocked on a full subscriber channel")
	}
}
