// Package process implements the generic mutable-state container and
// child-process supervision contract of spec §4.9: StateManager[T] wraps
// every piece of user-facing mutable state (node status, mining status,
// wallet summary) so subscribers observe every transition in commit order,
// and ProcessHandle supervises a spawned child process's health and
// restart policy. Both generalize the health-check/state-machine idiom the
// teacher's HSM failover monitor uses for one specific device into a
// reusable shape (ticker-driven checks, threshold/window-based escalation,
// structured status callbacks) for arbitrary state and arbitrary
// supervised children.
package process

import (
	"sync"

	"github.com/btpc-network/btpc/nodeerrors"
)

// StateManager is a typed container: a value, an event name, and a set of
// subscriber channels. Update acquires an exclusive lock, applies the
// mutator, snapshots the result, releases the lock, and only then emits to
// subscribers — so no subscriber ever observes a value the lock hasn't
// already released (spec §4.9, §5 "event emission is ordered with respect
// to the commit of that update").
type StateManager[T any] struct {
	mu       sync.Mutex
	value    T
	poisoned bool

	eventName string
	nextSubID int
	subs      map[int]chan T
}

// NewStateManager constructs a manager holding initial, emitting eventName
// to subscribers on every successful Update.
func NewStateManager[T any](eventName string, initial T) *StateManager[T] {
	return &StateManager[T]{value: initial, eventName: eventName, subs: make(map[int]chan T)}
}

// EventName is the event subscribers should expect on the channel
// Subscribe returns (spec §6's StateManager-emitted snake_case names).
func (s *StateManager[T]) EventName() string { return s.eventName }

// Get returns the current snapshot, or MutexPoisoned if a prior Update
// panicked.
func (s *StateManager[T]) Get() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned {
		var zero T
		return zero, nodeerrors.NewMutexPoisoned(s.eventName)
	}
	return s.value, nil
}

// Update applies mutate to the current value under the exclusive lock and
// emits the resulting snapshot to subscribers after releasing it. A
// mutator that panics poisons the manager permanently: every subsequent
// Update/Get returns MutexPoisoned instead of panicking the process (spec
// §7 "mutex-poison maps to a first-class error, never a panic").
func (s *StateManager[T]) Update(mutate func(T) T) (T, error) {
	s.mu.Lock()
	if s.poisoned {
		s.mu.Unlock()
		var zero T
		return zero, nodeerrors.NewMutexPoisoned(s.eventName)
	}

	var snapshot T
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		s.value = mutate(s.value)
		snapshot = s.value
	}()

	if recovered != nil {
		s.poisoned = true
		s.mu.Unlock()
		logger.Error("state manager poisoned by panicking mutator", "event", s.eventName, "recovered", recovered)
		var zero T
		return zero, nodeerrors.NewMutexPoisoned(s.eventName)
	}
	s.mu.Unlock()

	s.emit(snapshot)
	return snapshot, nil
}

// Subscribe registers a new subscriber and returns its channel (buffered
// to capacity, so a slow subscriber drops rather than blocks future
// Update calls) plus an unsubscribe handle the caller must release.
func (s *StateManager[T]) Subscribe(capacity int) (<-chan T, *Subscription) {
	if capacity < 1 {
		capacity = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan T, capacity)
	s.subs[id] = ch
	return ch, &Subscription{unsubscribe: func() { s.unsubscribe(id) }}
}

func (s *StateManager[T]) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *StateManager[T]) emit(snapshot T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Subscription is the explicit unsubscribe handle Subscribe returns;
// orchestration code tracks and releases these on teardown (spec §4.9).
type Subscription struct {
	unsubscribe func()
	once        sync.Once
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
}
