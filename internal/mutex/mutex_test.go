package mutex

import (
	"sync"
	"testing"
	"time"
)

func TestMutexProvidesMutualExclusion(t *testing.T) {
	m := New(nil)
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token := m.Wait()
			value := counter
			time.Sleep(time.Microsecond)
			counter = value + 1
			if err := m.Release(token); err != nil {
				t.Errorf("release failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 serialized increments, got %d", counter)
	}
	if m.Held() {
		t.Fatal("mutex still held after all releases")
	}
}

func TestMutexWakesWaitersInArrivalOrder(t *testing.T) {
	m := New(nil)
	first := m.Wait()

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	ready := make(chan struct{}, 3)

	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ready <- struct{}{}
			token := m.Wait()
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			m.Release(token)
		}(i)
		<-ready
		// Wait until the goroutine is queued before starting the next so the
		// arrival order is deterministic.
		for m.Waiting() < i {
			time.Sleep(time.Millisecond)
		}
	}

	if err := m.Release(first); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	wg.Wait()

	for i, n := range order {
		if n != i+1 {
			t.Fatalf("waiters woke out of order: %v", order)
		}
	}
}

func TestMutexRejectsBadRelease(t *testing.T) {
	m := New(nil)

	if err := m.Release(42); err != ErrNotHeld {
		t.Fatalf("expected ErrNotHeld for an unlocked release, got %v", err)
	}

	token := m.Wait()
	if err := m.Release(token + 1); err != ErrTokenMismatch {
		t.Fatalf("expected ErrTokenMismatch for a forged token, got %v", err)
	}
	if !m.Held() {
		t.Fatal("mutex should still be held after a rejected release")
	}

	if err := m.Release(token); err != nil {
		t.Fatalf("valid release failed: %v", err)
	}
	if err := m.Release(token); err != ErrNotHeld {
		t.Fatalf("expected ErrNotHeld for a double release, got %v", err)
	}
}

func TestTryWait(t *testing.T) {
	m := New(nil)

	token, ok := m.TryWait()
	if !ok {
		t.Fatal("TryWait on a free mutex should succeed")
	}
	if _, ok := m.TryWait(); ok {
		t.Fatal("TryWait on a held mutex should fail")
	}
	if err := m.Release(token); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, ok := m.TryWait(); !ok {
		t.Fatal("TryWait should succeed again after release")
	}
}

func TestActionPlayersIDsSortedAndDeduped(t *testing.T) {
	action := ActionPlayers{
		Acting: "charlie",
		Others: []string{"alpha", "charlie", "", "bravo", "alpha"},
	}

	ids := action.IDs()
	want := []string{"alpha", "bravo", "charlie"}
	if len(ids) != len(want) {
		t.Fatalf("IDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", ids, want)
		}
	}
}

func TestPlayerLocksOverlappingActionsCannotDeadlock(t *testing.T) {
	locks := NewPlayerLocks(nil)

	// Two actions over the same player pair, declared in opposite order.
	// Sorted acquisition means they cannot deadlock no matter the schedule.
	done := make(chan struct{}, 2)
	for i := 0; i < 100; i++ {
		go func() {
			tokens, err := locks.Acquire("game-1", ActionPlayers{Acting: "alice", Others: []string{"bob"}})
			if err != nil {
				t.Errorf("acquire failed: %v", err)
			}
			locks.Release("game-1", tokens)
			done <- struct{}{}
		}()
		go func() {
			tokens, err := locks.Acquire("game-1", ActionPlayers{Acting: "bob", Others: []string{"alice"}})
			if err != nil {
				t.Errorf("acquire failed: %v", err)
			}
			locks.Release("game-1", tokens)
			done <- struct{}{}
		}()
	}

	timeout := time.After(10 * time.Second)
	for i := 0; i < 200; i++ {
		select {
		case <-done:
		case <-timeout:
			t.Fatal("overlapping player actions deadlocked")
		}
	}
}

func TestPlayerLocksScopedPerGame(t *testing.T) {
	locks := NewPlayerLocks(nil)

	tokens, err := locks.Acquire("game-1", ActionPlayers{Acting: "alice"})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// The same player in another game must not block.
	acquired := make(chan struct{})
	go func() {
		other, err := locks.Acquire("game-2", ActionPlayers{Acting: "alice"})
		if err != nil {
			t.Errorf("acquire failed: %v", err)
		}
		locks.Release("game-2", other)
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("lock for the same player in a different game blocked")
	}

	locks.Release("game-1", tokens)
}

func TestPlayerLocksReleaseTolerant(t *testing.T) {
	locks := NewPlayerLocks(nil)

	// Releasing nothing is a no-op.
	locks.Release("game-1", nil)

	// Releasing unknown locks is logged and skipped, not fatal.
	locks.Release("game-1", []PlayerToken{{PlayerID: "ghost", Token: 7}})

	tokens, err := locks.Acquire("game-1", ActionPlayers{Acting: "alice"})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	locks.Release("game-1", tokens)
	// A second release of the same tokens is skipped without wedging the lock.
	locks.Release("game-1", tokens)

	again, err := locks.Acquire("game-1", ActionPlayers{Acting: "alice"})
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	locks.Release("game-1", again)
}

func TestPlayerLocksRejectEmptyAction(t *testing.T) {
	locks := NewPlayerLocks(nil)

	if _, err := locks.Acquire("game-1", ActionPlayers{}); err != ErrNoPlayers {
		t.Fatalf("expected ErrNoPlayers, got %v", err)
	}
	if _, err := locks.Acquire("", ActionPlayers{Acting: "alice"}); err == nil {
		t.Fatal("expected an error for an empty game id")
	}
}
