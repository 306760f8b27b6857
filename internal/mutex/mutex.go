// Package mutex provides the asynchronous mutual-exclusion primitives that
// keep player actions from racing a running game tick. A Mutex hands out an
// opaque token on acquisition; the same token must come back on release,
// which catches double-release and cross-release caller bugs instead of
// silently corrupting the queue.
package mutex

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"stardrift/server/internal/telemetry"
)

var (
	// ErrNotHeld is returned when releasing a mutex nobody holds.
	ErrNotHeld = errors.New("mutex: release of a lock that is not held")
	// ErrTokenMismatch is returned when the presented token does not match
	// the outstanding one.
	ErrTokenMismatch = errors.New("mutex: token does not match current holder")
)

// Token is the opaque handle returned by Wait. It combines the acquisition
// timestamp with a random nonce so a forged or stale token is astronomically
// unlikely to collide with the outstanding one.
type Token uint64

func newToken() Token {
	// High bits carry the timestamp, low 16 a nonce. Collisions only matter
	// within a single mutex's current holder, so this is far stronger than
	// needed.
	return Token(uint64(time.Now().UnixNano())<<16 | uint64(rand.Uint32()&0xffff))
}

// Mutex is a single-resource lock with a FIFO waiting queue. Unlike
// sync.Mutex it may be released by a different goroutine than the one that
// acquired it, which is what the lock service needs: an HTTP handler acquires
// and a deferred cleanup path releases.
//
// Cancellation is deliberately unsupported. A waiter that abandons its slot
// without releasing would wedge the queue, so callers pair every Wait with a
// deferred Release on all exit paths.
type Mutex struct {
	mu      sync.Mutex
	held    bool
	current Token
	waiters []chan Token
	logger  telemetry.Logger
}

// New constructs a Mutex. The logger may be nil.
func New(logger telemetry.Logger) *Mutex {
	return &Mutex{logger: logger}
}

// Wait blocks until the resource is free, marks it held and returns the
// holder token. Waiters are unblocked strictly in arrival order.
func (m *Mutex) Wait() Token {
	m.mu.Lock()
	if !m.held {
		m.held = true
		m.current = newToken()
		token := m.current
		m.mu.Unlock()
		return token
	}
	ch := make(chan Token, 1)
	m.waiters = append(m.waiters, ch)
	m.mu.Unlock()
	return <-ch
}

// TryWait acquires the mutex only if it is currently free.
func (m *Mutex) TryWait() (Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held {
		return 0, false
	}
	m.held = true
	m.current = newToken()
	return m.current, true
}

// Release frees the resource if token matches the outstanding holder, then
// hands the lock to the oldest waiter if any. A mismatched token is rejected
// and logged: it means some caller is releasing a lock it does not hold.
func (m *Mutex) Release(token Token) error {
	m.mu.Lock()
	if !m.held {
		m.mu.Unlock()
		m.warn("release called while unlocked token=%d", token)
		return ErrNotHeld
	}
	if token != m.current {
		m.mu.Unlock()
		m.warn("release token mismatch presented=%d", token)
		return ErrTokenMismatch
	}
	if len(m.waiters) > 0 {
		next := m.waiters[0]
		m.waiters = m.waiters[1:]
		m.current = newToken()
		handoff := m.current
		m.mu.Unlock()
		next <- handoff
		return nil
	}
	m.held = false
	m.current = 0
	m.mu.Unlock()
	return nil
}

// Held reports whether the mutex is currently held.
func (m *Mutex) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

// Waiting reports the number of queued waiters.
func (m *Mutex) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

func (m *Mutex) warn(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf("[mutex] "+format, args...)
	}
}
