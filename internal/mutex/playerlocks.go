package mutex

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"stardrift/server/internal/telemetry"
)

// ErrNoPlayers is returned when an acquisition names no player IDs at all.
var ErrNoPlayers = errors.New("mutex: acquisition names no players")

// ActionPlayers is the typed declaration of every player a state-mutating
// action touches. The API layer resolves its own request shape into this
// struct before asking for locks; the lock service never inspects request
// bodies.
type ActionPlayers struct {
	// Acting is the player issuing the action.
	Acting string
	// Others are any secondary players the action involves, such as a trade
	// partner or a diplomacy counterpart. Duplicates and empty entries are
	// tolerated.
	Others []string
}

// IDs returns the distinct, sorted set of player IDs the action touches.
// Sorting is load-bearing: two concurrent actions over an overlapping pair of
// players always acquire the pair in the same relative order, which rules out
// circular waits.
func (a ActionPlayers) IDs() []string {
	seen := make(map[string]struct{}, 1+len(a.Others))
	ids := make([]string, 0, 1+len(a.Others))
	for _, id := range append([]string{a.Acting}, a.Others...) {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PlayerToken pairs an acquired token with the player mutex it belongs to.
type PlayerToken struct {
	PlayerID string
	Token    Token
}

// PlayerLocks hands out per-player mutexes scoped to a game. Each game owns
// an independent map of mutexes, lazily created, so locking player A in game
// X never contends with player A in game Y.
type PlayerLocks struct {
	mu     sync.Mutex
	games  map[string]map[string]*Mutex
	logger telemetry.Logger
}

// NewPlayerLocks constructs the service. The logger may be nil.
func NewPlayerLocks(logger telemetry.Logger) *PlayerLocks {
	return &PlayerLocks{
		games:  make(map[string]map[string]*Mutex),
		logger: logger,
	}
}

// Acquire blocks until every player named by action is locked within gameID
// and returns one token per acquired mutex, in acquisition order.
func (s *PlayerLocks) Acquire(gameID string, action ActionPlayers) ([]PlayerToken, error) {
	if gameID == "" {
		return nil, fmt.Errorf("mutex: acquire with empty game id")
	}
	ids := action.IDs()
	if len(ids) == 0 {
		return nil, ErrNoPlayers
	}
	tokens := make([]PlayerToken, 0, len(ids))
	for _, id := range ids {
		m := s.mutexFor(gameID, id)
		tokens = append(tokens, PlayerToken{PlayerID: id, Token: m.Wait()})
	}
	return tokens, nil
}

// Release frees every lock in tokens for gameID. Releasing an empty token
// list is a no-op, so callers can defer Release unconditionally. Individual
// token mismatches are logged and skipped rather than aborting the rest of
// the release.
func (s *PlayerLocks) Release(gameID string, tokens []PlayerToken) {
	if len(tokens) == 0 {
		return
	}
	for _, pt := range tokens {
		m := s.lookup(gameID, pt.PlayerID)
		if m == nil {
			s.warn("release for unknown lock game=%s player=%s", gameID, pt.PlayerID)
			continue
		}
		if err := m.Release(pt.Token); err != nil {
			s.warn("release failed game=%s player=%s: %v", gameID, pt.PlayerID, err)
		}
	}
}

// Forget drops the mutex map for a finished game. Safe to call while no
// locks are outstanding; outstanding holders keep their mutex alive through
// their own references.
func (s *PlayerLocks) Forget(gameID string) {
	s.mu.Lock()
	delete(s.games, gameID)
	s.mu.Unlock()
}

func (s *PlayerLocks) mutexFor(gameID, playerID string) *Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	players, ok := s.games[gameID]
	if !ok {
		players = make(map[string]*Mutex)
		s.games[gameID] = players
	}
	m, ok := players[playerID]
	if !ok {
		m = New(s.logger)
		players[playerID] = m
	}
	return m
}

func (s *PlayerLocks) lookup(gameID, playerID string) *Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	players, ok := s.games[gameID]
	if !ok {
		return nil
	}
	return players[playerID]
}

func (s *PlayerLocks) warn(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf("[playerlocks] "+format, args...)
	}
}
