// Package store is the persistence collaborator: it owns every game between
// ticks. Games are stored as lz4-compressed JSON blobs in sqlite alongside
// the scheduling columns the tick job queries, plus a blake3 checksum so a
// corrupted blob is detected on load rather than fed to the engine.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"

	"stardrift/server/internal/game"
)

var (
	// ErrNotFound is returned when no game exists with the requested ID.
	ErrNotFound = errors.New("store: game not found")
	// ErrChecksum is returned when a stored blob fails integrity
	// verification.
	ErrChecksum = errors.New("store: game blob failed checksum verification")
)

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	time_model TEXT NOT NULL,
	tick INTEGER NOT NULL DEFAULT 0,
	paused INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER,
	ended_at INTEGER,
	last_tick_at INTEGER,
	state_blob BLOB NOT NULL,
	checksum TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_games_due ON games (ended_at, paused, last_tick_at);
`

// Open opens (creating if necessary) the database at path. Pass ":memory:"
// for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveGame upserts the full game state. Called once per completed tick and
// after player actions; never mid-tick.
func (s *Store) SaveGame(ctx context.Context, g *game.Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("store: marshal game %s: %w", g.ID, err)
	}
	blob, err := compress(raw)
	if err != nil {
		return fmt.Errorf("store: compress game %s: %w", g.ID, err)
	}
	sum := blake3.Sum256(raw)
	checksum := hex.EncodeToString(sum[:])

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO games (id, name, time_model, tick, paused, started_at, ended_at, last_tick_at, state_blob, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			time_model = excluded.time_model,
			tick = excluded.tick,
			paused = excluded.paused,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			last_tick_at = excluded.last_tick_at,
			state_blob = excluded.state_blob,
			checksum = excluded.checksum`,
		g.ID, g.Settings.Name, string(g.Settings.TimeModel), g.State.Tick,
		boolInt(g.State.Paused), unixOrNil(g.State.StartedAt), unixOrNil(g.State.EndedAt),
		unixOrNil(g.State.LastTickAt), blob, checksum)
	if err != nil {
		return fmt.Errorf("store: save game %s: %w", g.ID, err)
	}
	return nil
}

// LoadGame fetches and verifies one game.
func (s *Store) LoadGame(ctx context.Context, id string) (*game.Game, error) {
	var blob []byte
	var checksum string
	err := s.db.QueryRowContext(ctx,
		"SELECT state_blob, checksum FROM games WHERE id = ?", id).Scan(&blob, &checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load game %s: %w", id, err)
	}

	raw, err := decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("store: decompress game %s: %w", id, err)
	}
	sum := blake3.Sum256(raw)
	if hex.EncodeToString(sum[:]) != checksum {
		return nil, fmt.Errorf("%w: %s", ErrChecksum, id)
	}

	var g game.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("store: unmarshal game %s: %w", id, err)
	}
	return &g, nil
}

// DeleteGame removes a game permanently.
func (s *Store) DeleteGame(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM games WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete game %s: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListGamesDueForTick returns the IDs of games eligible to advance: started,
// unfinished, unpaused, and past the tick interval since their last tick.
// Turn-based games are always returned; the engine itself gates on player
// readiness.
func (s *Store) ListGamesDueForTick(ctx context.Context, now time.Time, tickInterval time.Duration) ([]string, error) {
	cutoff := now.Add(-tickInterval).Unix()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM games
		WHERE started_at IS NOT NULL
		  AND started_at <= ?
		  AND ended_at IS NULL
		  AND paused = 0
		  AND (time_model = ? OR last_tick_at IS NULL OR last_tick_at <= ?)
		ORDER BY id`,
		now.Unix(), string(game.TimeTurnBased), cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: list due games: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// ListFinishedBefore returns games that ended before the cutoff, for the
// cleanup job.
func (s *Store) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM games WHERE ended_at IS NOT NULL AND ended_at < ? ORDER BY id", cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("store: list finished games: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// ListOpenGames returns the IDs of every unfinished game, for loading the
// runtime registry at startup.
func (s *Store) ListOpenGames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM games WHERE ended_at IS NULL ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("store: list open games: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// CountOpenByName counts unfinished games with the given settings name. The
// official-game creation job uses it to keep a fixed number open.
func (s *Store) CountOpenByName(ctx context.Context, name string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM games WHERE name = ? AND ended_at IS NULL", name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count open games: %w", err)
	}
	return count, nil
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(blob []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(blob)))
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
