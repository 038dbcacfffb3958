// Package store persists committed LP snapshots in SQLite.
//
// A Store implements sim.Recorder: every snapshot handed to it is already
// below GVT and will never be rolled back, so rows are append-only.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/aika-sim/aika/sim"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/sha3"
)

//go:embed schema.sql
var schemaSQL string

// RunInfo describes one run row.
type RunInfo struct {
	ID       string
	LPs      int
	Terminal sim.Time
	Seed     int64
	Workload string
}

// Row is one stored snapshot.
type Row struct {
	Snapshot sim.Snapshot
	Digest   [32]byte
}

// Store records snapshots for a single run. Record is safe for
// concurrent use; database/sql serialises access to the single connection.
type Store struct {
	db    *sql.DB
	runID string
}

// Open creates or opens the database at path and starts a new run.
func Open(path string, info RunInfo) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	if info.ID == "" {
		info.ID = uuid.Must(uuid.NewV7()).String()
	}
	_, err = db.Exec(`
		INSERT INTO runs (id, lps, terminal, seed, workload, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, info.ID, info.LPs, int64(info.Terminal), info.Seed, info.Workload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create run: %w", err)
	}
	return &Store{db: db, runID: info.ID}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// RunID returns the ID of the run this store records.
func (s *Store) RunID() string { return s.runID }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Digest returns the SHA3-256 of a state blob.
func Digest(state []byte) [32]byte { return sha3.Sum256(state) }

// Record implements sim.Recorder.
func (s *Store) Record(snap sim.Snapshot) error {
	digest := Digest(snap.State)
	_, err := s.db.Exec(`
		INSERT INTO snapshots (run_id, lp, at_time, class, sender, seq, state, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.runID,
		int(snap.LP),
		int64(snap.At.Time),
		int(snap.At.Class),
		int(snap.At.Sender),
		int64(snap.At.Seq),
		snap.State,
		digest[:],
	)
	if err != nil {
		return fmt.Errorf("record snapshot lp %d at %v: %w", snap.LP, snap.At, err)
	}
	return nil
}

// Snapshots returns the snapshots of lp in this run, in commit order.
func (s *Store) Snapshots(ctx context.Context, lp sim.LPID) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT at_time, class, sender, seq, state, digest
		FROM snapshots
		WHERE run_id = ? AND lp = ?
		ORDER BY at_time, class, sender, seq
	`, s.runID, int(lp))
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			at, seq       int64
			class, sender int
			state, digest []byte
		)
		if err := rows.Scan(&at, &class, &sender, &seq, &state, &digest); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		r := Row{Snapshot: sim.Snapshot{
			LP:    lp,
			At:    sim.Stamp{Time: sim.Time(at), Class: sim.Class(class), Sender: sim.LPID(sender), Seq: uint64(seq)},
			State: state,
		}}
		copy(r.Digest[:], digest)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// Count returns the number of snapshots stored for this run.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE run_id = ?`, s.runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}
