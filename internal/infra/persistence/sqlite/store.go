// Package sqlite provides a SQLite-backed persistent store. It reuses the
// in-memory transactional semantics and snapshots the full state to a single
// table as JSON blobs after every successful commit.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"abattoircore/internal/infra/persistence/memory"
	"abattoircore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "abattoircore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	mem := memory.NewStore(engine)
	s := &Store{Store: mem, db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Bucket names preserve the storage keys used by the legacy dashboard so data
// written by it remains loadable.
var sqliteBuckets = []string{
	"intakeEntries",
	"holdingPenAnimals",
	"processingLines",
	"inventory",
	"complianceChecks",
	"users",
	"user_passwords",
	"auth_session",
	"audit_logs",
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	type raw struct {
		bucket  string
		payload []byte
	}
	var raws []raw
	for rows.Next() {
		var r raw
		if err := rows.Scan(&r.bucket, &r.payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		raws = append(raws, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if len(raws) == 0 {
		return nil
	}
	snapshot := memory.Snapshot{}
	for _, r := range raws {
		if len(r.payload) == 0 {
			continue
		}
		if err := decodeBucket(&snapshot, r.bucket, r.payload); err != nil {
			return err
		}
	}
	s.ImportState(snapshot)
	return nil
}

func decodeBucket(snapshot *memory.Snapshot, bucket string, payload []byte) error {
	var target any
	switch bucket {
	case "intakeEntries":
		target = &snapshot.Entries
	case "holdingPenAnimals":
		target = &snapshot.Holding
	case "processingLines":
		target = &snapshot.Lines
	case "inventory":
		target = &snapshot.Inventory
	case "complianceChecks":
		target = &snapshot.Checks
	case "users":
		target = &snapshot.Users
	case "user_passwords":
		target = &snapshot.Passwords
	case "auth_session":
		target = &snapshot.Session
	case "audit_logs":
		target = &snapshot.Logs
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return domain.CorruptStateError{Bucket: bucket, Err: err}
	}
	return nil
}

func encodeBucket(snapshot memory.Snapshot, bucket string) ([]byte, error) {
	switch bucket {
	case "intakeEntries":
		return json.Marshal(snapshot.Entries)
	case "holdingPenAnimals":
		return json.Marshal(snapshot.Holding)
	case "processingLines":
		return json.Marshal(snapshot.Lines)
	case "inventory":
		return json.Marshal(snapshot.Inventory)
	case "complianceChecks":
		return json.Marshal(snapshot.Checks)
	case "users":
		return json.Marshal(snapshot.Users)
	case "user_passwords":
		return json.Marshal(snapshot.Passwords)
	case "auth_session":
		return json.Marshal(snapshot.Session)
	case "audit_logs":
		return json.Marshal(snapshot.Logs)
	}
	return nil, fmt.Errorf("unknown bucket %q", bucket)
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		data, err := encodeBucket(snapshot, bucket)
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err := tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

// RunInTransaction applies fn within a transaction, then snapshots state to
// SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close flushes nothing further and closes the database handle.
func (s *Store) Close() error { return s.db.Close() }
