package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go driver, registered as "sqlite"

	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
)

// Queue drivers.
const (
	DriverSQLite  = "sqlite"
	DriverSQLite3 = "sqlite3"
)

// OutstandingQueue is the durable per-entity queue of pending index work.
// One row per entity id; Record merges a new event into the existing row
// following MergeEvents.
type OutstandingQueue struct {
	mu        sync.Mutex
	db        *sql.DB
	path      string
	driver    string
	seq       int64
	closed    bool
	recovered bool
}

// validateQueueIntegrity checks an existing queue database before opening it.
func validateQueueIntegrity(driver, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// OpenOutstandingQueue opens (or creates) the queue database at path.
// An empty path opens an in-memory database. A corrupted database is moved
// aside to path+".corrupt" and replaced by an empty one; Recovered then
// reports true and the caller must rebuild the index from scratch.
func OpenOutstandingQueue(driver, path string, logger *slog.Logger) (*OutstandingQueue, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &OutstandingQueue{path: path, driver: driver}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		if validErr := validateQueueIntegrity(driver, path); validErr != nil {
			logger.Warn("outstanding_queue_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if err := os.Rename(path, path+".corrupt"); err != nil {
				return nil, fserrors.New(fserrors.ErrCodeQueueIO,
					fmt.Sprintf("queue corrupted at %s and cannot be moved aside", path), err)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			q.recovered = true
		}
		dsn = path
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	// Single connection: serializes writers and keeps a :memory: database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	q.db = db
	if err := q.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize queue schema: %w", err)
	}
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM outstanding").Scan(&q.seq); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read queue sequence: %w", err)
	}
	return q, nil
}

func (q *OutstandingQueue) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- event: 1 persisted, 2 updated, 3 removed
	CREATE TABLE IF NOT EXISTS outstanding (
		entity_id INTEGER PRIMARY KEY,
		event     INTEGER NOT NULL,
		seq       INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outstanding_seq ON outstanding(seq);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := q.db.Exec(schema)
	return err
}

// Recovered reports whether a corrupted queue was discarded at open.
func (q *OutstandingQueue) Recovered() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.recovered
}

func (q *OutstandingQueue) ioError(op string, err error) error {
	return fserrors.New(fserrors.ErrCodeQueueIO, fmt.Sprintf("outstanding queue %s failed: %v", op, err), err)
}

// Record durably merges event into the entry for entityID. It returns
// only after the write is committed.
func (q *OutstandingQueue) Record(ctx context.Context, entityID int64, event IndexEvent) error {
	return q.RecordMany(ctx, []int64{entityID}, event)
}

// RecordMany records the same event for several entities in one transaction.
func (q *OutstandingQueue) RecordMany(ctx context.Context, entityIDs []int64, event IndexEvent) error {
	if len(entityIDs) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fserrors.EngineUnavailable("outstanding queue is closed", nil)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return q.ioError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outstanding (entity_id, event, seq) VALUES (?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			event = CASE
				WHEN outstanding.event = 3 OR excluded.event = 3 THEN 3
				ELSE excluded.event
			END,
			seq = excluded.seq`)
	if err != nil {
		return q.ioError("prepare", err)
	}
	defer stmt.Close()

	seq := q.seq
	for _, id := range entityIDs {
		seq++
		if _, err := stmt.ExecContext(ctx, id, int(event), seq); err != nil {
			return q.ioError("record", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return q.ioError("commit", err)
	}
	q.seq = seq
	return nil
}

// List returns up to limit entries in sequence order (limit <= 0: all).
func (q *OutstandingQueue) List(ctx context.Context, limit int) ([]OutstandingEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, fserrors.EngineUnavailable("outstanding queue is closed", nil)
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := q.db.QueryContext(ctx,
		"SELECT entity_id, event, seq FROM outstanding ORDER BY seq LIMIT ?", limit)
	if err != nil {
		return nil, q.ioError("list", err)
	}
	defer rows.Close()

	var entries []OutstandingEntry
	for rows.Next() {
		var e OutstandingEntry
		var ev int
		if err := rows.Scan(&e.EntityID, &ev, &e.Seq); err != nil {
			return nil, q.ioError("scan", err)
		}
		e.Event = IndexEvent(ev)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, q.ioError("list", err)
	}
	return entries, nil
}

// Get returns the entry for entityID, or false when none is queued.
func (q *OutstandingQueue) Get(ctx context.Context, entityID int64) (OutstandingEntry, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return OutstandingEntry{}, false, fserrors.EngineUnavailable("outstanding queue is closed", nil)
	}

	e := OutstandingEntry{EntityID: entityID}
	var ev int
	err := q.db.QueryRowContext(ctx,
		"SELECT event, seq FROM outstanding WHERE entity_id = ?", entityID).Scan(&ev, &e.Seq)
	if err == sql.ErrNoRows {
		return OutstandingEntry{}, false, nil
	}
	if err != nil {
		return OutstandingEntry{}, false, q.ioError("get", err)
	}
	e.Event = IndexEvent(ev)
	return e, true, nil
}

// Ack removes applied entries whose sequence is unchanged. An entry
// rewritten after it was listed stays queued. Returns the rows removed.
func (q *OutstandingQueue) Ack(ctx context.Context, entries []OutstandingEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, fserrors.EngineUnavailable("outstanding queue is closed", nil)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, q.ioError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM outstanding WHERE entity_id = ? AND seq = ?")
	if err != nil {
		return 0, q.ioError("prepare", err)
	}
	defer stmt.Close()

	removed := 0
	for _, e := range entries {
		res, err := stmt.ExecContext(ctx, e.EntityID, e.Seq)
		if err != nil {
			return 0, q.ioError("ack", err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, q.ioError("commit", err)
	}
	return removed, nil
}

// AckThrough removes every entry with seq <= watermark.
func (q *OutstandingQueue) AckThrough(ctx context.Context, watermark int64) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, fserrors.EngineUnavailable("outstanding queue is closed", nil)
	}
	res, err := q.db.ExecContext(ctx, "DELETE FROM outstanding WHERE seq <= ?", watermark)
	if err != nil {
		return 0, q.ioError("ack", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Watermark returns the highest sequence handed out so far.
func (q *OutstandingQueue) Watermark() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq
}

// Count returns the number of queued entries.
func (q *OutstandingQueue) Count(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, fserrors.EngineUnavailable("outstanding queue is closed", nil)
	}
	var n int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outstanding").Scan(&n); err != nil {
		return 0, q.ioError("count", err)
	}
	return n, nil
}

// Close checkpoints the WAL and closes the database. Safe to call twice.
func (q *OutstandingQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	if q.path != "" {
		_, _ = q.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return q.db.Close()
}
