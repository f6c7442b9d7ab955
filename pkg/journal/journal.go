package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/throttle/pkg/throttle"
)

// DefaultBusyTimeout is how long a writer waits for the database lock.
const DefaultBusyTimeout = 5 * time.Second

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal is closed")

// Entry is one journaled admission.
type Entry struct {
	ID          int64         `json:"id"`
	RunID       string        `json:"run_id"`
	Class       string        `json:"class"`
	AdmittedAt  time.Time     `json:"admitted_at"`
	Waited      time.Duration `json:"waited"`
	Retries     int           `json:"retries"`
	HistorySize int           `json:"history_size"`
}

// Filter selects entries. Zero fields do not filter.
type Filter struct {
	Class string
	RunID string
	Since time.Time
	Until time.Time

	// Limit caps the number of entries returned by Query.
	Limit int
}

// ClassSummary aggregates the entries of one class.
type ClassSummary struct {
	Class      string        `json:"class"`
	Admissions int64         `json:"admissions"`
	Delayed    int64         `json:"delayed"`
	TotalWait  time.Duration `json:"total_wait"`
	MaxWait    time.Duration `json:"max_wait"`
	First      time.Time     `json:"first"`
	Last       time.Time     `json:"last"`
}

// Journal is an sqlite-backed admission log. It is safe for concurrent use.
type Journal struct {
	db     *sql.DB
	path   string
	runID  string
	logger *slog.Logger

	mu         sync.RWMutex
	closed     bool
	insertStmt *sql.Stmt
}

// Option configures a Journal.
type Option func(j *Journal)

// WithRunID sets the run ID stamped on new entries.
func WithRunID(id string) Option {
	return func(j *Journal) {
		j.runID = id
	}
}

// WithLogger sets the logger used to report write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = logger
	}
}

// Open opens or creates the journal database at path.
func Open(path string, opts ...Option) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}

	j := &Journal{
		path:   path,
		runID:  uuid.NewString(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		path, DefaultBusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	j.db = db

	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	j.insertStmt, err = db.Prepare(`
		INSERT INTO admissions (run_id, class, admitted_at, waited_ns, retries, history_size)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS admissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		class TEXT NOT NULL,
		admitted_at INTEGER NOT NULL,
		waited_ns INTEGER NOT NULL,
		retries INTEGER NOT NULL,
		history_size INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_admissions_class ON admissions(class, admitted_at);
	CREATE INDEX IF NOT EXISTS idx_admissions_admitted_at ON admissions(admitted_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// RunID returns the run ID stamped on new entries.
func (j *Journal) RunID() string {
	return j.runID
}

// ObserveAdmission records a. Write failures are logged, never returned,
// so a broken journal cannot block admissions.
func (j *Journal) ObserveAdmission(a throttle.Admission) {
	if err := j.Record(context.Background(), a); err != nil {
		j.logger.Error("failed to journal admission", "class", a.Class, "error", err)
	}
}

// Record writes one admission.
func (j *Journal) Record(ctx context.Context, a throttle.Admission) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return ErrClosed
	}

	_, err := j.insertStmt.ExecContext(ctx,
		j.runID, a.Class, a.Time.UnixNano(), int64(a.Waited), a.Retries, a.HistorySize)
	if err != nil {
		return fmt.Errorf("failed to insert admission: %w", err)
	}
	return nil
}

// Query returns matching entries, oldest first.
func (j *Journal) Query(ctx context.Context, f Filter) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}

	where, args := f.where()
	query := `SELECT id, run_id, class, admitted_at, waited_ns, retries, history_size
		FROM admissions` + where + ` ORDER BY admitted_at, id`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			admittedAt int64
			waited     int64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Class, &admittedAt, &waited, &e.Retries, &e.HistorySize); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.AdmittedAt = time.Unix(0, admittedAt).UTC()
		e.Waited = time.Duration(waited)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summary aggregates matching entries per class, ordered by class name.
// Filter.Limit is ignored.
func (j *Journal) Summary(ctx context.Context, f Filter) ([]ClassSummary, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}

	where, args := f.where()
	query := `SELECT class, COUNT(*), SUM(CASE WHEN retries > 0 THEN 1 ELSE 0 END),
			SUM(waited_ns), MAX(waited_ns), MIN(admitted_at), MAX(admitted_at)
		FROM admissions` + where + ` GROUP BY class ORDER BY class`

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize journal: %w", err)
	}
	defer rows.Close()

	var out []ClassSummary
	for rows.Next() {
		var (
			s           ClassSummary
			total, max  int64
			first, last int64
		)
		if err := rows.Scan(&s.Class, &s.Admissions, &s.Delayed, &total, &max, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		s.TotalWait = time.Duration(total)
		s.MaxWait = time.Duration(max)
		s.First = time.Unix(0, first).UTC()
		s.Last = time.Unix(0, last).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Prune deletes entries admitted before cutoff and returns how many were
// removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return 0, ErrClosed
	}

	res, err := j.db.ExecContext(ctx, `DELETE FROM admissions WHERE admitted_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks that the database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return ErrClosed
	}
	return j.db.PingContext(ctx)
}

// Close closes the database. It is safe to call more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	return errors.Join(j.insertStmt.Close(), j.db.Close())
}

func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Class != "" {
		conds = append(conds, "class = ?")
		args = append(args, f.Class)
	}
	if f.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, f.RunID)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "admitted_at >= ?")
		args = append(args, f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		conds = append(conds, "admitted_at < ?")
		args = append(args, f.Until.UnixNano())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
