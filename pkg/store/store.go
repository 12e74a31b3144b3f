// Package store persists standardization sessions to SQLite so results
// survive the process and stay queryable in both directions, raw to
// standardized and back.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ngmatch/ngmatch/internal/encoding"
	"github.com/ngmatch/ngmatch/pkg/standardizer"
)

// Common errors
var (
	// ErrStoreClosed is returned when using a closed store
	ErrStoreClosed = errors.New("store is closed")

	// ErrSessionNotFound is returned when a session id is unknown
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotFound is returned when a lookup key is absent from a session
	ErrNotFound = errors.New("not found in session")
)

// Error wraps errors with operation context
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("sessionstore: %v", e.Err)
	}
	return fmt.Sprintf("sessionstore: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return errors.Is(e.Err, target) }

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Store is a SQLite-backed archive of standardization sessions.
type Store struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	closed bool
	logger standardizer.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger (default: discard).
func WithLogger(l standardizer.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a store for the given database path. Call Init before use.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, wrapError("new", fmt.Errorf("database path cannot be empty"))
	}

	s := &Store{
		path:   path,
		logger: standardizer.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Init opens the database connection and creates the schema.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}

	// WAL for concurrent readers, busy_timeout so competing writers
	// wait instead of failing.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return wrapError("init", fmt.Errorf("failed to open database: %w", err))
	}
	s.db = db

	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return wrapError("init", fmt.Errorf("failed to enable foreign keys: %w", err))
	}

	if err := s.createTables(ctx); err != nil {
		return wrapError("init", err)
	}

	s.logger.Info("session store initialized", "path", s.path)
	return nil
}

func (s *Store) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		threshold REAL NOT NULL,
		analyzer TEXT NOT NULL,
		ng_min INTEGER NOT NULL,
		ng_max INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_standards (
		session_id TEXT NOT NULL,
		pos INTEGER NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (session_id, pos),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS session_matches (
		session_id TEXT NOT NULL,
		pos INTEGER NOT NULL,
		raw TEXT NOT NULL,
		standard TEXT NOT NULL,
		score REAL NOT NULL,
		questionable INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, pos),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS session_rankings (
		session_id TEXT NOT NULL,
		raw TEXT NOT NULL,
		rank INTEGER NOT NULL,
		standard TEXT NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (session_id, raw, rank),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS session_vectors (
		session_id TEXT NOT NULL,
		raw TEXT NOT NULL,
		vector BLOB NOT NULL,
		PRIMARY KEY (session_id, raw),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_session_matches_raw ON session_matches(session_id, raw);
	CREATE INDEX IF NOT EXISTS idx_session_matches_standard ON session_matches(session_id, standard);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the database connection. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	return s.db, nil
}

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	ID        string
	CreatedAt time.Time
	Threshold float64
	Inputs    int
	Standards int
}

// SaveSession persists a session snapshot. When the snapshot has no ID
// a fresh one is generated; the id in use is returned either way.
func (s *Store) SaveSession(ctx context.Context, sess *standardizer.Session) (string, error) {
	db, err := s.conn()
	if err != nil {
		return "", wrapError("save_session", err)
	}
	if sess == nil {
		return "", wrapError("save_session", fmt.Errorf("session cannot be nil"))
	}

	id := sess.ID
	if id == "" {
		id = uuid.NewString()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", wrapError("save_session", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, threshold, analyzer, ng_min, ng_max)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, sess.CreatedAt.UTC(), sess.Threshold, sess.Analyzer, sess.NGramMin, sess.NGramMax)
	if err != nil {
		return "", wrapError("save_session", err)
	}

	for pos, std := range sess.Standards {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_standards (session_id, pos, value) VALUES (?, ?, ?)`,
			id, pos, std); err != nil {
			return "", wrapError("save_session", err)
		}
	}

	for pos, raw := range sess.Raw {
		mapping := sess.Results[raw]
		best := mapping.Best()
		_, flagged := sess.Questionable[raw]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_matches (session_id, pos, raw, standard, score, questionable)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, pos, raw, best.Standard, best.Score, boolToInt(flagged)); err != nil {
			return "", wrapError("save_session", err)
		}
	}

	for raw, mapping := range sess.Results {
		for rank, match := range mapping {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO session_rankings (session_id, raw, rank, standard, score)
				 VALUES (?, ?, ?, ?, ?)`,
				id, raw, rank, match.Standard, match.Score); err != nil {
				return "", wrapError("save_session", err)
			}
		}
	}

	for raw, vec := range sess.InputVectors {
		blob, err := encoding.EncodeVector(vec)
		if err != nil {
			return "", wrapError("save_session", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_vectors (session_id, raw, vector) VALUES (?, ?, ?)`,
			id, raw, blob); err != nil {
			return "", wrapError("save_session", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", wrapError("save_session", err)
	}

	s.logger.Info("session saved", "id", id, "inputs", len(sess.Raw))
	return id, nil
}

// LoadSession reconstructs a full session snapshot by id.
func (s *Store) LoadSession(ctx context.Context, id string) (*standardizer.Session, error) {
	db, err := s.conn()
	if err != nil {
		return nil, wrapError("load_session", err)
	}

	sess := &standardizer.Session{
		ID:           id,
		Results:      make(map[string]standardizer.Matches),
		Questionable: make(map[string]standardizer.Match),
		InputVectors: make(map[string][]float32),
	}

	err = db.QueryRowContext(ctx,
		`SELECT created_at, threshold, analyzer, ng_min, ng_max FROM sessions WHERE id = ?`, id).
		Scan(&sess.CreatedAt, &sess.Threshold, &sess.Analyzer, &sess.NGramMin, &sess.NGramMax)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("load_session", fmt.Errorf("%w: %q", ErrSessionNotFound, id))
	}
	if err != nil {
		return nil, wrapError("load_session", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT value FROM session_standards WHERE session_id = ? ORDER BY pos`, id)
	if err != nil {
		return nil, wrapError("load_session", err)
	}
	defer rows.Close()
	for rows.Next() {
		var std string
		if err := rows.Scan(&std); err != nil {
			return nil, wrapError("load_session", err)
		}
		sess.Standards = append(sess.Standards, std)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("load_session", err)
	}

	matchRows, err := db.QueryContext(ctx,
		`SELECT raw, standard, score, questionable FROM session_matches WHERE session_id = ? ORDER BY pos`, id)
	if err != nil {
		return nil, wrapError("load_session", err)
	}
	defer matchRows.Close()
	for matchRows.Next() {
		var raw, standard string
		var score float64
		var flagged int
		if err := matchRows.Scan(&raw, &standard, &score, &flagged); err != nil {
			return nil, wrapError("load_session", err)
		}
		sess.Raw = append(sess.Raw, raw)
		sess.NewStrings = append(sess.NewStrings, standard)
		if flagged != 0 {
			sess.Questionable[raw] = standardizer.Match{Standard: standard, Score: score}
		}
	}
	if err := matchRows.Err(); err != nil {
		return nil, wrapError("load_session", err)
	}

	rankRows, err := db.QueryContext(ctx,
		`SELECT raw, standard, score FROM session_rankings WHERE session_id = ? ORDER BY raw, rank`, id)
	if err != nil {
		return nil, wrapError("load_session", err)
	}
	defer rankRows.Close()
	for rankRows.Next() {
		var raw, standard string
		var score float64
		if err := rankRows.Scan(&raw, &standard, &score); err != nil {
			return nil, wrapError("load_session", err)
		}
		sess.Results[raw] = append(sess.Results[raw], standardizer.Match{Standard: standard, Score: score})
	}
	if err := rankRows.Err(); err != nil {
		return nil, wrapError("load_session", err)
	}

	vecRows, err := db.QueryContext(ctx,
		`SELECT raw, vector FROM session_vectors WHERE session_id = ?`, id)
	if err != nil {
		return nil, wrapError("load_session", err)
	}
	defer vecRows.Close()
	for vecRows.Next() {
		var raw string
		var blob []byte
		if err := vecRows.Scan(&raw, &blob); err != nil {
			return nil, wrapError("load_session", err)
		}
		vec, err := encoding.DecodeVector(blob)
		if err != nil {
			return nil, wrapError("load_session", err)
		}
		sess.InputVectors[raw] = vec
	}
	if err := vecRows.Err(); err != nil {
		return nil, wrapError("load_session", err)
	}

	return sess, nil
}

// ListSessions returns summaries of all stored sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	db, err := s.conn()
	if err != nil {
		return nil, wrapError("list_sessions", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT s.id, s.created_at, s.threshold,
		       (SELECT COUNT(*) FROM session_matches m WHERE m.session_id = s.id),
		       (SELECT COUNT(*) FROM session_standards t WHERE t.session_id = s.id)
		FROM sessions s ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, wrapError("list_sessions", err)
	}
	defer rows.Close()

	var infos []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.CreatedAt, &info.Threshold, &info.Inputs, &info.Standards); err != nil {
			return nil, wrapError("list_sessions", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list_sessions", err)
	}
	return infos, nil
}

// LookupStandard resolves a raw input of a stored session to the
// standard it matched and the similarity score.
func (s *Store) LookupStandard(ctx context.Context, id, raw string) (string, float64, error) {
	db, err := s.conn()
	if err != nil {
		return "", 0, wrapError("lookup_standard", err)
	}

	var standard string
	var score float64
	err = db.QueryRowContext(ctx,
		`SELECT standard, score FROM session_matches WHERE session_id = ? AND raw = ? LIMIT 1`,
		id, raw).Scan(&standard, &score)
	if errors.Is(err, sql.ErrNoRows) {
		if exists, checkErr := s.sessionExists(ctx, db, id); checkErr == nil && !exists {
			return "", 0, wrapError("lookup_standard", fmt.Errorf("%w: %q", ErrSessionNotFound, id))
		}
		return "", 0, wrapError("lookup_standard", fmt.Errorf("%w: raw %q", ErrNotFound, raw))
	}
	if err != nil {
		return "", 0, wrapError("lookup_standard", err)
	}
	return standard, score, nil
}

// LookupRaw resolves a standard to every raw input of a stored session
// that standardized to it, in batch order.
func (s *Store) LookupRaw(ctx context.Context, id, standard string) ([]string, error) {
	db, err := s.conn()
	if err != nil {
		return nil, wrapError("lookup_raw", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT raw FROM session_matches WHERE session_id = ? AND standard = ? GROUP BY raw ORDER BY MIN(pos)`,
		id, standard)
	if err != nil {
		return nil, wrapError("lookup_raw", err)
	}
	defer rows.Close()

	var raws []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, wrapError("lookup_raw", err)
		}
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("lookup_raw", err)
	}

	if len(raws) == 0 {
		if exists, checkErr := s.sessionExists(ctx, db, id); checkErr == nil && !exists {
			return nil, wrapError("lookup_raw", fmt.Errorf("%w: %q", ErrSessionNotFound, id))
		}
		return nil, wrapError("lookup_raw", fmt.Errorf("%w: standard %q", ErrNotFound, standard))
	}
	return raws, nil
}

// DeleteSession removes a session and all of its rows.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	db, err := s.conn()
	if err != nil {
		return wrapError("delete_session", err)
	}

	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return wrapError("delete_session", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrapError("delete_session", fmt.Errorf("%w: %q", ErrSessionNotFound, id))
	}

	s.logger.Info("session deleted", "id", id)
	return nil
}

func (s *Store) sessionExists(ctx context.Context, db *sql.DB, id string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
