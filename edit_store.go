package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"PrefEditor/pkg/types"
)

// Edit record statuses
const (
	EditStatusApplied = "applied"
	EditStatusFailed  = "failed"
)

// EditStore keeps the history of every edit dispatched to a preference file
type EditStore struct {
	db     *sql.DB
	dbPath string

	stmtInsert *sql.Stmt
}

const editSchemaSQL = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS edits (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    target TEXT NOT NULL,
    operation TEXT NOT NULL,
    matcher TEXT,
    content TEXT,
    status TEXT NOT NULL,
    error TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edits_target_time ON edits(target, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_edits_session ON edits(session_id);
`

// EditQuery filters ListEdits. Zero values match everything.
type EditQuery struct {
	Target    string
	SessionID string
	Status    string
	Limit     int
}

// NewEditStore opens (or creates) the history database at dbPath
func NewEditStore(dbPath string) (*EditStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(editSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO edits (id, session_id, target, operation, matcher, content, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return &EditStore{db: db, dbPath: dbPath, stmtInsert: stmt}, nil
}

// RecordEdit stores rec, assigning an ID and timestamp when missing
func (s *EditStore) RecordEdit(rec types.EditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.stmtInsert.Exec(rec.ID, rec.SessionID, rec.Target, rec.Operation,
		nullString(rec.Matcher), nullString(rec.Content), rec.Status, nullString(rec.Error), rec.CreatedAt)
	return err
}

// ListEdits returns matching records, newest first
func (s *EditStore) ListEdits(q EditQuery) ([]types.EditRecord, error) {
	var where []string
	var args []interface{}
	if q.Target != "" {
		where = append(where, "target = ?")
		args = append(args, q.Target)
	}
	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}

	query := `SELECT id, session_id, target, operation, matcher, content, status, error, created_at FROM edits`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []types.EditRecord
	for rows.Next() {
		var rec types.EditRecord
		var matcher, content, errMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Target, &rec.Operation,
			&matcher, &content, &rec.Status, &errMsg, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Matcher = matcher.String
		rec.Content = content.String
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CleanupOlderThan deletes records older than maxAge and returns how many were removed
func (s *EditStore) CleanupOlderThan(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	result, err := s.db.Exec(`DELETE FROM edits WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// Close closes the prepared statements and the database
func (s *EditStore) Close() error {
	if s.stmtInsert != nil {
		s.stmtInsert.Close()
	}
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
