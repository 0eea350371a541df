// Package sqlite implements the store.Store port on a single SQLite database
// shared by every process reviewing on this machine.
//
// Concurrency discipline: WAL journaling lets the long-lived viewer read while
// short-lived command invocations write; busy_timeout bounds the wait on a
// contended write lock. Every multi-row mutation runs in one transaction, so
// no observer ever sees a comment without its replies or vice versa.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/bkyoung/branch-review/internal/domain"
	"github.com/bkyoung/branch-review/internal/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database at dbPath. Use ":memory:"
// for tests. The parent directory is created when missing.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each :memory: connection is a distinct database; pin the pool to one
	// connection so tests see a single store.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Writers serialize on the database lock; busy_timeout bounds how long a
	// contended writer waits before surfacing StoreUnavailableError.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	// AUTOINCREMENT keeps ids monotonic and never reused, even after deletes.
	schema := `
	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_path TEXT NOT NULL,
		branch TEXT NOT NULL,
		file_path TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		body TEXT NOT NULL,
		author TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		resolved INTEGER NOT NULL DEFAULT 0,
		resolved_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_comments_scope ON comments(repo_path, branch);
	CREATE INDEX IF NOT EXISTS idx_comments_file ON comments(repo_path, branch, file_path);

	CREATE TABLE IF NOT EXISTS replies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		comment_id INTEGER NOT NULL,
		body TEXT NOT NULL,
		author TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (comment_id) REFERENCES comments(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_replies_comment ON replies(comment_id);

	CREATE TABLE IF NOT EXISTS viewed_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_path TEXT NOT NULL,
		branch TEXT NOT NULL,
		file_path TEXT NOT NULL,
		viewed_at INTEGER NOT NULL,
		UNIQUE(repo_path, branch, file_path)
	);
	CREATE INDEX IF NOT EXISTS idx_viewed_scope ON viewed_files(repo_path, branch);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateComment inserts a new open comment and returns it with its id.
func (s *Store) CreateComment(ctx context.Context, scope domain.Scope, input store.NewComment) (domain.Comment, error) {
	if err := input.Validate(); err != nil {
		return domain.Comment{}, err
	}

	now := domain.NowMillis()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (repo_path, branch, file_path, start_line, end_line, body, author, created_at, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		scope.RepoPath, scope.Branch, input.FilePath, input.StartLine, input.EndLine,
		input.Body, input.Author, now,
	)
	if err != nil {
		return domain.Comment{}, mapSQLiteErr("create comment", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Comment{}, fmt.Errorf("comment id: %w", err)
	}

	return domain.Comment{
		ID:        id,
		FilePath:  input.FilePath,
		StartLine: input.StartLine,
		EndLine:   input.EndLine,
		Body:      input.Body,
		Author:    input.Author,
		CreatedAt: now,
		Resolved:  false,
		Replies:   []domain.Reply{},
	}, nil
}

// AddReply appends a reply under the comment, failing with NotFoundError when
// the parent does not exist. The existence check and the insert share one
// transaction so a concurrent delete cannot strand the reply.
func (s *Store) AddReply(ctx context.Context, commentID int64, input store.NewReply) (domain.Reply, error) {
	if err := input.Validate(); err != nil {
		return domain.Reply{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reply{}, mapSQLiteErr("begin transaction", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM comments WHERE id = ?`, commentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reply{}, &domain.NotFoundError{Kind: "comment", ID: commentID}
	}
	if err != nil {
		return domain.Reply{}, mapSQLiteErr("check comment", err)
	}

	now := domain.NowMillis()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO replies (comment_id, body, author, created_at)
		VALUES (?, ?, ?, ?)`,
		commentID, input.Body, input.Author, now,
	)
	if err != nil {
		return domain.Reply{}, mapSQLiteErr("insert reply", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return domain.Reply{}, fmt.Errorf("reply id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Reply{}, mapSQLiteErr("commit reply", err)
	}

	return domain.Reply{
		ID:        id,
		CommentID: commentID,
		Body:      input.Body,
		Author:    input.Author,
		CreatedAt: now,
	}, nil
}

// Resolve marks the comment resolved. Resolving an already-resolved comment
// is a no-op success; the original resolved_at is preserved.
func (s *Store) Resolve(ctx context.Context, commentID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments SET resolved = 1, resolved_at = COALESCE(resolved_at, ?)
		WHERE id = ?`,
		domain.NowMillis(), commentID,
	)
	if err != nil {
		return mapSQLiteErr("resolve comment", err)
	}
	return requireRow(result, commentID)
}

// Unresolve reopens the comment. Idempotent like Resolve.
func (s *Store) Unresolve(ctx context.Context, commentID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments SET resolved = 0, resolved_at = NULL
		WHERE id = ?`,
		commentID,
	)
	if err != nil {
		return mapSQLiteErr("unresolve comment", err)
	}
	return requireRow(result, commentID)
}

// DeleteComment removes the comment and cascades to its replies atomically.
func (s *Store) DeleteComment(ctx context.Context, commentID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr("begin transaction", err)
	}
	defer tx.Rollback()

	// Replies go first; the comment row is the existence witness.
	if _, err := tx.ExecContext(ctx, `DELETE FROM replies WHERE comment_id = ?`, commentID); err != nil {
		return mapSQLiteErr("delete replies", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, commentID)
	if err != nil {
		return mapSQLiteErr("delete comment", err)
	}
	if err := requireRow(result, commentID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapSQLiteErr("commit delete", err)
	}
	return nil
}

// ListThreads returns the scope's threads matching the filter, ordered by
// comment id ascending regardless of write arrival order.
func (s *Store) ListThreads(ctx context.Context, scope domain.Scope, filter store.StatusFilter) ([]domain.Thread, error) {
	query := `
		SELECT id, file_path, start_line, end_line, body, author, created_at, resolved, resolved_at
		FROM comments
		WHERE repo_path = ? AND branch = ?`
	args := []any{scope.RepoPath, scope.Branch}

	switch filter {
	case store.FilterOpen:
		query += ` AND resolved = 0`
	case store.FilterResolved:
		query += ` AND resolved = 1`
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteErr("list comments", err)
	}
	defer rows.Close()

	threads := []domain.Thread{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		threads = append(threads, domain.Thread{Comment: comment})
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteErr("iterate comments", err)
	}

	for i := range threads {
		replies, err := s.loadReplies(ctx, threads[i].ID)
		if err != nil {
			return nil, err
		}
		threads[i].Replies = replies
	}
	return threads, nil
}

// GetThread returns a single thread by comment id.
func (s *Store) GetThread(ctx context.Context, commentID int64) (domain.Thread, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_path, start_line, end_line, body, author, created_at, resolved, resolved_at
		FROM comments
		WHERE id = ?`, commentID)

	comment, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Thread{}, &domain.NotFoundError{Kind: "comment", ID: commentID}
	}
	if err != nil {
		return domain.Thread{}, mapSQLiteErr("get comment", err)
	}

	replies, err := s.loadReplies(ctx, comment.ID)
	if err != nil {
		return domain.Thread{}, err
	}
	comment.Replies = replies
	return domain.Thread{Comment: comment}, nil
}

// MarkViewed records the file as reviewed at the current time.
func (s *Store) MarkViewed(ctx context.Context, scope domain.Scope, filePath string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO viewed_files (repo_path, branch, file_path, viewed_at)
		VALUES (?, ?, ?, ?)`,
		scope.RepoPath, scope.Branch, filePath, domain.NowMillis(),
	)
	if err != nil {
		return mapSQLiteErr("mark viewed", err)
	}
	return nil
}

// UnmarkViewed clears the reviewed mark for a file.
func (s *Store) UnmarkViewed(ctx context.Context, scope domain.Scope, filePath string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM viewed_files WHERE repo_path = ? AND branch = ? AND file_path = ?`,
		scope.RepoPath, scope.Branch, filePath,
	)
	if err != nil {
		return mapSQLiteErr("unmark viewed", err)
	}
	return nil
}

// ViewedFiles lists the scope's reviewed files.
func (s *Store) ViewedFiles(ctx context.Context, scope domain.Scope) ([]domain.ViewedFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path, viewed_at FROM viewed_files
		WHERE repo_path = ? AND branch = ?
		ORDER BY file_path`,
		scope.RepoPath, scope.Branch,
	)
	if err != nil {
		return nil, mapSQLiteErr("list viewed files", err)
	}
	defer rows.Close()

	files := []domain.ViewedFile{}
	for rows.Next() {
		var f domain.ViewedFile
		if err := rows.Scan(&f.FilePath, &f.ViewedAt); err != nil {
			return nil, fmt.Errorf("scan viewed file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteErr("iterate viewed files", err)
	}
	return files, nil
}

// ClearViewed drops every reviewed mark in the scope.
func (s *Store) ClearViewed(ctx context.Context, scope domain.Scope) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM viewed_files WHERE repo_path = ? AND branch = ?`,
		scope.RepoPath, scope.Branch,
	)
	if err != nil {
		return mapSQLiteErr("clear viewed", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) loadReplies(ctx context.Context, commentID int64) ([]domain.Reply, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, comment_id, body, author, created_at
		FROM replies
		WHERE comment_id = ?
		ORDER BY created_at ASC, id ASC`,
		commentID,
	)
	if err != nil {
		return nil, mapSQLiteErr("load replies", err)
	}
	defer rows.Close()

	replies := []domain.Reply{}
	for rows.Next() {
		var r domain.Reply
		if err := rows.Scan(&r.ID, &r.CommentID, &r.Body, &r.Author, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		replies = append(replies, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteErr("iterate replies", err)
	}
	return replies, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (domain.Comment, error) {
	var c domain.Comment
	var resolved int
	var resolvedAt sql.NullInt64

	err := row.Scan(&c.ID, &c.FilePath, &c.StartLine, &c.EndLine, &c.Body,
		&c.Author, &c.CreatedAt, &resolved, &resolvedAt)
	if err != nil {
		return domain.Comment{}, err
	}

	c.Resolved = resolved != 0
	if resolvedAt.Valid {
		v := resolvedAt.Int64
		c.ResolvedAt = &v
	}
	c.Replies = []domain.Reply{}
	return c, nil
}

func requireRow(result sql.Result, commentID int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.NotFoundError{Kind: "comment", ID: commentID}
	}
	return nil
}

// mapSQLiteErr classifies driver errors: lock contention beyond the bounded
// wait becomes StoreUnavailableError so callers know a retry may help.
func mapSQLiteErr(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return &domain.StoreUnavailableError{Err: fmt.Errorf("%s: %w", op, err)}
	}
	return fmt.Errorf("%s: %w", op, err)
}
