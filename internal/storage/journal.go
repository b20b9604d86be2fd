package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"commentrelay/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// Event is one journal row.
type Event struct {
	At        time.Time
	CommentID string
	Stage     string
	Action    string
	Attempt   int
	Detail    string
}

// Journal appends pipeline events to SQLite. Safe for concurrent use.
type Journal struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Journal, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	j := &Journal{db: db, log: log}
	if err := j.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx, string(b))
	return err
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record implements the pipeline's audit hook. Failures are logged only; the
// journal never blocks delivery.
func (j *Journal) Record(ctx context.Context, commentID, stage, action string, attempt int, detail string) {
	if j == nil || j.db == nil {
		return
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO pipeline_events(at, comment_id, stage, action, attempt, detail)
		 VALUES(?,?,?,?,?,?)`,
		time.Now().UTC().Format(time.RFC3339Nano), commentID, stage, action, attempt, nullStr(detail),
	)
	if err != nil {
		j.log.Warn("journal write failed",
			logx.String("comment", commentID),
			logx.String("action", action),
			logx.Err(err))
	}
}

// History returns the recorded events for one comment, oldest first.
func (j *Journal) History(ctx context.Context, commentID string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT at, comment_id, stage, action, attempt, COALESCE(detail, '')
		 FROM pipeline_events WHERE comment_id = ? ORDER BY id`,
		commentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var at string
		if err := rows.Scan(&at, &e.CommentID, &e.Stage, &e.Action, &e.Attempt, &e.Detail); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			e.At = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
