package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/himeno-lab/kotori/pkg/domain/interfaces"
	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

// ThreadRepository persists thread state in a local SQLite database.
// Each thread is a single row holding the serialized state, so a Put
// replaces messages and summary atomically.
type ThreadRepository struct {
	db *sql.DB
}

var _ interfaces.ThreadRepository = &ThreadRepository{}

// New creates/opens the thread state database at path
func New(path string) (*ThreadRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	// Single shared connection avoids writer lock contention with
	// SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	r := &ThreadRepository{db: db}
	if err := r.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *ThreadRepository) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			state_json TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return goerr.Wrap(err, "failed to initialize thread schema")
		}
	}
	return nil
}

// threadRow is the JSON serialization of a thread state
type threadRow struct {
	Messages        []messageRow `json:"messages"`
	Summary         string       `json:"summary"`
	Workflow        string       `json:"workflow"`
	CurrentActivity string       `json:"current_activity"`
	ApplyActivity   bool         `json:"apply_activity"`
}

type messageRow struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (r *ThreadRepository) Get(ctx context.Context, threadID types.ThreadID) (*model.ThreadState, error) {
	if err := threadID.Validate(); err != nil {
		return nil, err
	}

	var stateJSON string
	var updatedAtMS int64
	err := r.db.QueryRowContext(ctx,
		`SELECT state_json, updated_at_ms FROM threads WHERE thread_id = ?`,
		string(threadID),
	).Scan(&stateJSON, &updatedAtMS)
	if err == sql.ErrNoRows {
		return model.NewThreadState(threadID), nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query thread state", goerr.V("threadID", threadID))
	}

	var row threadRow
	if err := json.Unmarshal([]byte(stateJSON), &row); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal thread state", goerr.V("threadID", threadID))
	}

	state := &model.ThreadState{
		ThreadID:        threadID,
		Messages:        make([]model.Message, len(row.Messages)),
		Summary:         row.Summary,
		Workflow:        types.Workflow(row.Workflow),
		CurrentActivity: row.CurrentActivity,
		ApplyActivity:   row.ApplyActivity,
		UpdatedAt:       time.UnixMilli(updatedAtMS).UTC(),
	}
	for i, m := range row.Messages {
		state.Messages[i] = model.Message{Role: types.Role(m.Role), Content: m.Content}
	}
	return state, nil
}

func (r *ThreadRepository) Put(ctx context.Context, state *model.ThreadState) error {
	if err := state.ThreadID.Validate(); err != nil {
		return err
	}

	row := threadRow{
		Messages:        make([]messageRow, len(state.Messages)),
		Summary:         state.Summary,
		Workflow:        string(state.Workflow),
		CurrentActivity: state.CurrentActivity,
		ApplyActivity:   state.ApplyActivity,
	}
	for i, m := range state.Messages {
		row.Messages[i] = messageRow{Role: string(m.Role), Content: m.Content}
	}

	stateJSON, err := json.Marshal(row)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal thread state", goerr.V("threadID", state.ThreadID))
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO threads (thread_id, state_json, updated_at_ms) VALUES (?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET state_json = excluded.state_json, updated_at_ms = excluded.updated_at_ms`,
		string(state.ThreadID), string(stateJSON), time.Now().UnixMilli(),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert thread state", goerr.V("threadID", state.ThreadID))
	}
	return nil
}

func (r *ThreadRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
