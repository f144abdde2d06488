package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/JailtonJunior94/fabric/a2a"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS a2a_tasks (
	task_id        TEXT PRIMARY KEY,
	context_id     TEXT NOT NULL DEFAULT '',
	skill          TEXT NOT NULL,
	state          TEXT NOT NULL,
	latest_message JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS a2a_task_events (
	id         BIGSERIAL PRIMARY KEY,
	task_id    TEXT NOT NULL REFERENCES a2a_tasks(task_id),
	event_type TEXT NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store is the durable task outbox: every task transition is written
// here before its reply is published, so a host that crashes between
// "task completed" and "reply published" can replay the outcome from
// a2a_task_events on restart instead of losing it.
type Store struct {
	pool *pgxpool.Pool

	mu     sync.RWMutex
	closed bool
}

// Open connects to Postgres, verifies connectivity with a ping, and
// ensures the outbox schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Shutdown closes the pool. Idempotent.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.pool.Close()
	return nil
}

// SaveTask upserts the task row, used when a request is first accepted
// (State: Submitted) and on every subsequent state transition that does
// not need an accompanying outbox event.
func (s *Store) SaveTask(ctx context.Context, t a2a.Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO a2a_tasks (task_id, context_id, skill, state, latest_message, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (task_id) DO UPDATE SET
			context_id     = EXCLUDED.context_id,
			skill          = EXCLUDED.skill,
			state          = EXCLUDED.state,
			latest_message = EXCLUDED.latest_message,
			updated_at     = now()
	`, t.TaskID, t.ContextID, t.Skill, string(t.State), []byte(t.LatestMessage))
	if err != nil {
		return fmt.Errorf("store: save task %s: %w", t.TaskID, err)
	}
	return nil
}

// Get loads a task row by id.
func (s *Store) Get(ctx context.Context, taskID string) (a2a.Task, error) {
	var t a2a.Task
	var state string
	err := s.pool.QueryRow(ctx, `
		SELECT task_id, context_id, skill, state, latest_message
		FROM a2a_tasks WHERE task_id = $1
	`, taskID).Scan(&t.TaskID, &t.ContextID, &t.Skill, &state, &t.LatestMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return a2a.Task{}, ErrNotFound
	}
	if err != nil {
		return a2a.Task{}, fmt.Errorf("store: get task %s: %w", taskID, err)
	}
	t.State = a2a.State(state)
	return t, nil
}

// ListIncomplete returns every task not yet in a terminal state, for a
// host to reconcile against on restart.
func (s *Store) ListIncomplete(ctx context.Context) ([]a2a.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, context_id, skill, state, latest_message
		FROM a2a_tasks
		WHERE state NOT IN ($1, $2, $3)
	`, string(a2a.StateCompleted), string(a2a.StateCancelled), string(a2a.StateFailed))
	if err != nil {
		return nil, fmt.Errorf("store: list incomplete: %w", err)
	}
	defer rows.Close()

	var tasks []a2a.Task
	for rows.Next() {
		var t a2a.Task
		var state string
		if err := rows.Scan(&t.TaskID, &t.ContextID, &t.Skill, &state, &t.LatestMessage); err != nil {
			return nil, fmt.Errorf("store: scan incomplete task: %w", err)
		}
		t.State = a2a.State(state)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CompleteTask atomically transitions a task to a terminal state and
// records the outcome in a2a_task_events, so the event survives a crash
// between commit and reply-publish. Adapted from the teacher's
// uow.UnitOfWork.Do — same begin/rollback-on-error/rollback-on-panic/
// commit shape, rewritten against pgx.Tx instead of *sql.Tx since this
// package's pool comes from pgxpool, not database/sql.
func (s *Store) CompleteTask(ctx context.Context, taskID string, state a2a.State, eventType string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store: context cancelled before transaction: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	var finished atomic.Bool
	defer func() {
		if p := recover(); p != nil {
			if !finished.Load() {
				_ = tx.Rollback(ctx)
			}
			panic(p)
		}
	}()

	if _, err := tx.Exec(ctx, `
		UPDATE a2a_tasks SET state = $2, updated_at = now() WHERE task_id = $1
	`, taskID, string(state)); err != nil {
		finished.Store(true)
		_ = tx.Rollback(ctx)
		return fmt.Errorf("store: update task state: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO a2a_task_events (task_id, event_type, payload) VALUES ($1, $2, $3)
	`, taskID, eventType, payload); err != nil {
		finished.Store(true)
		_ = tx.Rollback(ctx)
		return fmt.Errorf("store: insert task event: %w", err)
	}

	finished.Store(true)
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}
