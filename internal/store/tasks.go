package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashveil/jobscout/internal/task"
)

// ErrTaskNotFound is returned for identifiers with no record. Callers
// surface this as a distinguished "unknown" status, never as pending.
var ErrTaskNotFound = errors.New("task not found")

// ErrConflict is returned when a status transition loses the race against
// a concurrent writer, e.g. two workers claiming the same task.
var ErrConflict = errors.New("conflicting task transition")

// CreateTask inserts a new task with status pending.
func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	params, err := json.Marshal(t.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	t.Status = task.StatusPending
	return s.db.QueryRow(ctx,
		`INSERT INTO tasks (id, status, params)
		 VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		t.ID, t.Status, params,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// MarkStarted transitions a task from pending to started. The conditional
// update makes the claim exclusive: only one worker ever wins it.
func (s *Store) MarkStarted(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE tasks SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`,
		task.StatusStarted, id, task.StatusPending)
	if err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// Complete writes the terminal success status and the result in one update,
// so no reader can observe success without a result.
func (s *Store) Complete(ctx context.Context, id, result string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE tasks SET status=$1, result=$2, updated_at=NOW() WHERE id=$3 AND status=$4`,
		task.StatusSuccess, result, id, task.StatusStarted)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// Fail writes the terminal failure status and the error description in one update.
func (s *Store) Fail(ctx context.Context, id, errMsg string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE tasks SET status=$1, error=$2, updated_at=NOW() WHERE id=$3 AND status=$4`,
		task.StatusFailure, errMsg, id, task.StatusStarted)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// DeleteTask removes a task that will never run, e.g. when its enqueue
// failed after the pending row was written.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id=$1 AND status=$2`,
		id, task.StatusPending)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// GetTask retrieves a task by ID. Absent rows yield ErrTaskNotFound.
func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	t := &task.Task{}
	var params []byte
	var result, errMsg *string
	err := s.db.QueryRow(ctx,
		`SELECT id, status, params, result, error, created_at, updated_at
		 FROM tasks WHERE id=$1`, id,
	).Scan(&t.ID, &t.Status, &params, &result, &errMsg, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if err := json.Unmarshal(params, &t.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	if result != nil {
		t.Result = *result
	}
	if errMsg != nil {
		t.Error = *errMsg
	}
	return t, nil
}
