package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/tasktracker/internal/model"
)

const taskColumns = "id, title, description, status, due_date, created_at, assigned_to_id"

// TaskRepo encapsulates all database queries related to tasks.
type TaskRepo struct {
	db *sql.DB
}

// NewTaskRepo constructs a TaskRepo with the provided DB handle.
func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// List returns all tasks ordered by id.
func (r *TaskRepo) List(ctx context.Context) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches a task by its ID.  It returns ErrNotFound if no row is found.
func (r *TaskRepo) GetByID(ctx context.Context, id uint64) (*model.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// Create inserts a new task.  On success the task's ID field is populated
// with the auto-generated value.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	const q = `INSERT INTO tasks (title, description, status, due_date, created_at, assigned_to_id)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.Title, t.Description, t.Status, t.DueDate, t.CreatedAt, nullID(t.AssignedToID))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// Update writes every mutable column of t.
func (r *TaskRepo) Update(ctx context.Context, t *model.Task) error {
	const q = `UPDATE tasks
	           SET title = ?, description = ?, status = ?, due_date = ?, assigned_to_id = ?
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, t.Title, t.Description, t.Status, t.DueDate, nullID(t.AssignedToID), t.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateStatuses persists derived statuses for the given tasks in a single
// transaction.
func (r *TaskRepo) UpdateStatuses(ctx context.Context, tasks []*model.Task) (err error) {
	if len(tasks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	for _, t := range tasks {
		if _, err = tx.ExecContext(ctx, "UPDATE tasks SET status = ? WHERE id = ?", t.Status, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a task.  It returns ErrNotFound when no row was deleted.
func (r *TaskRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanTask(s rowScanner) (*model.Task, error) {
	var (
		t        model.Task
		desc     sql.NullString
		assignee sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.Title, &desc, &t.Status, &t.DueDate, &t.CreatedAt, &assignee); err != nil {
		return nil, err
	}
	t.Description = desc.String
	t.DueDate = t.DueDate.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	if assignee.Valid {
		id := uint64(assignee.Int64)
		t.AssignedToID = &id
	}
	return &t, nil
}

func nullID(id *uint64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
