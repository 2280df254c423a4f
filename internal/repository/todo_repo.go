package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ki-studio/internal/domain"
)

// TodoRepository define la persistencia de tareas. Todas las consultas filtran por dueño.
type TodoRepository interface {
	Create(ctx context.Context, todo domain.Todo) error
	ListByUserID(ctx context.Context, userID string) ([]domain.Todo, error)
	GetByID(ctx context.Context, id, userID string) (domain.Todo, error)
	Update(ctx context.Context, todo domain.Todo) error
	Delete(ctx context.Context, id, userID string) error
}

type PgTodoRepository struct {
	pool *pgxpool.Pool
}

func NewPgTodoRepository(pool *pgxpool.Pool) *PgTodoRepository {
	return &PgTodoRepository{pool: pool}
}

func (r *PgTodoRepository) Create(ctx context.Context, todo domain.Todo) error {
	const query = `
		INSERT INTO todos (id, user_id, text, done, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		todo.ID,
		todo.UserID,
		todo.Text,
		todo.Done,
		todo.CreatedAt,
		todo.UpdatedAt,
	)
	return err
}

func (r *PgTodoRepository) ListByUserID(ctx context.Context, userID string) ([]domain.Todo, error) {
	const query = `
		SELECT id, user_id, text, done, created_at, updated_at
		FROM todos
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := []domain.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

func (r *PgTodoRepository) GetByID(ctx context.Context, id, userID string) (domain.Todo, error) {
	const query = `
		SELECT id, user_id, text, done, created_at, updated_at
		FROM todos
		WHERE id = $1 AND user_id = $2
	`
	return scanTodo(r.pool.QueryRow(ctx, query, id, userID))
}

func (r *PgTodoRepository) Update(ctx context.Context, todo domain.Todo) error {
	const query = `
		UPDATE todos
		SET text = $3, done = $4, updated_at = $5
		WHERE id = $1 AND user_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, todo.ID, todo.UserID, todo.Text, todo.Done, todo.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgTodoRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTodo(row rowScanner) (domain.Todo, error) {
	var t domain.Todo
	err := row.Scan(&t.ID, &t.UserID, &t.Text, &t.Done, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
