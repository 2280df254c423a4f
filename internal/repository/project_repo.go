package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ki-studio/internal/domain"
)

type ProjectRepository interface {
	Create(ctx context.Context, project domain.Project) error
	GetByID(ctx context.Context, id, userID string) (domain.Project, error)
	ListByUserID(ctx context.Context, userID string) ([]domain.Project, error)
	Delete(ctx context.Context, id, userID string) error
}

type PgProjectRepository struct {
	pool *pgxpool.Pool
}

func NewPgProjectRepository(pool *pgxpool.Pool) *PgProjectRepository {
	return &PgProjectRepository{pool: pool}
}

func (r *PgProjectRepository) Create(ctx context.Context, project domain.Project) error {
	const query = `
		INSERT INTO projects (id, user_id, title, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, project.ID, project.UserID, project.Title, project.CreatedAt)
	return err
}

func (r *PgProjectRepository) GetByID(ctx context.Context, id, userID string) (domain.Project, error) {
	const query = `
		SELECT id, user_id, title, created_at
		FROM projects
		WHERE id = $1 AND user_id = $2
	`
	var p domain.Project
	err := r.pool.QueryRow(ctx, query, id, userID).Scan(&p.ID, &p.UserID, &p.Title, &p.CreatedAt)
	return p, err
}

func (r *PgProjectRepository) ListByUserID(ctx context.Context, userID string) ([]domain.Project, error) {
	const query = `
		SELECT id, user_id, title, created_at
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []domain.Project{}
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *PgProjectRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
