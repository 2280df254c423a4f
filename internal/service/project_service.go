package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ki-studio/internal/domain"
	"ki-studio/internal/repository"
)

var (
	ErrTitleRequired   = errors.New("Title is required")
	ErrProjectNotFound = errors.New("project not found")
)

type ProjectService struct {
	repo repository.ProjectRepository
}

func NewProjectService(repo repository.ProjectRepository) *ProjectService {
	return &ProjectService{repo: repo}
}

func (s *ProjectService) Create(ctx context.Context, userID, title string) (domain.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Project{}, ErrTitleRequired
	}
	project := domain.Project{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, userID string) ([]domain.Project, error) {
	return s.repo.ListByUserID(ctx, userID)
}

func (s *ProjectService) Get(ctx context.Context, userID, id string) (domain.Project, error) {
	if !isUUID(id) {
		return domain.Project{}, ErrProjectNotFound
	}
	p, err := s.repo.GetByID(ctx, id, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Project{}, ErrProjectNotFound
	}
	return p, err
}

func (s *ProjectService) Delete(ctx context.Context, userID, id string) error {
	if !isUUID(id) {
		return ErrProjectNotFound
	}
	err := s.repo.Delete(ctx, id, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProjectNotFound
	}
	return err
}
