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
	ErrTextRequired = errors.New("Text is required")
	ErrIDRequired   = errors.New("ID is required")
	ErrTodoNotFound = errors.New("todo not found")
)

// TodoUpdate lleva sólo los campos presentes en el PATCH.
type TodoUpdate struct {
	ID   string
	Done *bool
	Text *string
}

type TodoService struct {
	repo repository.TodoRepository
}

func NewTodoService(repo repository.TodoRepository) *TodoService {
	return &TodoService{repo: repo}
}

func (s *TodoService) List(ctx context.Context, userID string) ([]domain.Todo, error) {
	return s.repo.ListByUserID(ctx, userID)
}

func (s *TodoService) Create(ctx context.Context, userID, text string) (domain.Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Todo{}, ErrTextRequired
	}
	now := time.Now().UTC()
	todo := domain.Todo{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, todo); err != nil {
		return domain.Todo{}, err
	}
	return todo, nil
}

func (s *TodoService) Update(ctx context.Context, userID string, in TodoUpdate) (domain.Todo, error) {
	id, err := normalizeID(in.ID)
	if err != nil {
		return domain.Todo{}, err
	}
	if !isUUID(id) {
		return domain.Todo{}, ErrTodoNotFound
	}

	todo, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return domain.Todo{}, mapTodoError(err)
	}
	if in.Text != nil {
		text := strings.TrimSpace(*in.Text)
		if text == "" {
			return domain.Todo{}, ErrTextRequired
		}
		todo.Text = text
	}
	if in.Done != nil {
		todo.Done = *in.Done
	}
	todo.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, todo); err != nil {
		return domain.Todo{}, mapTodoError(err)
	}
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, userID, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	if !isUUID(id) {
		return ErrTodoNotFound
	}
	return mapTodoError(s.repo.Delete(ctx, id, userID))
}

// normalizeID rechaza ids vacíos.
func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrIDRequired
	}
	return id, nil
}

// isUUID evita mandar a postgres ids que no pueden existir en columnas uuid.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func mapTodoError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTodoNotFound
	}
	return err
}
