package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"ki-studio/internal/domain"
	"ki-studio/internal/repository"
)

var (
	ErrInvalidTheme   = errors.New("theme must be light, dark or system")
	ErrWidgetRequired = errors.New("widget id is required")
)

// PreferencesService guarda apariencia y estado de widgets por usuario.
type PreferencesService struct {
	repo repository.PreferencesRepository
}

func NewPreferencesService(repo repository.PreferencesRepository) *PreferencesService {
	return &PreferencesService{repo: repo}
}

// Get devuelve las preferencias guardadas o los valores por defecto.
func (s *PreferencesService) Get(ctx context.Context, userID string) (domain.Preferences, error) {
	prefs, err := s.repo.Get(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultPreferences(userID), nil
	}
	if err != nil {
		return domain.Preferences{}, err
	}
	if prefs.Widgets == nil {
		prefs.Widgets = map[string]bool{}
	}
	return prefs, nil
}

func (s *PreferencesService) SetTheme(ctx context.Context, userID, theme string) (domain.Preferences, error) {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if !domain.IsValidTheme(theme) {
		return domain.Preferences{}, ErrInvalidTheme
	}
	prefs, err := s.Get(ctx, userID)
	if err != nil {
		return domain.Preferences{}, err
	}
	prefs.Theme = theme
	prefs.UpdatedAt = time.Now().UTC()
	if err := s.repo.Upsert(ctx, prefs); err != nil {
		return domain.Preferences{}, err
	}
	return prefs, nil
}

// ToggleWidget invierte el estado minimizado del widget y devuelve el nuevo valor.
func (s *PreferencesService) ToggleWidget(ctx context.Context, userID, widgetID string) (bool, error) {
	widgetID = strings.TrimSpace(widgetID)
	if widgetID == "" {
		return false, ErrWidgetRequired
	}
	return s.repo.ToggleWidget(ctx, userID, widgetID, time.Now().UTC())
}
