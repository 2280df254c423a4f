package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"ki-studio/internal/domain"
)

type mockPreferencesRepo struct {
	mu     sync.Mutex
	stored map[string]domain.Preferences
}

func (m *mockPreferencesRepo) Get(_ context.Context, userID string) (domain.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.stored[userID]
	if !ok {
		return domain.Preferences{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockPreferencesRepo) Upsert(_ context.Context, prefs domain.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[prefs.UserID] = prefs
	return nil
}

func (m *mockPreferencesRepo) ToggleWidget(_ context.Context, userID, widgetID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.stored[userID]
	if !ok {
		p = domain.DefaultPreferences(userID)
	}
	widgets := make(map[string]bool, len(p.Widgets)+1)
	for k, v := range p.Widgets {
		widgets[k] = v
	}
	widgets[widgetID] = !widgets[widgetID]
	p.Widgets = widgets
	p.UpdatedAt = at
	m.stored[userID] = p
	return widgets[widgetID], nil
}

func TestPreferencesService_DefaultsAndTheme(t *testing.T) {
	repo := &mockPreferencesRepo{stored: map[string]domain.Preferences{}}
	svc := NewPreferencesService(repo)
	ctx := context.Background()

	prefs, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if prefs.Theme != domain.ThemeSystem || prefs.Widgets == nil {
		t.Fatalf("unexpected defaults %+v", prefs)
	}

	if _, err := svc.SetTheme(ctx, "u1", "sepia"); !errors.Is(err, ErrInvalidTheme) {
		t.Fatalf("expected ErrInvalidTheme, got %v", err)
	}
	if _, err := svc.SetTheme(ctx, "u1", " Dark "); err != nil {
		t.Fatalf("set theme: %v", err)
	}
	if repo.stored["u1"].Theme != domain.ThemeDark {
		t.Fatalf("expected dark theme persisted")
	}
}

func TestPreferencesService_ToggleWidget(t *testing.T) {
	repo := &mockPreferencesRepo{stored: map[string]domain.Preferences{}}
	svc := NewPreferencesService(repo)
	ctx := context.Background()

	minimized, err := svc.ToggleWidget(ctx, "u1", "todos")
	if err != nil || !minimized {
		t.Fatalf("expected minimized=true, got %v %v", minimized, err)
	}
	minimized, err = svc.ToggleWidget(ctx, "u1", "todos")
	if err != nil || minimized {
		t.Fatalf("expected minimized=false, got %v %v", minimized, err)
	}
	if _, err := svc.ToggleWidget(ctx, "u1", " "); !errors.Is(err, ErrWidgetRequired) {
		t.Fatalf("expected ErrWidgetRequired, got %v", err)
	}
}

func TestPreferencesService_ConcurrentTogglesAreNotLost(t *testing.T) {
	repo := &mockPreferencesRepo{stored: map[string]domain.Preferences{}}
	svc := NewPreferencesService(repo)
	ctx := context.Background()

	if _, err := svc.SetTheme(ctx, "u1", "dark"); err != nil {
		t.Fatalf("set theme: %v", err)
	}

	const toggles = 21
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ToggleWidget(ctx, "u1", "todos"); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	prefs, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !prefs.Widgets["todos"] {
		t.Fatalf("expected an odd number of toggles to leave the widget minimized")
	}
	if prefs.Theme != domain.ThemeDark {
		t.Fatalf("toggle must keep the theme, got %q", prefs.Theme)
	}
}
