package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"ki-studio/internal/domain"
	"ki-studio/internal/imagegen"
	"ki-studio/internal/service"
)

type memPreferencesRepo struct {
	prefs map[string]domain.Preferences
}

func (m *memPreferencesRepo) Get(_ context.Context, userID string) (domain.Preferences, error) {
	p, ok := m.prefs[userID]
	if !ok {
		return domain.Preferences{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memPreferencesRepo) Upsert(_ context.Context, prefs domain.Preferences) error {
	m.prefs[prefs.UserID] = prefs
	return nil
}

func (m *memPreferencesRepo) ToggleWidget(_ context.Context, userID, widgetID string, at time.Time) (bool, error) {
	p, ok := m.prefs[userID]
	if !ok {
		p = domain.DefaultPreferences(userID)
	}
	if p.Widgets == nil {
		p.Widgets = map[string]bool{}
	}
	p.Widgets[widgetID] = !p.Widgets[widgetID]
	p.UpdatedAt = at
	m.prefs[userID] = p
	return p.Widgets[widgetID], nil
}

func setupRouter(t *testing.T, db Pinger) (*gin.Engine, *service.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	jwtSvc := newTestJWT()
	users := service.NewUserService(logger, newMockUserRepo())
	images := service.NewImageService(logger, &stubGenerator{img: imagegen.Image{Base64: "eA=="}}, nil, nil)

	h := Handlers{
		User:     NewUserHandler(logger, users, jwtSvc),
		Todo:     NewTodoHandler(logger, service.NewTodoService(&mockTodoRepo{todos: map[string]domain.Todo{}})),
		Image:    NewImageHandler(logger, images),
		Settings: NewSettingsHandler(logger, service.NewPreferencesService(&memPreferencesRepo{prefs: map[string]domain.Preferences{}})),
		Health:   NewHealthHandler(logger, db, nil),
	}
	return NewRouter(logger, jwtSvc, h), jwtSvc
}

func okPinger() Pinger {
	return PingFunc(func(context.Context) error { return nil })
}

func TestRouter_PingAndHealth(t *testing.T) {
	r, _ := setupRouter(t, okPinger())

	rec := performRequest(r, http.MethodGet, "/ping", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("unexpected ping response %d %q", rec.Code, rec.Body.String())
	}
	rec = performRequest(r, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"redis":"disabled"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_HealthReportsDatabaseDown(t *testing.T) {
	r, _ := setupRouter(t, PingFunc(func(context.Context) error { return errors.New("connection refused") }))

	rec := performRequest(r, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), `"db":"down"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_ProtectsAPIRoutes(t *testing.T) {
	r, _ := setupRouter(t, okPinger())

	for _, path := range []string{"/api/todos", "/api/settings", "/api/history"} {
		if rec := performRequest(r, http.MethodGet, path, nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}
	rec := performRequest(r, http.MethodPost, "/api/image", imageRequest("un faro"))
	if rec.Code != http.StatusOK {
		t.Fatalf("image route must stay public, got %d", rec.Code)
	}
}

func TestRouter_AuthenticatedFlow(t *testing.T) {
	r, _ := setupRouter(t, okPinger())
	out := decodeAuth(t, performRequest(r, http.MethodPost, "/api/auth/guest", nil))

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(mustJSON(t, body)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+out.Tokens.AccessToken)
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(http.MethodPost, "/api/todos", map[string]string{"text": "probar"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 creating todo, got %d", rec.Code)
	}
	if rec := do(http.MethodGet, "/api/settings", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"theme":"system"`) {
		t.Fatalf("unexpected default settings %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(http.MethodPut, "/api/settings", map[string]string{"theme": "neon"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid theme, got %d", rec.Code)
	}
	if rec := do(http.MethodPut, "/api/settings", map[string]string{"theme": "dark"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for dark theme, got %d", rec.Code)
	}
	rec := do(http.MethodPost, "/api/settings/widgets/todo/toggle", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"minimized":true`) {
		t.Fatalf("unexpected toggle response %d %s", rec.Code, rec.Body.String())
	}
	rec = do(http.MethodPost, "/api/settings/widgets/todo/toggle", nil)
	if !strings.Contains(rec.Body.String(), `"minimized":false`) {
		t.Fatalf("second toggle must restore the widget, got %s", rec.Body.String())
	}
}

func TestRouter_ExposesMetrics(t *testing.T) {
	r, _ := setupRouter(t, okPinger())
	performRequest(r, http.MethodGet, "/ping", nil)

	rec := performRequest(r, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "kistudio_http_requests_total") {
		t.Fatalf("expected prometheus metrics, got %d", rec.Code)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}
