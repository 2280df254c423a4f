package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ki-studio/internal/domain"
)

type PreferencesRepository interface {
	Get(ctx context.Context, userID string) (domain.Preferences, error)
	Upsert(ctx context.Context, prefs domain.Preferences) error
	// ToggleWidget invierte el estado minimizado en una sola sentencia y devuelve el nuevo valor.
	ToggleWidget(ctx context.Context, userID, widgetID string, at time.Time) (bool, error)
}

type PgPreferencesRepository struct {
	pool *pgxpool.Pool
}

func NewPgPreferencesRepository(pool *pgxpool.Pool) *PgPreferencesRepository {
	return &PgPreferencesRepository{pool: pool}
}

func (r *PgPreferencesRepository) Get(ctx context.Context, userID string) (domain.Preferences, error) {
	const query = `
		SELECT user_id, theme, widgets, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`
	var (
		prefs   domain.Preferences
		widgets []byte
	)
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&prefs.UserID, &prefs.Theme, &widgets, &prefs.UpdatedAt); err != nil {
		return domain.Preferences{}, err
	}
	prefs.Widgets = map[string]bool{}
	if len(widgets) > 0 {
		if err := json.Unmarshal(widgets, &prefs.Widgets); err != nil {
			return domain.Preferences{}, fmt.Errorf("unmarshal widgets: %w", err)
		}
	}
	return prefs, nil
}

func (r *PgPreferencesRepository) Upsert(ctx context.Context, prefs domain.Preferences) error {
	const query = `
		INSERT INTO user_preferences (user_id, theme, widgets, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET theme = EXCLUDED.theme, widgets = EXCLUDED.widgets, updated_at = EXCLUDED.updated_at
	`
	widgets := prefs.Widgets
	if widgets == nil {
		widgets = map[string]bool{}
	}
	payload, err := json.Marshal(widgets)
	if err != nil {
		return fmt.Errorf("marshal widgets: %w", err)
	}
	_, err = r.pool.Exec(ctx, query, prefs.UserID, prefs.Theme, payload, prefs.UpdatedAt)
	return err
}

func (r *PgPreferencesRepository) ToggleWidget(ctx context.Context, userID, widgetID string, at time.Time) (bool, error) {
	const query = `
		INSERT INTO user_preferences (user_id, widgets, updated_at)
		VALUES ($1, jsonb_build_object($2::text, true), $3)
		ON CONFLICT (user_id) DO UPDATE
		SET widgets = jsonb_set(
				user_preferences.widgets,
				ARRAY[$2::text],
				to_jsonb(NOT COALESCE((user_preferences.widgets ->> $2::text)::boolean, false))
			),
			updated_at = EXCLUDED.updated_at
		RETURNING (widgets ->> $2::text)::boolean
	`
	var minimized bool
	if err := r.pool.QueryRow(ctx, query, userID, widgetID, at).Scan(&minimized); err != nil {
		return false, err
	}
	return minimized, nil
}
