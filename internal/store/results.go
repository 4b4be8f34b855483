package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cioddi/metromesh-sub000/internal/game"
)

// SavedResult is a persisted game result together with its storage
// identity.
type SavedResult struct {
	ID         string      `json:"id"`
	FinishedAt time.Time   `json:"finishedAt"`
	Result     game.Result `json:"result"`
}

// SaveResult persists a finished game and returns its ID.
func (db *DB) SaveResult(ctx context.Context, res *game.Result, finishedAt time.Time) (string, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	resultID := uuid.New().String()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO game_results (
			result_id, city, score, duration_seconds, stations, routes,
			passengers_delivered, avg_wait_seconds, avg_leg_seconds,
			finished_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		resultID, res.City, res.Score, res.DurationSeconds, res.Stations, res.Routes,
		res.PassengersDelivered, res.AvgWaitSeconds, res.AvgLegSeconds,
		finishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save result: %w", err)
	}
	return resultID, nil
}

// TopResults returns the highest-scoring finished games for a city,
// best first.
func (db *DB) TopResults(ctx context.Context, city string, limit int) ([]SavedResult, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT result_id, city, score, duration_seconds, stations, routes,
		       passengers_delivered, avg_wait_seconds, avg_leg_seconds,
		       finished_at_utc
		FROM game_results
		WHERE city = ?
		ORDER BY score DESC, finished_at_utc ASC
		LIMIT ?
	`, city, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []SavedResult
	for rows.Next() {
		var r SavedResult
		var finishedAt string
		if err := rows.Scan(
			&r.ID, &r.Result.City, &r.Result.Score, &r.Result.DurationSeconds,
			&r.Result.Stations, &r.Result.Routes, &r.Result.PassengersDelivered,
			&r.Result.AvgWaitSeconds, &r.Result.AvgLegSeconds, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, finishedAt); err == nil {
			r.FinishedAt = t
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

const selectedCityKey = "selected_city"

// SelectedCity returns the persisted city choice, or the fallback when
// none has been stored yet.
func (db *DB) SelectedCity(ctx context.Context, fallback string) (string, error) {
	var city string
	err := db.conn.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", selectedCityKey,
	).Scan(&city)
	if err != nil {
		if err == sql.ErrNoRows {
			return fallback, nil
		}
		return "", fmt.Errorf("failed to read selected city: %w", err)
	}
	return city, nil
}

// SetSelectedCity persists the city choice across restarts.
func (db *DB) SetSelectedCity(ctx context.Context, city string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = datetime('now')
	`, selectedCityKey, city)
	if err != nil {
		return fmt.Errorf("failed to save selected city: %w", err)
	}
	return nil
}
