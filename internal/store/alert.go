package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Alert is one journaled HIGH classification.
type Alert struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	Severity        string    `json:"severity"`
	Score           float64   `json:"score"`
	Indicators      []string  `json:"indicators"`
	RemoteTimestamp string    `json:"remote_timestamp,omitempty"`
	Image           []byte    `json:"-"`
	HasImage        bool      `json:"has_image"`
	CreatedAt       time.Time `json:"created_at"`
}

// AlertRepository provides access to journaled alerts.
type AlertRepository struct {
	db *sql.DB
}

// Alerts returns the alert repository for this store.
func (s *Store) Alerts() *AlertRepository {
	return &AlertRepository{db: s.db}
}

// Create inserts a new alert. CreatedAt is set when zero.
func (r *AlertRepository) Create(a *Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	indicators := a.Indicators
	if indicators == nil {
		indicators = []string{}
	}
	encoded, err := json.Marshal(indicators)
	if err != nil {
		return err
	}

	var image any
	if len(a.Image) > 0 {
		image = a.Image
	}
	a.HasImage = image != nil

	_, err = r.db.Exec(
		`INSERT INTO alerts (id, source, severity, score, indicators, remote_timestamp, image, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Source, a.Severity, a.Score, string(encoded), a.RemoteTimestamp, image, a.CreatedAt,
	)
	return err
}

// GetByID retrieves an alert, image included.
func (r *AlertRepository) GetByID(id string) (*Alert, error) {
	a := &Alert{}
	var indicators string

	err := r.db.QueryRow(
		`SELECT id, source, severity, score, indicators, remote_timestamp, image, created_at
		 FROM alerts WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.Source, &a.Severity, &a.Score, &indicators, &a.RemoteTimestamp, &a.Image, &a.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(indicators), &a.Indicators); err != nil {
		return nil, err
	}
	a.HasImage = len(a.Image) > 0
	return a, nil
}

// Recent returns up to limit alerts, newest first, without images.
func (r *AlertRepository) Recent(limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, source, severity, score, indicators, remote_timestamp, image IS NOT NULL, created_at
		 FROM alerts ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []*Alert{}
	for rows.Next() {
		a := &Alert{}
		var indicators string

		err := rows.Scan(&a.ID, &a.Source, &a.Severity, &a.Score, &indicators, &a.RemoteTimestamp, &a.HasImage, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(indicators), &a.Indicators); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}

// Count returns the number of journaled alerts.
func (r *AlertRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&n)
	return n, err
}

// DeleteBefore removes alerts created before t and returns how many went.
func (r *AlertRepository) DeleteBefore(t time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM alerts WHERE created_at < ?`, t)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes an alert by its ID.
func (r *AlertRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
