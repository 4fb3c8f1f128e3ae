package store

import (
	"database/sql"
	"time"
)

// Save is the recorded outcome of one gallery capture-and-save request.
type Save struct {
	ID        int64     `json:"id"`
	AlertID   string    `json:"alert_id,omitempty"`
	Original  string    `json:"original,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveRepository records gallery saves.
type SaveRepository struct {
	db *sql.DB
}

// Saves returns the save repository for this store.
func (s *Store) Saves() *SaveRepository {
	return &SaveRepository{db: s.db}
}

// Create inserts sv. An empty AlertID is stored as NULL.
func (r *SaveRepository) Create(sv *Save) error {
	sv.CreatedAt = time.Now()

	var alertID any
	if sv.AlertID != "" {
		alertID = sv.AlertID
	}

	result, err := r.db.Exec(
		`INSERT INTO gallery_saves (alert_id, original, error, created_at) VALUES (?, ?, ?, ?)`,
		alertID, sv.Original, sv.Error, sv.CreatedAt,
	)
	if err != nil {
		return err
	}
	sv.ID, err = result.LastInsertId()
	return err
}

// ListByAlert returns the saves recorded for an alert, oldest first.
func (r *SaveRepository) ListByAlert(alertID string) ([]*Save, error) {
	rows, err := r.db.Query(
		`SELECT id, original, error, created_at FROM gallery_saves WHERE alert_id = ? ORDER BY id`,
		alertID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var saves []*Save
	for rows.Next() {
		sv := &Save{AlertID: alertID}
		if err := rows.Scan(&sv.ID, &sv.Original, &sv.Error, &sv.CreatedAt); err != nil {
			return nil, err
		}
		saves = append(saves, sv)
	}
	return saves, rows.Err()
}

// Failures returns how many saves recorded an error.
func (r *SaveRepository) Failures() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM gallery_saves WHERE error != ''`).Scan(&n)
	return n, err
}
