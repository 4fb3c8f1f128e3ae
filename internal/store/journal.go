package store

import (
	"github.com/google/uuid"

	"github.com/ayusman/riskcam/internal/analysis"
	"github.com/ayusman/riskcam/internal/logger"
	"github.com/ayusman/riskcam/internal/render"
)

// Journal records alerts and gallery saves. It implements render.Notifier.
type Journal struct {
	store     *Store
	withImage bool
	// OnRecord, when set, is called after each alert is written.
	OnRecord func(a *Alert)
}

// NewJournal creates a journal over s. withImage keeps the alert frame.
func NewJournal(s *Store, withImage bool) *Journal {
	return &Journal{store: s, withImage: withImage}
}

// Notify writes a to the alerts table. Failures are logged.
func (j *Journal) Notify(a render.Alert) {
	if _, err := j.Record(a); err != nil {
		logger.Warn("Journal", "record alert: %v", err)
	}
}

// Record writes a and returns the stored row.
func (j *Journal) Record(a render.Alert) (*Alert, error) {
	row := &Alert{
		ID:              uuid.New().String(),
		Source:          a.Source,
		Severity:        a.Severity.String(),
		Score:           a.Score,
		Indicators:      a.Indicators,
		RemoteTimestamp: a.Timestamp,
		CreatedAt:       a.At,
	}
	if j.withImage && a.Frame != nil {
		row.Image = a.Frame.Data
	}

	if err := j.store.Alerts().Create(row); err != nil {
		return nil, err
	}
	logger.Debug("Journal", "recorded alert %s (%s %.3f)", row.ID, row.Severity, row.Score)

	if j.OnRecord != nil {
		j.OnRecord(row)
	}
	return row, nil
}

// RecordSave stores the outcome of a gallery save. alertID may be empty.
func (j *Journal) RecordSave(alertID string, res analysis.SaveResult) {
	sv := &Save{AlertID: alertID, Original: res.Original, Error: res.Error}
	if err := j.store.Saves().Create(sv); err != nil {
		logger.Warn("Journal", "record gallery save: %v", err)
	}
}

// Recent returns the newest alerts.
func (j *Journal) Recent(limit int) ([]*Alert, error) {
	return j.store.Alerts().Recent(limit)
}
