package store

import (
	"database/sql"
	"time"

	"github.com/ayusman/drishti/internal/attention"
)

// Alert is a persisted distraction alert.
type Alert struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	PersonID     string    `json:"person_id"`
	At           time.Time `json:"at"`
	AvgAttention float64   `json:"avg_attention"`
	PresencePct  float64   `json:"presence_pct"`
	Reason       string    `json:"reason"`
}

// AlertFromRecord converts an engine alert for storage under sessionID.
func AlertFromRecord(sessionID string, rec attention.AlertRecord) *Alert {
	return &Alert{
		SessionID:    sessionID,
		PersonID:     rec.PersonID,
		At:           rec.At.UTC(),
		AvgAttention: rec.AvgAttention,
		PresencePct:  rec.PresencePct,
		Reason:       rec.Reason,
	}
}

// AlertRepository provides access to alerts.
type AlertRepository struct {
	db *sql.DB
}

// Alerts returns the alert repository for this store.
func (s *Store) Alerts() *AlertRepository {
	return &AlertRepository{db: s.db}
}

// Create inserts an alert and sets its ID.
func (r *AlertRepository) Create(a *Alert) error {
	a.At = a.At.UTC()

	result, err := r.db.Exec(
		`INSERT INTO alerts (session_id, person_id, at, avg_attention, presence_pct, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.SessionID, a.PersonID, a.At, a.AvgAttention, a.PresencePct, a.Reason,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// ListBySession returns the alerts of a session in time order.
func (r *AlertRepository) ListBySession(sessionID string) ([]Alert, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, person_id, at, avg_attention, presence_pct, reason
		 FROM alerts
		 WHERE session_id = ?
		 ORDER BY at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.SessionID, &a.PersonID, &a.At, &a.AvgAttention, &a.PresencePct, &a.Reason); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}

// CountBySession returns how many alerts a session raised.
func (r *AlertRepository) CountBySession(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM alerts WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
