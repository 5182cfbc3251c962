package store

import (
	"database/sql"
	"time"

	"github.com/ayusman/drishti/internal/attention"
)

// Check is the persisted outcome of one periodic alert check for a person.
type Check struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	PersonID     string    `json:"person_id"`
	At           time.Time `json:"at"`
	State        string    `json:"state"`
	AvgAttention float64   `json:"avg_attention"`
	PresencePct  float64   `json:"presence_pct"`
	Samples      int       `json:"samples"`
}

// CheckFromDecision converts an engine decision for storage under sessionID.
func CheckFromDecision(sessionID string, d attention.Decision) Check {
	return Check{
		SessionID:    sessionID,
		PersonID:     d.PersonID,
		At:           d.At.UTC(),
		State:        d.State.String(),
		AvgAttention: d.Stats.AvgAttention,
		PresencePct:  d.Stats.PresencePct,
		Samples:      d.Stats.Samples,
	}
}

// CheckRepository provides access to check outcomes.
type CheckRepository struct {
	db *sql.DB
}

// Checks returns the check repository for this store.
func (s *Store) Checks() *CheckRepository {
	return &CheckRepository{db: s.db}
}

// Create inserts checks in a single transaction.
func (r *CheckRepository) Create(checks ...Check) error {
	if len(checks) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO checks (session_id, person_id, at, state, avg_attention, presence_pct, samples)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range checks {
		if _, err := stmt.Exec(c.SessionID, c.PersonID, c.At.UTC(), c.State, c.AvgAttention, c.PresencePct, c.Samples); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBySession returns the checks of a session in time order.
func (r *CheckRepository) ListBySession(sessionID string) ([]Check, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, person_id, at, state, avg_attention, presence_pct, samples
		 FROM checks
		 WHERE session_id = ?
		 ORDER BY at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []Check
	for rows.Next() {
		var c Check
		if err := rows.Scan(&c.ID, &c.SessionID, &c.PersonID, &c.At, &c.State, &c.AvgAttention, &c.PresencePct, &c.Samples); err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return checks, nil
}
