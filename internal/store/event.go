package store

import (
	"database/sql"
	"time"
)

// MotionEvent is a change of the emitted motion within a session.
type MotionEvent struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Motion     string    `json:"motion"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventRepository records motion changes.
type EventRepository struct {
	db *sql.DB
}

// Events returns the motion event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Record inserts e and sets its ID. A zero OccurredAt is set to now.
func (r *EventRepository) Record(e *MotionEvent) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO motion_events (session_id, motion, finger_count, occurred_at)
		 VALUES (?, ?, ?, ?)`,
		e.SessionID, e.Motion, e.Count, e.OccurredAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id

	return nil
}

// ListBySession returns a session's events in the order they happened.
func (r *EventRepository) ListBySession(sessionID string) ([]*MotionEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, motion, finger_count, occurred_at
		 FROM motion_events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*MotionEvent
	for rows.Next() {
		e := &MotionEvent{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Motion, &e.Count, &e.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
