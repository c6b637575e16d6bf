package store

import (
	"time"

	"github.com/ayusman/fingerdrive/internal/gesture"
)

// Journal appends motion changes to one session.
type Journal struct {
	events    *EventRepository
	sessionID string
}

// NewJournal returns a Journal writing into sessionID.
func (s *Store) NewJournal(sessionID string) *Journal {
	return &Journal{events: s.Events(), sessionID: sessionID}
}

// SessionID returns the session the journal writes into.
func (j *Journal) SessionID() string {
	return j.sessionID
}

// RecordMotion stores a motion change.
func (j *Journal) RecordMotion(m gesture.Motion, count int, at time.Time) error {
	return j.events.Record(&MotionEvent{
		SessionID:  j.sessionID,
		Motion:     m.String(),
		Count:      count,
		OccurredAt: at,
	})
}
