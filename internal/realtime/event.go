// Package realtime carries service events between components and processes.
package realtime

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventReportSubmitted   EventType = "report.submitted"
	EventReportConflict    EventType = "report.conflict"
	EventSummaryUpdated    EventType = "summary.updated"
	EventReferenceRefetch  EventType = "reference.refetch"
	EventProfileReevaluate EventType = "profile.reevaluate"
)

// Event is the envelope published on the bus. Data must be JSON-encodable.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	UserID     uint           `json:"user_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func NewEvent(t EventType, userID uint, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}
