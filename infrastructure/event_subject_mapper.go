package infrastructure

import (
	"fmt"

	"parimutuel/domain/events"
)

// PoolEventStream is the JetStream stream holding every pool subject
const PoolEventStream = "pool_events"

var subjectsByType = map[events.EventType]string{
	events.EventTypePoolCreated:   "pools.created",
	events.EventTypeWagerPlaced:   "pools.wager_placed",
	events.EventTypePoolLocked:    "pools.locked",
	events.EventTypePoolSettled:   "pools.settled",
	events.EventTypePoolCancelled: "pools.cancelled",
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	return m.SubjectForType(event.Type())
}

// SubjectForType returns the subject events of eventType are published on
func (m *EventSubjectMapper) SubjectForType(eventType events.EventType) string {
	if subject, ok := subjectsByType[eventType]; ok {
		return subject
	}
	return fmt.Sprintf("unknown.%s", eventType)
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range subjectsByType {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"pools.created",
		"pools.wager_placed",
		"pools.locked",
		"pools.settled",
		"pools.cancelled",
	}
}
