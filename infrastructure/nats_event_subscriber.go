package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

const handleTimeout = 30 * time.Second

// NATSEventSubscriber feeds events from durable JetStream consumers to
// handlers. Messages a handler fails on are redelivered by the client.
type NATSEventSubscriber struct {
	subscriber    MessageSubscriber
	subjectMapper *EventSubjectMapper
}

// NewNATSEventSubscriber creates a new NATS event subscriber
func NewNATSEventSubscriber(subscriber MessageSubscriber, subjectMapper *EventSubjectMapper) *NATSEventSubscriber {
	return &NATSEventSubscriber{
		subscriber:    subscriber,
		subjectMapper: subjectMapper,
	}
}

var _ interfaces.DurableEventSubscriber = (*NATSEventSubscriber)(nil)

// Subscribe attaches handler to the subject events of eventType are published on
func (s *NATSEventSubscriber) Subscribe(eventType events.EventType, handler interfaces.EventHandler) error {
	subject := s.subjectMapper.SubjectForType(eventType)

	return s.subscriber.Subscribe(subject, func(data []byte) error {
		event, err := DecodeEvent(data)
		if err != nil {
			return err
		}
		if event.Type() != eventType {
			log.WithFields(log.Fields{
				"subject":   subject,
				"eventType": event.Type(),
			}).Warn("Dropping event published on the wrong subject")
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		return handler(ctx, event)
	})
}

// DecodeEvent unwraps an envelope written by NATSEventPublisher
func DecodeEvent(data []byte) (events.Event, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	var event events.Event
	var err error
	switch events.EventType(envelope.EventType) {
	case events.EventTypePoolCreated:
		event, err = decodePayload[events.PoolCreatedEvent](envelope.Payload)
	case events.EventTypeWagerPlaced:
		event, err = decodePayload[events.WagerPlacedEvent](envelope.Payload)
	case events.EventTypePoolLocked:
		event, err = decodePayload[events.PoolLockedEvent](envelope.Payload)
	case events.EventTypePoolSettled:
		event, err = decodePayload[events.PoolSettledEvent](envelope.Payload)
	case events.EventTypePoolCancelled:
		event, err = decodePayload[events.PoolCancelledEvent](envelope.Payload)
	default:
		return nil, fmt.Errorf("unknown event type %q in envelope %s", envelope.EventType, envelope.EventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", envelope.EventType, err)
	}
	return event, nil
}

func decodePayload[T events.Event](payload json.RawMessage) (events.Event, error) {
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return event, nil
}
