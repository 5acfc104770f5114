package application

import (
	"fmt"

	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"
)

var allEventTypes = []events.EventType{
	events.EventTypePoolCreated,
	events.EventTypeWagerPlaced,
	events.EventTypePoolLocked,
	events.EventTypePoolSettled,
	events.EventTypePoolCancelled,
}

var terminalEventTypes = []events.EventType{
	events.EventTypePoolSettled,
	events.EventTypePoolCancelled,
}

// RegisterApplicationSubscriptions wires the handlers: metrics sees every
// event in-process, and the recorder sees terminal transitions. With a
// durable subscriber the recorder reads from the stream, so a record that
// fails to save is retried on redelivery; otherwise it runs in-process.
func RegisterApplicationSubscriptions(
	local interfaces.EventSubscriber,
	durable interfaces.DurableEventSubscriber,
	recorder *SettlementRecorder,
	metrics interfaces.EventHandler,
) error {
	for _, eventType := range allEventTypes {
		local.RegisterLocalHandler(eventType, metrics)
	}

	for _, eventType := range terminalEventTypes {
		if durable == nil {
			local.RegisterLocalHandler(eventType, recorder.HandleEvent)
			continue
		}
		if err := durable.Subscribe(eventType, recorder.HandleEvent); err != nil {
			return fmt.Errorf("failed to subscribe recorder to %s: %w", eventType, err)
		}
	}

	return nil
}
