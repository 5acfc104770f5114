package observability

import (
	"context"

	"parimutuel/infrastructure"
)

// InstrumentedPublisher counts messages that next accepted
type InstrumentedPublisher struct {
	next    infrastructure.MessagePublisher
	metrics *MetricsProvider
}

// NewInstrumentedPublisher wraps next with a published-message counter
func NewInstrumentedPublisher(next infrastructure.MessagePublisher, metrics *MetricsProvider) *InstrumentedPublisher {
	return &InstrumentedPublisher{next: next, metrics: metrics}
}

func (p *InstrumentedPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := p.next.Publish(ctx, subject, data); err != nil {
		return err
	}
	p.metrics.RecordNATSMessagePublished(subject)
	return nil
}
