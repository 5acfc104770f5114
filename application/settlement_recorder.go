package application

import (
	"context"
	"fmt"

	"parimutuel/domain/entities"
	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// SettlementRecorder persists every settled and cancelled pool so failed
// credits can be reconciled later
type SettlementRecorder struct {
	records interfaces.SettlementRecordRepository
}

// NewSettlementRecorder creates a new settlement recorder
func NewSettlementRecorder(records interfaces.SettlementRecordRepository) *SettlementRecorder {
	return &SettlementRecorder{records: records}
}

// HandleEvent stores the record carried by a settled or cancelled event.
// Other events are ignored.
func (r *SettlementRecorder) HandleEvent(ctx context.Context, event events.Event) error {
	var record *entities.SettlementRecord
	switch e := event.(type) {
	case events.PoolSettledEvent:
		if e.Result == nil {
			return fmt.Errorf("settled event without result")
		}
		record = entities.NewSettledRecord(e.Result)
	case events.PoolCancelledEvent:
		if e.Result == nil {
			return fmt.Errorf("cancelled event without result")
		}
		record = entities.NewCancelledRecord(e.Result)
	default:
		return nil
	}

	if err := r.records.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save %s record for pool %s: %w", record.Kind, record.PoolID, err)
	}

	fields := log.Fields{
		"poolID":    record.PoolID,
		"kind":      record.Kind,
		"lines":     len(record.Lines),
		"totalPaid": record.TotalPaid,
	}
	if record.FailedCredits > 0 {
		fields["failedCredits"] = record.FailedCredits
		log.WithFields(fields).Warn("Recorded pool with uncredited lines")
	} else {
		log.WithFields(fields).Info("Recorded pool")
	}
	return nil
}
