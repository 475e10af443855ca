package interfaces

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"fuel-commission/internal/commission/application"
)

// LoggingPublisher logs commission calculated events.
type LoggingPublisher struct {
	logger zerolog.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger zerolog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger.With().Str("component", "commission_events").Logger()}
}

// PublishCommissionCalculated logs the event.
func (p *LoggingPublisher) PublishCommissionCalculated(ctx context.Context, event application.CommissionCalculated) error {
	_ = ctx
	if p == nil {
		return errors.New("commission publisher: nil publisher")
	}
	p.logger.Info().
		Str("record_id", event.RecordID).
		Str("station_id", event.StationID).
		Str("period", event.Period.String()).
		Str("total_commission", event.TotalCommission.StringFixed(2)).
		Str("data_source", string(event.DataSource)).
		Bool("correction", event.Correction).
		Time("occurred_at", event.OccurredAt).
		Msg("commission calculated")
	return nil
}
