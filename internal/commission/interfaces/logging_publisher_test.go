package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fuel-commission/internal/commission/application"
	commission "fuel-commission/internal/commission/domain"
)

func TestLoggingPublisher_WritesStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	publisher := NewLoggingPublisher(zerolog.New(&buf))

	err := publisher.PublishCommissionCalculated(context.Background(), application.CommissionCalculated{
		RecordID:        "rec-1",
		StationID:       "station-1",
		Period:          commission.MustParsePeriod("2024-03"),
		TotalCommission: decimal.NewFromInt(500),
		DataSource:      commission.DataSourceSales,
		OccurredAt:      time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["station_id"] != "station-1" || line["total_commission"] != "500.00" || line["period"] != "2024-03" {
		t.Fatalf("unexpected log line: %v", line)
	}
}
