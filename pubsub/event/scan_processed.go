package event

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"checkin/entity"
	"checkin/metrics"
	"checkin/tally"
)

type ScanListener interface {
	ScanProcessed(event entity.ScanProcessed)
}

// RecordTallyHandler feeds the session tally. Rate-limited outcomes say
// nothing about the ticket that was scanned, so they are not tallied.
func RecordTallyHandler(t *tally.Tally) cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"RecordSessionTally",
		func(ctx context.Context, event *entity.ScanProcessed) error {
			if event.Result.Kind == entity.KindRateLimited {
				return nil
			}

			t.Record(event.Result)
			return nil
		},
	)
}

func RecordMetricsHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"RecordScanMetrics",
		func(ctx context.Context, event *entity.ScanProcessed) error {
			outcome := "success"
			if !event.Result.Success {
				outcome = string(event.Result.Kind)
			}

			metrics.ScansProcessed.WithLabelValues(outcome).Inc()
			return nil
		},
	)
}

func NotifyListenerHandler(listener ScanListener) cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"NotifyScanListener",
		func(ctx context.Context, event *entity.ScanProcessed) error {
			listener.ScanProcessed(*event)
			return nil
		},
	)
}
