package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"

	"checkin/pubsub/event"
	"checkin/tally"
)

// NewRouter wires the scan-event subscribers: the session tally, the
// Prometheus recorder and an optional extra listener (e.g. an operator
// display).
func NewRouter(
	subscriber message.Subscriber,
	sessionTally *tally.Tally,
	listener event.ScanListener,
	watermillLogger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	useMiddlewares(router, watermillLogger)

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, cqrs.EventProcessorConfig{
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return subscriber, nil
		},
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			return params.EventName, nil
		},
		Marshaler: marshaler,
		Logger:    watermillLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create event processor: %w", err)
	}

	handlers := []cqrs.EventHandler{
		event.RecordTallyHandler(sessionTally),
		event.RecordMetricsHandler(),
	}
	if listener != nil {
		handlers = append(handlers, event.NotifyListenerHandler(listener))
	}

	if err := eventProcessor.AddHandlers(handlers...); err != nil {
		return nil, fmt.Errorf("could not add event handlers: %w", err)
	}

	return router, nil
}
