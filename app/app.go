package app

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"checkin/config"
	"checkin/fingerprint"
	"checkin/gateway"
	httpserver "checkin/http"
	"checkin/netmon"
	"checkin/pubsub"
	"checkin/pubsub/event"
	"checkin/scanner"
	"checkin/tally"
	"checkin/tracing"
)

// App wires one scanning station: gateway, reachability monitor, the scan
// event bus with its subscribers, the scanner controller and the local
// status server.
type App struct {
	cfg           config.Config
	router        *message.Router
	server        *httpserver.Server
	monitor       *netmon.Monitor
	scanner       *scanner.Controller
	sessionTally  *tally.Tally
	traceProvider *tracesdk.TracerProvider
}

func New(
	cfg config.Config,
	perms scanner.Permissions,
	locator scanner.Locator,
	feedback scanner.Feedback,
	presenter scanner.Presenter,
	listener event.ScanListener,
) (*App, error) {
	var traceProvider *tracesdk.TracerProvider
	if cfg.JaegerEndpoint != "" {
		tp, err := tracing.ConfigureTraceProvider(cfg.JaegerEndpoint, "checkin-station")
		if err != nil {
			return nil, fmt.Errorf("failed to configure tracing: %w", err)
		}
		traceProvider = tp
	}

	watermillLogger := pubsub.NewLogrusLogger(logrus.NewEntry(logrus.StandardLogger()))

	goChannel := pubsub.NewGoChannelPubSub(watermillLogger)
	var publisher message.Publisher = tracing.PublisherDecorator{Publisher: goChannel}

	eventBus, err := pubsub.NewEventBus(publisher)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	sessionTally := tally.New(tally.DefaultCapacity)

	router, err := pubsub.NewRouter(goChannel, sessionTally, listener, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	client := gateway.NewClient(gateway.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.HTTPTimeout,
	})
	checkInClient := gateway.NewCheckInClient(client)

	monitor := netmon.New(
		netmon.NewHTTPProber(cfg.ProbeURL, netmon.DefaultProbeTimeout),
		cfg.ProbeInterval,
		clock.New(),
	)

	scanController := scanner.NewController(
		scanner.Config{
			EventID:       cfg.EventID,
			SubmitTimeout: cfg.HTTPTimeout,
		},
		checkInClient,
		perms,
		locator,
		fingerprint.NewFileProvider(cfg.FingerprintPath),
		eventBus,
		feedback,
		presenter,
		clock.New(),
	)

	server := httpserver.NewServer(cfg.StationAddr, sessionTally, monitor)

	return &App{
		cfg:           cfg,
		router:        router,
		server:        server,
		monitor:       monitor,
		scanner:       scanController,
		sessionTally:  sessionTally,
		traceProvider: traceProvider,
	}, nil
}

func (a *App) Scanner() *scanner.Controller {
	return a.scanner
}

func (a *App) Tally() *tally.Tally {
	return a.sessionTally
}

func (a *App) Connected() bool {
	return a.monitor.Connected()
}

func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	a.monitor.Start(ctx)

	g.Go(func() error {
		<-ctx.Done()
		a.monitor.Stop()
		if a.traceProvider != nil {
			return a.traceProvider.Shutdown(context.Background())
		}
		return nil
	})

	g.Go(func() error {
		return a.router.Run(ctx)
	})

	g.Go(func() error {
		// the station is not ready until the scan-event subscribers are
		<-a.router.Running()

		if err := a.scanner.Start(ctx); err != nil {
			return err
		}
		a.scanner.BeginScanning()

		return a.server.Run(ctx)
	})

	return g.Wait()
}
