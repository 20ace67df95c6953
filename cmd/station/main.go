package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"checkin/app"
	"checkin/config"
	"checkin/display"
	"checkin/entity"
	"checkin/scanner"
)

type options struct {
	EventID  string   `long:"event-id" description:"Restrict scans to one event" env:"CHECKIN_EVENT_ID"`
	Addr     string   `long:"addr" description:"Status server bind address" env:"CHECKIN_STATION_ADDR"`
	Location *geoFlag `long:"location" description:"Station coordinates as lat,lon; omit to scan without location"`
	Verbose  bool     `short:"v" long:"verbose" description:"Debug logging"`
}

type geoFlag struct {
	entity.Geo
}

func (g *geoFlag) UnmarshalFlag(value string) error {
	_, err := fmt.Sscanf(value, "%f,%f", &g.Latitude, &g.Longitude)
	if err != nil {
		return fmt.Errorf("expected lat,lon: %w", err)
	}
	return nil
}

// terminalPermissions treats stdin as the camera: always available. Location
// is granted only when the operator configured coordinates.
type terminalPermissions struct {
	location bool
}

func (p terminalPermissions) RequestCamera(ctx context.Context) error {
	return nil
}

func (p terminalPermissions) RequestLocation(ctx context.Context) error {
	if !p.location {
		return errors.New("no station coordinates configured")
	}
	return nil
}

type staticLocator struct {
	geo entity.Geo
}

func (l staticLocator) Current(ctx context.Context) (entity.Geo, error) {
	return l.geo, nil
}

func main() {
	_ = godotenv.Load(".env")

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if opts.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if opts.EventID != "" {
		cfg.EventID = opts.EventID
	}
	if opts.Addr != "" {
		cfg.StationAddr = opts.Addr
	}

	presenter := display.NewStationPresenter(os.Stdout)

	var locator scanner.Locator
	if opts.Location != nil {
		locator = staticLocator{geo: opts.Location.Geo}
	}

	application, err := app.New(
		cfg,
		terminalPermissions{location: opts.Location != nil},
		locator,
		presenter,
		presenter,
		nil,
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build station")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return application.Run(ctx)
	})

	g.Go(func() error {
		return readScans(ctx, application)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Fatal("station exited")
	}
}

// readScans feeds decoded payloads from stdin into the controller. An empty
// line dismisses the shown result; "reset-tally" clears the session tally
// when the operator switches events.
func readScans(ctx context.Context, application *app.App) error {
	ctrl := application.Scanner()
	scanLines := bufio.NewScanner(os.Stdin)

	fmt.Println("Paste or scan QR payloads, one per line. Empty line dismisses the result.")

	for scanLines.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanLines.Text())
		switch line {
		case "":
			ctrl.Reset()
			ctrl.BeginScanning()
		case "reset-tally":
			application.Tally().Reset()
			fmt.Println("Session tally cleared.")
		default:
			if !ctrl.OnDecode(ctx, line) {
				fmt.Println("Busy; dismiss the current result first (empty line).")
			}
		}
	}

	return scanLines.Err()
}
