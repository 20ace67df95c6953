package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"checkin/config"
	"checkin/display"
	"checkin/entity"
	"checkin/gateway"
	"checkin/netmon"
	"checkin/rotation"
	"checkin/ticketstore"
)

type options struct {
	TicketID string `long:"ticket" description:"Ticket to display; defaults to the next active one"`
	List     bool   `long:"list" description:"List tickets and exit"`
	Verbose  bool   `short:"v" long:"verbose" description:"Debug logging"`
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
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := gateway.NewClient(gateway.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.HTTPTimeout,
	})
	ticketsClient := gateway.NewTicketsClient(client)
	store := ticketstore.New(ticketsClient)

	tickets, err := store.Load(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("could not load your tickets, check connectivity and retry")
	}
	if len(tickets) == 0 {
		fmt.Println("You have no tickets.")
		return
	}

	if opts.List {
		printTickets(tickets)
		return
	}

	ticket, err := pickTicket(tickets, opts.TicketID)
	if err != nil {
		printTickets(tickets)
		logrus.WithError(err).Fatal("could not pick a ticket to display")
	}

	monitor := netmon.New(
		netmon.NewHTTPProber(cfg.ProbeURL, netmon.DefaultProbeTimeout),
		cfg.ProbeInterval,
		nil,
	)
	monitor.Start(ctx)
	defer monitor.Stop()

	view := display.NewTerminalView(os.Stdout)
	controller := rotation.NewController(
		ticketsClient,
		monitor,
		view,
		rotation.WithMargin(cfg.RefreshMargin),
	)

	fmt.Printf("%s — %s, %s\n", ticket.EventTitle, ticket.EventDate.Local().Format("Mon 2 Jan 15:04"), ticket.Location)
	controller.Start(ticket)
	defer controller.Stop()

	// the process is stopped while backgrounded; re-check expiry on resume
	resumed := make(chan os.Signal, 1)
	signal.Notify(resumed, syscall.SIGCONT)
	go func() {
		for range resumed {
			controller.Resume()
		}
	}()
	defer signal.Stop(resumed)

	<-ctx.Done()
	fmt.Println()
}

func pickTicket(tickets []entity.Ticket, ticketID string) (entity.Ticket, error) {
	if ticketID != "" {
		ticket, found := lo.Find(tickets, func(t entity.Ticket) bool {
			return t.ID == ticketID
		})
		if !found {
			return entity.Ticket{}, entity.ErrTicketNotFound
		}
		return ticket, nil
	}

	now := time.Now()
	ticket, found := lo.Find(tickets, func(t entity.Ticket) bool {
		status := t.Status(now)
		return status == entity.TicketStatusCheckInOpen || status == entity.TicketStatusUpcoming
	})
	if !found {
		return entity.Ticket{}, entity.ErrTicketNotFound
	}
	return ticket, nil
}

func printTickets(tickets []entity.Ticket) {
	now := time.Now()
	for _, t := range tickets {
		fmt.Printf("%s  %-12s  %s — %s\n", t.ID, t.Status(now), t.EventDate.Local().Format("2006-01-02 15:04"), t.EventTitle)
	}
}
