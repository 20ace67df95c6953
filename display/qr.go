package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"

	"checkin/entity"
)

// TerminalView renders the rotating QR code and its countdown to a terminal.
// It is one of the thin per-platform adapters behind the rotation controller;
// the controller itself stays headless.
type TerminalView struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminalView(out io.Writer) *TerminalView {
	return &TerminalView{
		out: out,
	}
}

func (v *TerminalView) TokenChanged(token entity.QRToken) {
	v.mu.Lock()
	defer v.mu.Unlock()

	code, err := qrcode.New(token.Payload, qrcode.Medium)
	if err != nil {
		logrus.WithError(err).Error("failed to render QR code")
		fmt.Fprintln(v.out, "could not render QR code, please refresh")
		return
	}

	fmt.Fprint(v.out, "\033[2J\033[H")
	fmt.Fprint(v.out, code.ToSmallString(false))
	fmt.Fprintf(v.out, "\nCode refreshes automatically. Valid for %d seconds.\n", int(token.ValidFor.Seconds()))
}

func (v *TerminalView) Countdown(remaining time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintf(v.out, "\rExpires in %2ds ", int(remaining.Seconds()))
}

func (v *TerminalView) Degraded(kind entity.ErrorKind, lastKnown *entity.QRToken) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case kind == entity.KindRateLimited && lastKnown != nil:
		fmt.Fprintln(v.out, "\nRefreshing slowed down by the server; current code still valid.")
	case lastKnown != nil:
		fmt.Fprintln(v.out, "\nReconnecting... showing the last valid code.")
	default:
		fmt.Fprintln(v.out, "\nCould not load a code. Reconnecting...")
	}
}

func (v *TerminalView) WindowNotOpen(opensAt time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintf(v.out, "Check-in opens at %s.\n", opensAt.Local().Format("15:04"))
}

func (v *TerminalView) CheckedIn() {
	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintln(v.out, "\nYou are checked in. Enjoy the event!")
}
