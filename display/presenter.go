package display

import (
	"fmt"
	"io"
	"sync"

	"checkin/entity"
)

// StationPresenter shows scan results to the operator and doubles as the
// feedback device: one bell for success, two for failure, standing in for
// the haptic pattern of the handheld build.
type StationPresenter struct {
	mu  sync.Mutex
	out io.Writer
}

func NewStationPresenter(out io.Writer) *StationPresenter {
	return &StationPresenter{
		out: out,
	}
}

func (p *StationPresenter) ShowResult(result entity.ScanResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if result.Success {
		fmt.Fprintf(p.out, "\n✔ Checked in: %s", result.VolunteerName)
		if result.CheckInTime != nil {
			fmt.Fprintf(p.out, " at %s", result.CheckInTime.Local().Format("15:04:05"))
		}
		fmt.Fprintln(p.out)
	} else {
		fmt.Fprintf(p.out, "\n✘ %s (%s)\n", result.Message, result.Kind)
	}

	fmt.Fprintln(p.out, "Press enter to scan the next code.")
}

func (p *StationPresenter) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, "Ready to scan.")
}

func (p *StationPresenter) ScanAccepted() {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.out, "\a")
}

func (p *StationPresenter) ScanRejected() {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.out, "\a\a")
}
