// Package hosttime reports how much CPU time the simulator process has
// used, so the report can state a simulator speed.
package hosttime

import (
	"os"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/sarchlab/mpsim/mon"
)

// TimesFunc returns the user CPU seconds consumed by the process.
type TimesFunc func() (float64, error)

// Source is a mon.TimingSource backed by a TimesFunc.
type Source struct {
	times TimesFunc
}

// NewSource wraps times as a timing source.
func NewSource(times TimesFunc) *Source {
	return &Source{times: times}
}

// ElapsedCPUSeconds implements mon.TimingSource. Any error from the host
// is reported as unavailable.
func (s *Source) ElapsedCPUSeconds() (float64, bool) {
	seconds, err := s.times()
	if err != nil {
		return 0, false
	}
	return seconds, true
}

// Resolve probes the host once. It returns nil when the current process
// cannot report its CPU time, in which case the speed line is omitted.
func Resolve() mon.TimingSource {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil
	}

	times := func() (float64, error) {
		t, err := proc.Times()
		if err != nil {
			return 0, err
		}
		return t.User, nil
	}

	if _, err := times(); err != nil {
		return nil
	}

	return NewSource(times)
}
