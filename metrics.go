package main

import (
	"time"

	"github.com/verikit/memsplit/config"
)

// stopwatch accumulates wall-clock phase durations for the run report.
type stopwatch struct {
	last   time.Time
	phases []phase
}

type phase struct {
	name string
	d    time.Duration
}

func newStopwatch() *stopwatch {
	return &stopwatch{last: time.Now()}
}

// lap closes the current phase under the given name.
func (s *stopwatch) lap(name string) {
	now := time.Now()
	s.phases = append(s.phases, phase{name, now.Sub(s.last)})
	s.last = now
}

func (s *stopwatch) report(log *config.LogGroup) {
	var total time.Duration
	for _, p := range s.phases {
		log.Infof("%-8s %v", p.name, p.d.Round(time.Microsecond))
		total += p.d
	}
	log.Infof("%-8s %v", "total", total.Round(time.Microsecond))
}
