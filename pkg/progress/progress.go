// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package progress renders frame-count progress for a collection run.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"

	"github.com/NVIDIA/distcollect/pkg/defaults"
)

// Reporter receives progress updates.
type Reporter interface {
	// Start sets the expected total.
	Start(total int)
	// Update adds n completed units.
	Update(n int)
	// Finish renders the final state.
	Finish()
}

// Nop discards all updates.
type Nop struct{}

func (Nop) Start(int)  {}
func (Nop) Update(int) {}
func (Nop) Finish()    {}

const barWidth = 30

// Bar is a single-line terminal progress bar. Redraws are throttled; Finish
// always draws the final state.
type Bar struct {
	out     io.Writer
	clock   clock.PassiveClock
	printer *message.Printer
	limiter *rate.Limiter
	unit    string

	mu       sync.Mutex
	total    int
	done     int
	start    time.Time
	finished bool
}

// Option configures a Bar.
type Option func(*Bar)

// WithClock replaces the wall clock.
func WithClock(c clock.PassiveClock) Option {
	return func(b *Bar) {
		b.clock = c
	}
}

// WithRefreshInterval sets the minimum interval between redraws.
func WithRefreshInterval(d time.Duration) Option {
	return func(b *Bar) {
		b.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithUnit sets the unit label, "frames" by default.
func WithUnit(unit string) Option {
	return func(b *Bar) {
		b.unit = unit
	}
}

// NewBar returns a bar writing to out.
func NewBar(out io.Writer, opts ...Option) *Bar {
	b := &Bar{
		out:     out,
		clock:   clock.RealClock{},
		printer: message.NewPrinter(language.English),
		limiter: rate.NewLimiter(rate.Every(defaults.ProgressRefreshInterval), 1),
		unit:    "frames",
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Start implements Reporter.
func (b *Bar) Start(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total = total
	b.done = 0
	b.finished = false
	b.start = b.clock.Now()
	b.render()
}

// Update implements Reporter.
func (b *Bar) Update(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done += n
	if b.limiter.AllowN(b.clock.Now(), 1) {
		b.render()
	}
}

// Finish implements Reporter.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.finished = true
	b.render()
	fmt.Fprintln(b.out)
}

// Done returns the number of completed units.
func (b *Bar) Done() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

func (b *Bar) render() {
	elapsed := b.clock.Since(b.start)

	var frac float64
	if b.total > 0 {
		frac = float64(b.done) / float64(b.total)
		if frac > 1 {
			frac = 1
		}
	}
	filled := int(frac * barWidth)

	var perSec float64
	if s := elapsed.Seconds(); s > 0 {
		perSec = float64(b.done) / s
	}

	fmt.Fprint(b.out, b.printer.Sprintf("\r%3d%%|%s%s| %d/%d [%s, %.0f %s/s]",
		int(frac*100),
		strings.Repeat("█", filled),
		strings.Repeat(" ", barWidth-filled),
		b.done, b.total,
		formatElapsed(elapsed),
		perSec, b.unit))
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
