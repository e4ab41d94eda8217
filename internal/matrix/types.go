// Package matrix scans a row/column key matrix and debounces the result.
// This package has NO logging, networking, or OS dependencies: hardware is
// reached only through gpio.IO and time only through Clock, so the whole
// scan cycle runs against fakes in tests.
package matrix

import (
	"time"

	"github.com/sweeney/keymatrix/internal/gpio"
)

// Row is one row's key state; bit c is set while the key at column c is down.
type Row uint32

// MaxCols is the widest matrix a Row can describe.
const MaxCols = 32

// Status is the result of a scan.
type Status uint8

// ScanOK is returned by every scan. A stuck or miswired line shows up as
// wrong key state, not as a failed scan.
const ScanOK Status = 1

// Default timing.
const (
	DefaultDebounce = 5 * time.Millisecond
	DefaultSettle   = time.Microsecond
)

// Config is the static wiring and timing of a matrix.
type Config struct {
	Rows     []gpio.Pin
	Cols     []gpio.Pin
	Debounce time.Duration // delay from the last raw change to commit
	Settle   time.Duration // wait after driving a column before reading rows
}

// Clock is the timing service used by the scanner.
type Clock interface {
	// Now returns the current monotonic time.
	Now() time.Time

	// Delay blocks for at least d.
	Delay(d time.Duration)
}

// SystemClock reads the wall clock's monotonic reading and busy-waits for
// delays. time.Sleep cannot honour microsecond settle times.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Delay spins until d has elapsed.
func (SystemClock) Delay(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}

// Hook is an extension point run after Init or after each Scan.
type Hook func(s *Scanner)

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock replaces the SystemClock.
func WithClock(c Clock) Option {
	return func(s *Scanner) {
		s.clock = c
	}
}

// WithInitHook runs h once at the end of every Init. Hooks chain in the
// order they are given, so a board hook registered first runs before a
// user hook.
func WithInitHook(h Hook) Option {
	return func(s *Scanner) {
		if h != nil {
			s.initHooks = append(s.initHooks, h)
		}
	}
}

// WithScanHook runs h at the end of every Scan, after any debounce commit.
// Hooks chain like WithInitHook.
func WithScanHook(h Hook) Option {
	return func(s *Scanner) {
		if h != nil {
			s.scanHooks = append(s.scanHooks, h)
		}
	}
}
