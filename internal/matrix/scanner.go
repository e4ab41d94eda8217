package matrix

import (
	"sort"
	"time"

	"github.com/sweeney/keymatrix/internal/gpio"
)

// portMask is one entry of the row mask table: the row pins owned by a port.
type portMask struct {
	port uint8
	mask uint32
}

// Scanner drives columns, senses rows and debounces the result.
// It is not safe for concurrent use: one goroutine owns Init, Scan and the
// queries. Share state with other goroutines by copying Snapshot().
type Scanner struct {
	cfg       Config
	io        gpio.IO
	clock     Clock
	initHooks []Hook
	scanHooks []Hook

	latest    []Row // raw result of the current scan
	last      []Row // raw result of the previous scan
	debounced []Row // settled state served to callers

	masks   []portMask
	rowSlot []int    // row index -> index into masks
	scans   []uint32 // per-port snapshot, parallel to masks

	debouncing bool
	deadline   time.Time
}

// New creates a Scanner for the given wiring. Call Init before Scan.
func New(cfg Config, io gpio.IO, opts ...Option) *Scanner {
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	s := &Scanner{
		cfg:       cfg,
		io:        io,
		clock:     SystemClock{},
		latest:    make([]Row, len(cfg.Rows)),
		last:      make([]Row, len(cfg.Rows)),
		debounced: make([]Row, len(cfg.Rows)),
		rowSlot:   make([]int, len(cfg.Rows)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init zeroes all state, configures rows as pulled-down inputs and columns
// as outputs driven low, and builds the row mask table.
func (s *Scanner) Init() {
	clear(s.latest)
	clear(s.last)
	clear(s.debounced)
	s.debouncing = false
	s.deadline = time.Time{}
	s.masks = s.masks[:0]

	for _, p := range s.cfg.Rows {
		s.io.ConfigureInput(p)
		s.addMask(p)
	}
	for r, p := range s.cfg.Rows {
		s.rowSlot[r] = s.slotOf(p.Port)
	}
	s.scans = make([]uint32, len(s.masks))

	for _, p := range s.cfg.Cols {
		s.io.ConfigureOutput(p)
		s.io.Clear(p)
	}

	for _, h := range s.initHooks {
		h(s)
	}
}

// addMask ORs the pin into its port's entry, keeping the table in port order.
func (s *Scanner) addMask(p gpio.Pin) {
	i := s.slotOf(p.Port)
	if i < len(s.masks) && s.masks[i].port == p.Port {
		s.masks[i].mask |= p.Mask()
		return
	}
	s.masks = append(s.masks, portMask{})
	copy(s.masks[i+1:], s.masks[i:])
	s.masks[i] = portMask{port: p.Port, mask: p.Mask()}
}

func (s *Scanner) slotOf(port uint8) int {
	return sort.Search(len(s.masks), func(i int) bool { return s.masks[i].port >= port })
}

// Scan performs one full sweep of the matrix and advances the debounce
// window. It always returns ScanOK.
func (s *Scanner) Scan() Status {
	clear(s.latest)

	for c, col := range s.cfg.Cols {
		s.io.Set(col)
		s.clock.Delay(s.cfg.Settle)
		for i, m := range s.masks {
			s.scans[i] = s.io.ReadPort(m.port) & m.mask
		}
		s.io.Clear(col)

		for r, row := range s.cfg.Rows {
			if s.scans[s.rowSlot[r]]&row.Mask() != 0 {
				s.latest[r] |= 1 << c
			}
		}
	}

	now := s.clock.Now()

	for r := range s.latest {
		if s.last[r] != s.latest[r] {
			s.debouncing = true
			s.deadline = now.Add(s.cfg.Debounce)
		}
		s.last[r] = s.latest[r]
	}

	if s.debouncing && !now.Before(s.deadline) {
		copy(s.debounced, s.latest)
		s.debouncing = false
		s.deadline = time.Time{}
	}

	for _, h := range s.scanHooks {
		h(s)
	}

	return ScanOK
}

// GetRow returns the debounced state of row r. r must be in [0, Rows()).
func (s *Scanner) GetRow(r int) Row {
	return s.debounced[r]
}

// Pressed reports whether the debounced key at r, c is down.
func (s *Scanner) Pressed(r, c int) bool {
	return s.debounced[r]&(1<<c) != 0
}

// Snapshot returns a copy of the debounced state of every row.
func (s *Scanner) Snapshot() []Row {
	out := make([]Row, len(s.debounced))
	copy(out, s.debounced)
	return out
}

// Rows returns the number of rows.
func (s *Scanner) Rows() int {
	return len(s.cfg.Rows)
}

// Cols returns the number of columns.
func (s *Scanner) Cols() int {
	return len(s.cfg.Cols)
}

// Debouncing reports whether a raw change is waiting to be committed, and
// the time at which it will be.
func (s *Scanner) Debouncing() (bool, time.Time) {
	return s.debouncing, s.deadline
}

// RowMask returns the row-mask table entry for port, zero if no row uses it.
func (s *Scanner) RowMask(port uint8) uint32 {
	i := s.slotOf(port)
	if i < len(s.masks) && s.masks[i].port == port {
		return s.masks[i].mask
	}
	return 0
}
