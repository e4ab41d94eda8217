package matrix

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/keymatrix/internal/gpio"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeClock returns a fixed time set by the test and records delays
// without sleeping.
type fakeClock struct {
	now    time.Time
	delays []time.Duration
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Delay(d time.Duration) { c.delays = append(c.delays, d) }

func (c *fakeClock) at(ms int) {
	c.now = epoch.Add(time.Duration(ms) * time.Millisecond)
}

func pins(port uint8, lines ...uint8) []gpio.Pin {
	out := make([]gpio.Pin, len(lines))
	for i, l := range lines {
		out[i] = gpio.Pin{Port: port, Line: l}
	}
	return out
}

// newTestScanner builds an initialised rows x cols scanner on a FakeMatrix.
// Rows use port 0 lines 0.., columns port 2 lines 0...
func newTestScanner(t *testing.T, rows, cols int, debounce time.Duration, opts ...Option) (*Scanner, *gpio.FakeMatrix, *fakeClock) {
	t.Helper()
	var rl, cl []uint8
	for i := 0; i < rows; i++ {
		rl = append(rl, uint8(i))
	}
	for i := 0; i < cols; i++ {
		cl = append(cl, uint8(i))
	}
	cfg := Config{Rows: pins(0, rl...), Cols: pins(2, cl...), Debounce: debounce}
	fm := gpio.NewFakeMatrix(cfg.Rows, cfg.Cols)
	clock := &fakeClock{now: epoch}
	s := New(cfg, fm, append([]Option{WithClock(clock)}, opts...)...)
	s.Init()
	return s, fm, clock
}

func assertRows(t *testing.T, s *Scanner, want ...Row) {
	t.Helper()
	for r, w := range want {
		if got := s.GetRow(r); got != w {
			t.Errorf("row %d: expected %#b, got %#b", r, w, got)
		}
	}
}

func TestNewScanner(t *testing.T) {
	cfg := Config{Rows: pins(0, 0, 1), Cols: pins(1, 0, 1, 2), Debounce: 5 * time.Millisecond}
	s := New(cfg, gpio.NewFakeMatrix(cfg.Rows, cfg.Cols))
	if s == nil {
		t.Fatal("New returned nil")
	}
	if s.Rows() != 2 || s.Cols() != 3 {
		t.Errorf("expected 2x3, got %dx%d", s.Rows(), s.Cols())
	}
	if s.cfg.Settle != DefaultSettle {
		t.Errorf("expected default settle %v, got %v", DefaultSettle, s.cfg.Settle)
	}
	if _, ok := s.clock.(SystemClock); !ok {
		t.Errorf("expected SystemClock by default, got %T", s.clock)
	}
}

func TestInitConfiguresPins(t *testing.T) {
	cfg := Config{
		Rows: []gpio.Pin{{Port: 0, Line: 0}, {Port: 1, Line: 3}, {Port: 0, Line: 1}},
		Cols: pins(2, 5, 6),
	}
	fm := gpio.NewFakeMatrix(cfg.Rows, cfg.Cols)
	s := New(cfg, fm, WithClock(&fakeClock{now: epoch}))
	s.Init()

	for _, p := range cfg.Rows {
		if !fm.IsInput(p) {
			t.Errorf("row %s: expected input", p)
		}
	}
	for _, p := range cfg.Cols {
		if !fm.IsOutput(p) {
			t.Errorf("col %s: expected output", p)
		}
		if fm.IsHigh(p) {
			t.Errorf("col %s: expected driven low after init", p)
		}
	}

	if got := s.RowMask(0); got != 0b11 {
		t.Errorf("port 0 mask: expected 0b11, got %#b", got)
	}
	if got := s.RowMask(1); got != 0b1000 {
		t.Errorf("port 1 mask: expected 0b1000, got %#b", got)
	}
	if got := s.RowMask(2); got != 0 {
		t.Errorf("port 2 (columns only) mask: expected 0, got %#b", got)
	}
}

func TestInitHookRunsOnce(t *testing.T) {
	calls := 0
	var seen *Scanner
	s, _, _ := newTestScanner(t, 1, 1, 0, WithInitHook(func(s *Scanner) {
		calls++
		seen = s
	}))

	if calls != 1 {
		t.Errorf("expected init hook called once, got %d", calls)
	}
	if seen != s {
		t.Error("init hook did not receive the scanner")
	}

	s.Scan()
	if calls != 1 {
		t.Errorf("scan must not run init hook, got %d calls", calls)
	}
}

func TestNilHooksIgnored(t *testing.T) {
	s, _, _ := newTestScanner(t, 1, 1, 0, WithInitHook(nil), WithScanHook(nil))
	if got := s.Scan(); got != ScanOK {
		t.Errorf("expected ScanOK, got %d", got)
	}
}

func TestHooksChainInRegistrationOrder(t *testing.T) {
	var order []string
	record := func(name string) Hook {
		return func(*Scanner) { order = append(order, name) }
	}

	s, _, _ := newTestScanner(t, 1, 1, 0,
		WithInitHook(record("board init")),
		WithScanHook(record("board scan")),
		WithInitHook(record("user init")),
		WithScanHook(record("user scan")),
	)
	s.Scan()

	want := []string{"board init", "user init", "board scan", "user scan"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("hook order: got %v, want %v", order, want)
	}
}

func TestInitZeroesState(t *testing.T) {
	s, fm, _ := newTestScanner(t, 2, 2, 0)
	fm.SetRows(0b11, 0b01)
	s.Scan()
	assertRows(t, s, 0b11, 0b01)

	s.Init()
	assertRows(t, s, 0, 0)
	if pending, _ := s.Debouncing(); pending {
		t.Error("expected no pending window after Init")
	}
}

func TestScanDrivesColumnsInOrder(t *testing.T) {
	cfg := Config{
		Rows: []gpio.Pin{{Port: 0, Line: 0}, {Port: 1, Line: 0}},
		Cols: pins(2, 0, 1),
	}
	fm := gpio.NewFakeMatrix(cfg.Rows, cfg.Cols)
	clock := &fakeClock{now: epoch}
	s := New(cfg, fm, WithClock(clock))
	s.Init()
	fm.ResetOps()

	s.Scan()

	want := []gpio.Op{
		{Kind: gpio.OpSet, Pin: cfg.Cols[0]},
		{Kind: gpio.OpRead, Pin: gpio.Pin{Port: 0}},
		{Kind: gpio.OpRead, Pin: gpio.Pin{Port: 1}},
		{Kind: gpio.OpClear, Pin: cfg.Cols[0]},
		{Kind: gpio.OpSet, Pin: cfg.Cols[1]},
		{Kind: gpio.OpRead, Pin: gpio.Pin{Port: 0}},
		{Kind: gpio.OpRead, Pin: gpio.Pin{Port: 1}},
		{Kind: gpio.OpClear, Pin: cfg.Cols[1]},
	}
	if len(fm.Ops) != len(want) {
		t.Fatalf("expected %d ops, got %d: %+v", len(want), len(fm.Ops), fm.Ops)
	}
	for i := range want {
		if fm.Ops[i] != want[i] {
			t.Errorf("op %d: expected %+v, got %+v", i, want[i], fm.Ops[i])
		}
	}

	if len(clock.delays) != 2 {
		t.Fatalf("expected one settle delay per column, got %d", len(clock.delays))
	}
	for i, d := range clock.delays {
		if d != time.Microsecond {
			t.Errorf("delay %d: expected 1us, got %v", i, d)
		}
	}
}

func TestScanColumnBits(t *testing.T) {
	s, fm, _ := newTestScanner(t, 3, 4, 0)
	fm.Press(0, 3)
	fm.Press(1, 0)
	fm.Press(1, 2)
	fm.Press(2, 1)

	if got := s.Scan(); got != ScanOK {
		t.Errorf("expected ScanOK, got %d", got)
	}
	assertRows(t, s, 0b1000, 0b0101, 0b0010)

	if !s.Pressed(1, 2) {
		t.Error("expected 1,2 pressed")
	}
	if s.Pressed(1, 1) {
		t.Error("expected 1,1 released")
	}
}

func TestScanRowsAcrossPorts(t *testing.T) {
	cfg := Config{
		Rows: []gpio.Pin{{Port: 1, Line: 7}, {Port: 0, Line: 2}, {Port: 1, Line: 1}},
		Cols: pins(3, 0, 1),
	}
	fm := gpio.NewFakeMatrix(cfg.Rows, cfg.Cols)
	s := New(cfg, fm, WithClock(&fakeClock{now: epoch}))
	s.Init()

	fm.SetRows(0b01, 0b10, 0b11)
	s.Scan()
	assertRows(t, s, 0b01, 0b10, 0b11)
}

func TestScanMasksUnrelatedInputs(t *testing.T) {
	s, fm, _ := newTestScanner(t, 2, 2, 0)
	fm.Stray[0] = 1 << 9
	fm.Stray[2] = 0xffff

	s.Scan()
	assertRows(t, s, 0, 0)
}

func TestScanLeavesColumnsLow(t *testing.T) {
	s, fm, _ := newTestScanner(t, 2, 3, 0)
	fm.SetRows(0b111, 0b111)
	s.Scan()

	for _, p := range s.cfg.Cols {
		if fm.IsHigh(p) {
			t.Errorf("col %s left high after scan", p)
		}
	}
}

// 2x2 matrix, 5ms debounce: press row0/col1 at t=0, commit at first scan >= 5ms.
func TestDebounceCommitTiming(t *testing.T) {
	s, fm, clock := newTestScanner(t, 2, 2, 5*time.Millisecond)

	fm.Press(0, 1)
	clock.at(0)
	s.Scan()

	if s.latest[0] != 0b10 || s.latest[1] != 0 {
		t.Errorf("latest: expected [0b10 0], got %v", s.latest)
	}
	if s.last[0] != 0b10 || s.last[1] != 0 {
		t.Errorf("last: expected [0b10 0], got %v", s.last)
	}
	pending, deadline := s.Debouncing()
	if !pending {
		t.Fatal("expected debounce window to be active")
	}
	if !deadline.Equal(epoch.Add(5 * time.Millisecond)) {
		t.Errorf("deadline: expected t+5ms, got %v", deadline.Sub(epoch))
	}
	assertRows(t, s, 0, 0)

	for _, ms := range []int{1, 2, 4} {
		clock.at(ms)
		s.Scan()
		assertRows(t, s, 0, 0)
	}

	clock.at(6)
	s.Scan()
	assertRows(t, s, 0b10, 0)

	if pending, deadline := s.Debouncing(); pending || !deadline.IsZero() {
		t.Errorf("expected window cleared after commit, got pending=%v deadline=%v", pending, deadline)
	}
}

func TestDebounceCommitExactlyAtDeadline(t *testing.T) {
	s, fm, clock := newTestScanner(t, 1, 1, 5*time.Millisecond)

	fm.Press(0, 0)
	clock.at(0)
	s.Scan()

	clock.at(5)
	s.Scan()
	assertRows(t, s, 0b1)
}

func TestDebounceWindowExtension(t *testing.T) {
	s, fm, clock := newTestScanner(t, 2, 2, 5*time.Millisecond)

	fm.Press(0, 1)
	clock.at(0)
	s.Scan()

	fm.Press(1, 0)
	clock.at(2)
	s.Scan()

	_, deadline := s.Debouncing()
	if !deadline.Equal(epoch.Add(7 * time.Millisecond)) {
		t.Errorf("deadline: expected t+7ms, got %v", deadline.Sub(epoch))
	}

	clock.at(5)
	s.Scan()
	assertRows(t, s, 0, 0)

	clock.at(6)
	s.Scan()
	assertRows(t, s, 0, 0)

	clock.at(7)
	s.Scan()
	assertRows(t, s, 0b10, 0b01)
}

func TestBounceOnOneRowHoldsAllRows(t *testing.T) {
	s, fm, clock := newTestScanner(t, 2, 1, 5*time.Millisecond)

	// Row 0 goes down cleanly; row 1 chatters every 3ms.
	fm.Press(0, 0)
	for ms := 0; ms <= 12; ms += 3 {
		if (ms/3)%2 == 0 {
			fm.Press(1, 0)
		} else {
			fm.Release(1, 0)
		}
		clock.at(ms)
		s.Scan()
		assertRows(t, s, 0, 0)
	}

	// Chatter stops with row 1 down; commit after a quiet window.
	clock.at(17)
	s.Scan()
	assertRows(t, s, 0b1, 0b1)
}

func TestStableInputIsIdempotent(t *testing.T) {
	s, fm, clock := newTestScanner(t, 2, 2, 5*time.Millisecond)

	fm.SetRows(0b01, 0b10)
	clock.at(0)
	s.Scan()
	clock.at(5)
	s.Scan()
	assertRows(t, s, 0b01, 0b10)

	for ms := 6; ms < 50; ms++ {
		clock.at(ms)
		s.Scan()
		if pending, _ := s.Debouncing(); pending {
			t.Fatalf("t=%dms: stable input must not open a window", ms)
		}
		assertRows(t, s, 0b01, 0b10)
	}
}

func TestNoKeysNoWindow(t *testing.T) {
	s, _, clock := newTestScanner(t, 2, 2, 5*time.Millisecond)

	clock.at(0)
	s.Scan()
	if pending, _ := s.Debouncing(); pending {
		t.Error("idle matrix after init must not open a window")
	}
}

func TestReleaseIsDebounced(t *testing.T) {
	s, fm, clock := newTestScanner(t, 1, 2, 5*time.Millisecond)

	fm.Press(0, 0)
	clock.at(0)
	s.Scan()
	clock.at(5)
	s.Scan()
	assertRows(t, s, 0b01)

	fm.Release(0, 0)
	clock.at(10)
	s.Scan()
	assertRows(t, s, 0b01)

	clock.at(15)
	s.Scan()
	assertRows(t, s, 0)
}

func TestGetRowServesDebouncedOnly(t *testing.T) {
	s, fm, clock := newTestScanner(t, 1, 2, 5*time.Millisecond)

	fm.Press(0, 1)
	clock.at(0)
	s.Scan()

	if s.latest[0] == 0 || s.last[0] == 0 {
		t.Fatal("expected raw buffers to hold the press")
	}
	if got := s.GetRow(0); got != 0 {
		t.Errorf("GetRow leaked raw state: got %#b", got)
	}
	if s.Pressed(0, 1) {
		t.Error("Pressed leaked raw state")
	}
	if snap := s.Snapshot(); snap[0] != 0 {
		t.Errorf("Snapshot leaked raw state: got %#b", snap[0])
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s, fm, _ := newTestScanner(t, 1, 1, 0)
	fm.Press(0, 0)
	s.Scan()

	snap := s.Snapshot()
	snap[0] = 0
	assertRows(t, s, 0b1)
}

func TestGetRowOutOfRangePanics(t *testing.T) {
	s, _, _ := newTestScanner(t, 2, 2, 0)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range row")
		}
	}()
	s.GetRow(2)
}

func TestScanHookSeesCommittedState(t *testing.T) {
	var seen []Row
	calls := 0
	s, fm, clock := newTestScanner(t, 1, 1, 5*time.Millisecond, WithScanHook(func(s *Scanner) {
		calls++
		seen = append(seen, s.GetRow(0))
	}))

	fm.Press(0, 0)
	clock.at(0)
	s.Scan()
	clock.at(5)
	s.Scan()

	if calls != 2 {
		t.Fatalf("expected scan hook called twice, got %d", calls)
	}
	if seen[0] != 0 || seen[1] != 0b1 {
		t.Errorf("hook saw %v, expected [0 1]", seen)
	}
}

func TestDumpGrid(t *testing.T) {
	s, fm, _ := newTestScanner(t, 2, 3, 0)
	fm.SetRows(0b101, 0b010)
	s.Scan()

	want := "R C123\r\n" +
		"1  X.X\r\n" +
		"2  .X.\r\n"
	if got := s.Dump(); got != want {
		t.Errorf("Dump:\n%q\nwant\n%q", got, want)
	}
}

func TestDumpTwoDigitRowsAndColumnWrap(t *testing.T) {
	s, fm, _ := newTestScanner(t, 10, 12, 0)
	rows := make([]uint32, 10)
	rows[9] = 1<<11 | 1
	fm.SetRows(rows...)
	s.Scan()

	lines := bytes.Split([]byte(s.Dump()), []byte("\r\n"))
	if string(lines[0]) != "R C123456789012" {
		t.Errorf("header: got %q", lines[0])
	}
	if string(lines[1]) != "1  ............" {
		t.Errorf("row 1: got %q", lines[1])
	}
	if string(lines[10]) != "10 X..........X" {
		t.Errorf("row 10: got %q", lines[10])
	}
	if len(lines) != 12 || len(lines[11]) != 0 {
		t.Errorf("expected 11 CRLF-terminated lines, got %d parts", len(lines))
	}
}

func TestPrintWritesDump(t *testing.T) {
	s, fm, _ := newTestScanner(t, 1, 2, 0)
	fm.Press(0, 0)
	s.Scan()

	var buf bytes.Buffer
	if err := s.Print(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != s.Dump() {
		t.Errorf("Print wrote %q, Dump is %q", buf.String(), s.Dump())
	}
}

func TestSystemClockDelay(t *testing.T) {
	c := SystemClock{}
	start := c.Now()
	c.Delay(50 * time.Microsecond)
	if elapsed := time.Since(start); elapsed < 50*time.Microsecond {
		t.Errorf("Delay returned after %v, expected at least 50us", elapsed)
	}
}

func TestFormatGridEmpty(t *testing.T) {
	if got := FormatGrid(nil, 0); got != "R C\r\n" {
		t.Errorf("FormatGrid(nil, 0) = %q", got)
	}
}
