// Package status provides a thread-safe status tracker for the keymatrix daemon.
// The scan loop is the only writer; HTTP handlers read point-in-time copies,
// so no reader ever touches the scanner's own buffers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/keymatrix/internal/keys"
	"github.com/sweeney/keymatrix/internal/matrix"
)

// Config contains daemon configuration for display.
type Config struct {
	Board       string
	Backend     string
	Rows        int
	Cols        int
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Matrix        []matrix.Row
	Baselined     bool
	Held          int
	Counts        keys.EventCounts
	Scans         uint64
	HardwareError string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Grid renders the settled matrix in the scanner's diagnostic format.
func (s Snapshot) Grid() string {
	return matrix.FormatGrid(s.Matrix, s.Config.Cols)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Matrix:    make([]matrix.Row, cfg.Rows),
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the settled matrix after a scan cycle. rows is copied.
// Called from runLoop on every tick.
func (t *Tracker) Update(rows []matrix.Row, baselined bool, held int, counts keys.EventCounts, scans uint64) {
	t.mu.Lock()
	t.snap.Matrix = append(t.snap.Matrix[:0], rows...)
	t.snap.Baselined = baselined
	t.snap.Held = held
	t.snap.Counts = counts
	t.snap.Scans = scans
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetHardwareError records the latched GPIO failure, if any.
func (t *Tracker) SetHardwareError(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.mu.Lock()
	t.snap.HardwareError = msg
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Matrix = append([]matrix.Row(nil), t.snap.Matrix...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
