package keys

import (
	"math/bits"
	"time"

	"github.com/sweeney/keymatrix/internal/matrix"
)

// Detector compares successive settled matrices and reports transitions.
type Detector struct {
	prev          []matrix.Row
	baselined     bool
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewDetector creates a new transition detector.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(startTime time.Time) *Detector {
	return &Detector{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process reads every row from src once and returns the transitions since
// the previous call, ordered by row then column. The first call only
// records a baseline and returns nil.
func (d *Detector) Process(src RowSource, now time.Time) []Event {
	rows := src.Rows()
	cols := src.Cols()

	if !d.baselined {
		d.prev = make([]matrix.Row, rows)
		for r := 0; r < rows; r++ {
			d.prev[r] = src.GetRow(r)
		}
		d.baselined = true
		return nil
	}

	var events []Event
	for r := 0; r < rows; r++ {
		cur := src.GetRow(r)
		changed := cur ^ d.prev[r]
		d.prev[r] = cur
		if changed == 0 {
			continue
		}
		for c := 0; c < cols; c++ {
			bit := matrix.Row(1) << c
			if changed&bit == 0 {
				continue
			}
			e := Event{Timestamp: now, Row: r, Col: c, Type: EventKeyUp}
			if cur&bit != 0 {
				e.Type = EventKeyDown
			}
			events = append(events, e)
		}
	}

	// Count events
	for _, e := range events {
		switch e.Type {
		case EventKeyDown:
			d.eventCounts.Down++
		case EventKeyUp:
			d.eventCounts.Up++
		}
	}

	return events
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns a copy of the last matrix seen by Process.
func (d *Detector) CurrentState() []matrix.Row {
	out := make([]matrix.Row, len(d.prev))
	copy(out, d.prev)
	return out
}

// Held returns the number of keys down in the last matrix seen.
func (d *Detector) Held() int {
	n := 0
	for _, r := range d.prev {
		n += bits.OnesCount32(uint32(r))
	}
	return n
}

// EventCountsSnapshot returns the event counters since startup.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
		Held:      d.Held(),
	}
}
