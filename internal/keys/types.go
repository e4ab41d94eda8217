// Package keys turns the settled matrix into key press and release events.
// It reads the scanner only through GetRow and takes time as a parameter,
// like the scanner itself it never touches hardware or the wall clock.
package keys

import (
	"time"

	"github.com/sweeney/keymatrix/internal/matrix"
)

// EventType is a key transition.
type EventType string

const (
	EventKeyDown EventType = "KEY_DOWN"
	EventKeyUp   EventType = "KEY_UP"
)

// Event is one debounced key transition, addressed by matrix position.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Row       int
	Col       int
}

// RowSource is the query interface of the matrix scanner.
type RowSource interface {
	Rows() int
	Cols() int
	GetRow(r int) matrix.Row
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Down int
	Up   int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
	Held      int
}
