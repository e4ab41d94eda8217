package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Ready         bool       `json:"ready"`
	Matrix        []string   `json:"matrix"`
	Held          int        `json:"held"`
	Scans         uint64     `json:"scans"`
	HardwareError string     `json:"hardware_error,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	KeyDown int `json:"key_down"`
	KeyUp   int `json:"key_up"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Board       string `json:"board"`
	Backend     string `json:"backend"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

// matrixLines renders each row as one character per column, X for down.
func matrixLines(snap Snapshot) []string {
	lines := make([]string, len(snap.Matrix))
	for r, row := range snap.Matrix {
		b := make([]byte, snap.Config.Cols)
		for c := range b {
			if row&(1<<c) != 0 {
				b[c] = 'X'
			} else {
				b[c] = '.'
			}
		}
		lines[r] = string(b)
	}
	return lines
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Ready:         snap.Baselined,
		Matrix:        matrixLines(snap),
		Held:          snap.Held,
		Scans:         snap.Scans,
		HardwareError: snap.HardwareError,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			KeyDown: snap.Counts.Down,
			KeyUp:   snap.Counts.Up,
		},
		Config: ConfigJSON{
			Board:       snap.Config.Board,
			Backend:     snap.Config.Backend,
			Rows:        snap.Config.Rows,
			Cols:        snap.Config.Cols,
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
