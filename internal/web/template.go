package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/keymatrix/internal/matrix"
	"github.com/sweeney/keymatrix/internal/mqtt"
	"github.com/sweeney/keymatrix/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Keymatrix</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
table.grid { width: auto; }
table.grid td, table.grid th { width: auto; text-align: center; padding: 2px 6px; border: 1px solid #ddd; }
.down { background: green; color: white; font-weight: bold; }
.up { color: #bbb; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: red; }
</style>
</head>
<body>
<h1>Keymatrix <small>{{.Config.Board}}</small></h1>

<h2>Matrix</h2>
<table class="grid">
<tr><th>R\C</th>{{range .ColLabels}}<th>{{.}}</th>{{end}}</tr>
{{range $r, $row := .Cells}}<tr><th>{{$r}}</th>{{range $row}}<td class="{{if .}}down{{else}}up{{end}}">{{if .}}X{{else}}.{{end}}</td>{{end}}</tr>
{{end}}</table>

<h2>State</h2>
<table>
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
<tr><th>Held</th><td>{{.Held}}</td></tr>
<tr><th>Scans</th><td>{{.Scans}}</td></tr>
{{if .HardwareError}}<tr><th>Hardware</th><td class="error">{{.HardwareError}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic</th><td>{{.Topic}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>KEY_DOWN</th><td>{{.Counts.Down}}</td></tr>
<tr><th>KEY_UP</th><td>{{.Counts.Up}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Backend</th><td>{{.Config.Backend}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/matrix.txt">matrix.txt</a></p>
</body>
</html>
`

// cells expands packed rows into per-key booleans for the template.
func cells(rows []matrix.Row, cols int) [][]bool {
	out := make([][]bool, len(rows))
	for r, row := range rows {
		out[r] = make([]bool, cols)
		for c := 0; c < cols; c++ {
			out[r][c] = row&(1<<c) != 0
		}
	}
	return out
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	labels := make([]int, snap.Config.Cols)
	for i := range labels {
		labels[i] = i
	}
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Cells     [][]bool
		ColLabels []int
		Topic     string
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Cells:     cells(snap.Matrix, snap.Config.Cols),
		ColLabels: labels,
		Topic:     mqtt.Topic,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	return nil
}
