package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/epaper-clock/internal/logic"
	"github.com/sweeney/epaper-clock/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"elapsed": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>E-Paper Clock</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.mode { font-weight: bold; }
.critical { color: red; }
</style>
</head>
<body>
<h1>E-Paper Clock</h1>

<h2>Boot</h2>
<table>
<tr><th>Mode</th><td class="mode">{{.Mode}}</td></tr>
<tr><th>Reason</th><td>{{orDash (printf "%s" .Reason)}}</td></tr>
<tr><th>Wake</th><td>{{.Wake.Cause}} / {{.Wake.Source}}{{if .Wake.Pin}} ({{.Wake.Pin}}){{end}}</td></tr>
<tr><th>Boot count</th><td>{{.BootCount}}</td></tr>
<tr><th>Booted</th><td>{{.BootTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Waiting</th><td>{{elapsed .Waiting}}</td></tr>
</table>

<h2>Power</h2>
<table>
<tr><th>Battery</th><td{{if .Critical}} class="critical"{{end}}>{{orDash .Battery}}</td></tr>
{{if .BatteryMillivolts}}<tr><th>Cell</th><td>{{.BatteryMillivolts}} mV</td></tr>{{end}}
</table>

<h2>Time</h2>
<table>
<tr><th>Last sync</th><td>{{.LastSync}}</td></tr>
<tr><th>Drift</th><td>{{printf "%.3f" .Drift.Average}}s over {{.Drift.Count}} syncs</td></tr>
{{if .Sync}}<tr><th>Server</th><td>{{.Sync.Server}}</td></tr>{{end}}
</table>

<h2>Device</h2>
<table>
<tr><th>UUID</th><td>{{orDash .DeviceID}}</td></tr>
<tr><th>Refresh</th><td>{{.Config.Refresh}} (full every {{.Config.FullRefreshEvery}})</td></tr>
<tr><th>Battery check</th><td>every {{.Config.BatteryEvery}} boots</td></tr>
<tr><th>Resync</th><td>every {{.Config.ResyncEvery}} boots</td></tr>
<tr><th>Sleep</th><td>{{.Config.SleepMethod}}</td></tr>
</table>

<p>Press the update button to return to the clock face.</p>
<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Waiting  time.Duration
		Critical bool
	}{
		Snapshot: snap,
		Waiting:  snap.Now.Sub(snap.BootTime),
		Critical: snap.Mode == logic.ModeCritical,
	}
	indexTmpl.Execute(w, data)
}
