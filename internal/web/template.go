package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/optical-link/internal/status"
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"pct": func(f float64) string {
		return fmt.Sprintf("%.0f%%", f*100)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Optical Link</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.RECEIVING { color: green; font-weight: bold; }
.DECODING { color: orange; font-weight: bold; }
.WAITING { color: #888; }
.UNKNOWN { color: orange; }
.LOW { color: red; }
.MID { color: orange; }
.EXCELLENT { color: green; }
.connected { color: green; }
.disconnected { color: red; }
.bits { word-break: break-all; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Optical Link<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Link</h2>
<table>
<tr><th>State</th><td id="state" class="{{stateOrUnknown (printf "%s" .Link.State)}}">{{stateOrUnknown (printf "%s" .Link.State)}}</td></tr>
<tr><th>Armed</th><td id="armed">{{if .Link.Armed}}yes{{else}}no{{end}}</td></tr>
<tr><th>Signal</th><td id="quality" class="{{.Link.Quality}}">{{.Link.Quality}}</td></tr>
<tr><th>Delta</th><td id="delta">{{printf "%.1f" .Link.Reading.Delta}}</td></tr>
<tr><th>Luma</th><td id="luma">{{printf "%.1f" .Link.Reading.Luma}} (threshold {{printf "%.1f" .Link.Reading.Threshold}})</td></tr>
<tr><th>Capture</th><td id="capture">{{.Link.CaptureLen}} bits, {{.Link.Inactivity}} idle</td></tr>
<tr><th>Preview</th><td id="preview" class="bits">{{.Link.Preview}}</td></tr>
</table>
{{if .Control}}
<p><button onclick="control('arm')">Arm</button> <button onclick="control('disarm')">Disarm</button></p>
{{end}}

<h2>Last Message</h2>
<table>
{{with .Link.LastMessage}}<tr><th>Text</th><td id="last-text">{{.Text}}</td></tr>
<tr><th>Confidence</th><td>{{pct .Confidence}}</td></tr>
<tr><th>Received</th><td>{{.ReceivedAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{else}}<tr><th>Text</th><td id="last-text">none</td></tr>{{end}}
</table>

<h2>Message Log</h2>
<table>
<thead><tr><th>Received</th><th>Text</th><th>Confidence</th></tr></thead>
<tbody id="message-log">
{{range .Link.Messages}}<tr><td>{{.ReceivedAt.UTC.Format "15:04:05"}}</td><td>{{.Text}}</td><td>{{pct .Confidence}}</td></tr>
{{else}}<tr><td colspan="3">no messages</td></tr>
{{end}}</tbody>
</table>
{{if .Control}}<p><button onclick="control('messages/flush')">Flush</button></p>{{end}}

<h2>Counts</h2>
<table>
<tr><th>Samples</th><td>{{.Link.Counts.Samples}}</td></tr>
<tr><th>Starts</th><td>{{.Link.Counts.Starts}}</td></tr>
<tr><th>Frames</th><td>{{.Link.Counts.Frames}}</td></tr>
<tr><th>Discarded</th><td>{{.Link.Counts.Discarded}}</td></tr>
<tr><th>Delivered</th><td>{{.Link.Stats.Delivered}}</td></tr>
<tr><th>Suppressed</th><td>{{.Link.Stats.Suppressed}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}none{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Rates</th><td>{{.Config.BitRateHz}} bit/s, {{.Config.SampleRateHz}} samples/s</td></tr>
<tr><th>Decoder</th><td>{{.Config.Decoder}} (min confidence {{pct .Config.MinConfidence}})</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function el(id) { return document.getElementById(id); }

  window.control = function(action) {
    fetch("/" + action, { method: "POST" });
  };

  function renderLog(msgs) {
    var body = el("message-log");
    body.textContent = "";
    if (msgs.length === 0) {
      var tr = body.insertRow();
      var td = tr.insertCell();
      td.colSpan = 3;
      td.textContent = "no messages";
      return;
    }
    msgs.forEach(function(m) {
      var tr = body.insertRow();
      tr.insertCell().textContent = m.received_at.slice(11, 19);
      tr.insertCell().textContent = m.text;
      tr.insertCell().textContent = Math.round(m.confidence * 100) + "%";
    });
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/live");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onclose = function() {
      dot.className = "live-dot err"; dot.title = "offline";
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        el("state").textContent = s.state;
        el("state").className = s.state;
        el("armed").textContent = s.armed ? "yes" : "no";
        el("quality").textContent = s.quality;
        el("quality").className = s.quality;
        el("delta").textContent = s.signal.delta.toFixed(1);
        el("luma").textContent = s.signal.luma.toFixed(1) + " (threshold " + s.signal.threshold.toFixed(1) + ")";
        el("capture").textContent = s.capture.bits + " bits, " + s.capture.inactivity + " idle";
        el("preview").textContent = s.capture.preview;
        if (s.last_message) { el("last-text").textContent = s.last_message.text; }
        renderLog(s.messages || []);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, control bool) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Control bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Control:  control,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("http: render index: %v", err)
	}
}
