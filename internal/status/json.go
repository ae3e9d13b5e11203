package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/optical-link/internal/receiver"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	State         string        `json:"state"`
	Armed         bool          `json:"armed"`
	Quality       string        `json:"quality"`
	Signal        SignalJSON    `json:"signal"`
	Capture       CaptureJSON   `json:"capture"`
	Counts        CountsJSON    `json:"counts"`
	LastMessage   *MessageJSON  `json:"last_message,omitempty"`
	Messages      []MessageJSON `json:"messages"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// SignalJSON is the thresholder's view of the latest sample.
type SignalJSON struct {
	Luma      float64 `json:"luma"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	Delta     float64 `json:"delta"`
	Threshold float64 `json:"threshold"`
	Bit       int     `json:"bit"`
	History   int     `json:"history"`
}

// CaptureJSON describes the frame being accumulated.
type CaptureJSON struct {
	Bits       int    `json:"bits"`
	Inactivity int    `json:"inactivity"`
	Preview    string `json:"preview"`
	Pending    int    `json:"pending_decodes"`
}

// CountsJSON is the JSON representation of link activity counts.
type CountsJSON struct {
	Samples    int `json:"samples"`
	Ignored    int `json:"ignored"`
	Starts     int `json:"starts"`
	Frames     int `json:"frames"`
	Discarded  int `json:"discarded"`
	Aborted    int `json:"aborted"`
	Delivered  int `json:"delivered"`
	Suppressed int `json:"suppressed"`
	Stale      int `json:"stale"`
}

// MessageJSON is one delivered message.
type MessageJSON struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	ReceivedAt string  `json:"received_at"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleRateHz  float64 `json:"sample_rate_hz"`
	BitRateHz     float64 `json:"bit_rate_hz"`
	MinConfidence float64 `json:"min_confidence"`
	Decoder       string  `json:"decoder"`
	HeartbeatMs   int64   `json:"heartbeat_ms"`
	Broker        string  `json:"broker"`
	HTTPAddr      string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	l := snap.Link
	state := string(l.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:   state,
		Armed:   l.Armed,
		Quality: string(l.Quality),
		Signal: SignalJSON{
			Luma:      l.Reading.Luma,
			Low:       l.Reading.Low,
			High:      l.Reading.High,
			Delta:     l.Reading.Delta,
			Threshold: l.Reading.Threshold,
			Bit:       int(l.Reading.Bit),
			History:   l.HistoryLen,
		},
		Capture: CaptureJSON{
			Bits:       l.CaptureLen,
			Inactivity: l.Inactivity,
			Preview:    l.Preview.String(),
			Pending:    l.Pending,
		},
		Counts: CountsJSON{
			Samples:    l.Counts.Samples,
			Ignored:    l.Counts.Ignored,
			Starts:     l.Counts.Starts,
			Frames:     l.Counts.Frames,
			Discarded:  l.Counts.Discarded,
			Aborted:    l.Counts.Aborted,
			Delivered:  l.Stats.Delivered,
			Suppressed: l.Stats.Suppressed,
			Stale:      l.Stats.Stale,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			SampleRateHz:  snap.Config.SampleRateHz,
			BitRateHz:     snap.Config.BitRateHz,
			MinConfidence: snap.Config.MinConfidence,
			Decoder:       snap.Config.Decoder,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}
	if m := l.LastMessage; m != nil {
		mj := messageJSON(*m)
		inner.LastMessage = &mj
	}
	inner.Messages = make([]MessageJSON, 0, len(l.Messages))
	for _, m := range l.Messages {
		inner.Messages = append(inner.Messages, messageJSON(m))
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

func messageJSON(m receiver.DecodedMessage) MessageJSON {
	return MessageJSON{
		ID:         m.ID,
		Text:       m.Text,
		Confidence: m.Confidence,
		ReceivedAt: m.ReceivedAt.UTC().Format(time.RFC3339),
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
