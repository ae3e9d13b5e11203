// Package status keeps the daemon's view of the link for readers outside the
// sampling loop: the web page, the /live feed and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/optical-link/internal/receiver"
)

// NetworkInfo is what pi-helper reports about the host's connection.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config is the subset of daemon settings shown alongside link state.
type Config struct {
	SampleRateHz  float64
	BitRateHz     float64
	MinConfidence float64
	Decoder       string
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
}

// Snapshot pairs a link snapshot with daemon context. Readers own their copy.
type Snapshot struct {
	Link          receiver.Snapshot
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime is how long the receiver has been listening.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker is shared by the sampling loop (writer) and every status reader.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker starts tracking a receiver launched at startTime.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the link view wholesale.
func (t *Tracker) Update(link receiver.Snapshot) {
	t.mu.Lock()
	t.snap.Link = link
	t.mu.Unlock()
}

// SetMQTTConnected records whether link output is reaching the broker.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork records the host's network state. A nil info clears it.
// The tracker keeps its own copy.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	var cp *NetworkInfo
	if info != nil {
		n := *info
		cp = &n
	}
	t.mu.Lock()
	t.snap.Network = cp
	t.mu.Unlock()
}

// Snapshot returns the latest link view, stamped with the wall clock.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
