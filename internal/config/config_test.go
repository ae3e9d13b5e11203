package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/optical-link/internal/logic"
	"github.com/sweeney/optical-link/internal/receiver"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hop.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultMatchesLinkDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Params() != logic.DefaultParams() {
		t.Errorf("params: got %+v, want %+v", cfg.Params(), logic.DefaultParams())
	}

	got := cfg.Receiver()
	want := receiver.DefaultConfig()
	if got != want {
		t.Errorf("receiver: got %+v, want %+v", got, want)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
link:
  threshold_fraction: 0.6
  min_confidence: 0.5
  disarm_after_decode: true
decoder:
  kind: remote
  url: http://decoder.local/reconstruct
  timeout: 5s
mqtt:
  broker: tcp://localhost:1883
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Link.ThresholdFraction != 0.6 {
		t.Errorf("threshold_fraction: got %v", cfg.Link.ThresholdFraction)
	}
	if cfg.Receiver().MinConfidence != 0.5 {
		t.Errorf("min_confidence: got %v", cfg.Receiver().MinConfidence)
	}
	if !cfg.Params().DisarmAfterDecode {
		t.Error("disarm_after_decode should be set")
	}
	if cfg.Decoder.Timeout != 5*time.Second {
		t.Errorf("timeout: got %v", cfg.Decoder.Timeout)
	}
	// Untouched fields keep defaults.
	if cfg.Link.HistorySize != 60 || cfg.Link.StartRun != 6 {
		t.Errorf("defaults lost: %+v", cfg.Link)
	}
	if cfg.MQTT.TopicPrefix != "optical" {
		t.Errorf("topic_prefix: got %q", cfg.MQTT.TopicPrefix)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "link: [not, a, map")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"history", func(c *Config) { c.Link.HistorySize = 0 }, "history_size"},
		{"percentiles", func(c *Config) { c.Link.HighPercentile = 0.05 }, "high_percentile"},
		{"fraction", func(c *Config) { c.Link.ThresholdFraction = 1 }, "threshold_fraction"},
		{"start run", func(c *Config) { c.Link.StartRun = 61 }, "start_run"},
		{"silence", func(c *Config) { c.Link.SilenceThreshold = 0 }, "silence_threshold"},
		{"confidence", func(c *Config) { c.Link.MinConfidence = 1.5 }, "min_confidence"},
		{"message log", func(c *Config) { c.Link.MessageLogSize = 0 }, "message_log_size"},
		{"sample rate", func(c *Config) { c.Timing.SampleRateHz = 0 }, "sample_rate_hz"},
		{"bit rate", func(c *Config) { c.Timing.BitRateHz = 60 }, "bit_rate_hz"},
		{"decoder kind", func(c *Config) { c.Decoder.Kind = "llm" }, "decoder.kind"},
		{"remote url", func(c *Config) { c.Decoder.Kind = DecoderRemote }, "decoder.url"},
		{"no decode timeout", func(c *Config) { c.Decoder.Timeout = 0 }, "decoder.timeout"},
		{"negative decode timeout", func(c *Config) { c.Decoder.Timeout = -time.Second }, "decoder.timeout"},
		{"actuator kind", func(c *Config) { c.Actuator.Kind = "torch" }, "actuator.kind"},
		{"serial port", func(c *Config) { c.Actuator.Kind = ActuatorSerial }, "serial_port"},
		{"topic prefix", func(c *Config) { c.MQTT.Broker = "tcp://x:1883"; c.MQTT.TopicPrefix = "" }, "topic_prefix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestSampleInterval(t *testing.T) {
	cfg := Default()
	if got := cfg.SampleInterval(); got != time.Second/30 {
		t.Errorf("got %v, want %v", got, time.Second/30)
	}
}
