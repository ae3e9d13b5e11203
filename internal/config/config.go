// Package config loads the daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/optical-link/internal/hop"
	"github.com/sweeney/optical-link/internal/logic"
	"github.com/sweeney/optical-link/internal/receiver"
)

// Decoder kinds.
const (
	DecoderMajority = "majority"
	DecoderRemote   = "remote"
)

// Actuator kinds.
const (
	ActuatorGPIO   = "gpio"
	ActuatorSerial = "serial"
	ActuatorScreen = "screen"
)

// Config is the full daemon configuration.
type Config struct {
	Link     LinkConfig     `yaml:"link"`
	Timing   TimingConfig   `yaml:"timing"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Actuator ActuatorConfig `yaml:"actuator"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// LinkConfig tunes thresholding and the link state machine.
type LinkConfig struct {
	HistorySize       int     `yaml:"history_size"`
	LowPercentile     float64 `yaml:"low_percentile"`
	HighPercentile    float64 `yaml:"high_percentile"`
	ThresholdFraction float64 `yaml:"threshold_fraction"`
	BitGate           float64 `yaml:"bit_gate"`
	StartDelta        float64 `yaml:"start_delta"`
	StartRun          int     `yaml:"start_run"`
	SilenceThreshold  int     `yaml:"silence_threshold"`
	MinCaptureBits    int     `yaml:"min_capture_bits"`
	MinConfidence     float64 `yaml:"min_confidence"`
	DisarmAfterDecode bool    `yaml:"disarm_after_decode"`
	MessageLogSize    int     `yaml:"message_log_size"`
	Armed             bool    `yaml:"armed"` // arm at startup
}

type TimingConfig struct {
	SampleRateHz float64 `yaml:"sample_rate_hz"`
	BitRateHz    float64 `yaml:"bit_rate_hz"`
}

type DecoderConfig struct {
	Kind    string        `yaml:"kind"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ActuatorConfig struct {
	Kind       string `yaml:"kind"`
	Chip       string `yaml:"chip"`
	Line       int    `yaml:"line"`
	SerialPort string `yaml:"serial_port"`
	Baud       int    `yaml:"baud"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the stock configuration.
func Default() Config {
	p := logic.DefaultParams()
	return Config{
		Link: LinkConfig{
			HistorySize:       p.Threshold.HistorySize,
			LowPercentile:     p.Threshold.LowPercentile,
			HighPercentile:    p.Threshold.HighPercentile,
			ThresholdFraction: p.Threshold.ThresholdFraction,
			BitGate:           p.Threshold.BitGate,
			StartDelta:        p.StartDelta,
			StartRun:          p.StartRun,
			SilenceThreshold:  p.SilenceThreshold,
			MinCaptureBits:    p.MinCaptureBits,
			MinConfidence:     0.3,
			MessageLogSize:    receiver.DefaultMessageLog,
		},
		Timing: TimingConfig{
			SampleRateHz: hop.SampleRateHz,
			BitRateHz:    hop.BitRateHz,
		},
		Decoder: DecoderConfig{
			Kind:    DecoderMajority,
			Timeout: 30 * time.Second,
		},
		Actuator: ActuatorConfig{
			Kind: ActuatorScreen,
			Chip: "gpiochip0",
			Line: 18,
			Baud: 115200,
		},
		MQTT: MQTTConfig{
			ClientID:    "optical-link",
			TopicPrefix: "optical",
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks every field for a usable value.
func (c Config) Validate() error {
	l := c.Link
	if l.HistorySize < 1 {
		return fmt.Errorf("link.history_size must be at least 1")
	}
	if l.LowPercentile < 0 || l.LowPercentile >= 1 {
		return fmt.Errorf("link.low_percentile must be in [0,1)")
	}
	if l.HighPercentile <= l.LowPercentile || l.HighPercentile >= 1 {
		return fmt.Errorf("link.high_percentile must be in (low_percentile,1)")
	}
	if l.ThresholdFraction <= 0 || l.ThresholdFraction >= 1 {
		return fmt.Errorf("link.threshold_fraction must be in (0,1)")
	}
	if l.BitGate < 0 {
		return fmt.Errorf("link.bit_gate must not be negative")
	}
	if l.StartDelta < 0 {
		return fmt.Errorf("link.start_delta must not be negative")
	}
	if l.StartRun < 1 || l.StartRun > l.HistorySize {
		return fmt.Errorf("link.start_run must be between 1 and history_size")
	}
	if l.SilenceThreshold < 1 {
		return fmt.Errorf("link.silence_threshold must be at least 1")
	}
	if l.MinCaptureBits < 0 {
		return fmt.Errorf("link.min_capture_bits must not be negative")
	}
	if l.MinConfidence < 0 || l.MinConfidence > 1 {
		return fmt.Errorf("link.min_confidence must be in [0,1]")
	}
	if l.MessageLogSize < 1 {
		return fmt.Errorf("link.message_log_size must be at least 1")
	}

	if c.Timing.SampleRateHz <= 0 {
		return fmt.Errorf("timing.sample_rate_hz must be positive")
	}
	if c.Timing.BitRateHz <= 0 || c.Timing.BitRateHz > c.Timing.SampleRateHz {
		return fmt.Errorf("timing.bit_rate_hz must be positive and no faster than sample_rate_hz")
	}

	switch c.Decoder.Kind {
	case DecoderMajority:
	case DecoderRemote:
		if c.Decoder.URL == "" {
			return fmt.Errorf("decoder.url is required for the remote decoder")
		}
	default:
		return fmt.Errorf("decoder.kind %q is not one of majority, remote", c.Decoder.Kind)
	}
	if c.Decoder.Timeout <= 0 {
		return fmt.Errorf("decoder.timeout must be positive")
	}

	switch c.Actuator.Kind {
	case ActuatorScreen:
	case ActuatorGPIO:
		if c.Actuator.Chip == "" || c.Actuator.Line < 0 {
			return fmt.Errorf("actuator.chip and actuator.line are required for gpio")
		}
	case ActuatorSerial:
		if c.Actuator.SerialPort == "" || c.Actuator.Baud <= 0 {
			return fmt.Errorf("actuator.serial_port and actuator.baud are required for serial")
		}
	default:
		return fmt.Errorf("actuator.kind %q is not one of gpio, serial, screen", c.Actuator.Kind)
	}

	if c.MQTT.Broker != "" && c.MQTT.TopicPrefix == "" {
		return fmt.Errorf("mqtt.topic_prefix is required when a broker is set")
	}
	return nil
}

// Params returns the state machine parameters.
func (c Config) Params() logic.Params {
	l := c.Link
	return logic.Params{
		Threshold: logic.ThresholdParams{
			HistorySize:       l.HistorySize,
			LowPercentile:     l.LowPercentile,
			HighPercentile:    l.HighPercentile,
			ThresholdFraction: l.ThresholdFraction,
			BitGate:           l.BitGate,
		},
		StartDelta:        l.StartDelta,
		StartRun:          l.StartRun,
		SilenceThreshold:  l.SilenceThreshold,
		MinCaptureBits:    l.MinCaptureBits,
		DisarmAfterDecode: l.DisarmAfterDecode,
	}
}

// Receiver returns the link configuration.
func (c Config) Receiver() receiver.Config {
	return receiver.Config{
		Params:        c.Params(),
		BitRateHz:     c.Timing.BitRateHz,
		MinConfidence: c.Link.MinConfidence,
		DecodeTimeout: c.Decoder.Timeout,
		MessageLog:    c.Link.MessageLogSize,
	}
}

// SampleInterval is the time between samples.
func (c Config) SampleInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.Timing.SampleRateHz)
}
