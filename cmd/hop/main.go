// Command hop sends and receives short text messages over a flashing light.
// In rx mode it thresholds a stream of luma samples, decodes captured frames and
// publishes messages to MQTT. In tx mode it flashes a message on an LED.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/optical-link/internal/actuator"
	"github.com/sweeney/optical-link/internal/config"
	"github.com/sweeney/optical-link/internal/decode"
	"github.com/sweeney/optical-link/internal/logic"
	"github.com/sweeney/optical-link/internal/luma"
	"github.com/sweeney/optical-link/internal/metrics"
	"github.com/sweeney/optical-link/internal/mqtt"
	"github.com/sweeney/optical-link/internal/receiver"
	"github.com/sweeney/optical-link/internal/status"
	"github.com/sweeney/optical-link/internal/transmit"
	"github.com/sweeney/optical-link/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults when empty)")
	mode := flag.String("mode", "rx", `"rx" to receive, "tx" to transmit -message`)
	message := flag.String("message", "", "Message to transmit in tx mode")
	input := flag.String("input", "-", `Luma samples for rx mode, one per line ("-" for stdin)`)
	broker := flag.String("broker", "", "MQTT broker address (overrides config, empty disables)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides config, empty disables)")
	armed := flag.Bool("armed", false, "Arm the link at startup")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")

	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	// Only flags given on the command line override the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			cfg.MQTT.Broker = *broker
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "armed":
			cfg.Link.Armed = *armed
		}
	})

	switch *mode {
	case "rx":
		err = run(cfg, *input, *heartbeat)
	case "tx":
		err = runTransmit(cfg, *message)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(cfg config.Config, input string, heartbeat time.Duration) error {
	in, err := openInput(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	src := luma.NewLineSource(in)
	defer src.Close()

	m := metrics.New()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		SampleRateHz:  cfg.Timing.SampleRateHz,
		BitRateHz:     cfg.Timing.BitRateHz,
		MinConfidence: cfg.Link.MinConfidence,
		Decoder:       cfg.Decoder.Kind,
		HeartbeatMs:   heartbeat.Milliseconds(),
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		will, _ := mqtt.FormatSystemPayload(mqtt.SystemEvent{
			Timestamp: time.Now(),
			Event:     "OFFLINE",
			Reason:    "CONNECTION_LOST",
		})
		pub := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, mqtt.TopicsFor(cfg.MQTT.TopicPrefix), will)
		publisher, mqttStatus = pub, pub
	}
	defer publisher.Close()

	link := receiver.New(newDecoder(cfg), cfg.Receiver(), linkHooks(publisher, m), time.Now)
	if cfg.Link.Armed {
		link.Arm()
	}
	tracker.Update(link.Snapshot())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, link, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: rx sample_rate=%vHz bit_rate=%vHz decoder=%s armed=%t broker=%q heartbeat=%v",
		cfg.Timing.SampleRateHz, cfg.Timing.BitRateHz, cfg.Decoder.Kind, cfg.Link.Armed, cfg.MQTT.Broker, heartbeat)

	ticker := time.NewTicker(cfg.SampleInterval())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(src, link, publisher, mqttStatus, tracker, m, heartbeat, time.Now, ticker.C, sigCh)
}

func runLoop(src luma.Source, link *receiver.Link, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, m *metrics.Metrics, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			publishLifecycle(publisher, mqttStatus, tracker, link, "SHUTDOWN", signalName, now())
			return nil

		case <-tick:
			sample, err := src.Next()
			if errors.Is(err, io.EOF) {
				log.Printf("input exhausted, waiting for pending decodes")
				link.Wait()
				publishLifecycle(publisher, mqttStatus, tracker, link, "SHUTDOWN", "EOF", now())
				return nil
			}
			if err != nil {
				log.Printf("sample read error: %v", err)
				continue
			}

			t := now()
			reading := link.Process(sample)
			snap := link.Snapshot()

			// Update status tracker and metrics for HTTP consumers
			tracker.Update(snap)
			connected := mqttStatus.IsConnected()
			tracker.SetMQTTConnected(connected)
			m.ObserveReading(reading)
			m.ObserveState(snap.State, snap.Armed)
			held, dropped := backlog(publisher)
			m.SetMQTT(connected, held, dropped)

			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				log.Printf("heartbeat: state=%s armed=%t samples=%d frames=%d delivered=%d suppressed=%d",
					snap.State, snap.Armed, snap.Counts.Samples, snap.Counts.Frames, snap.Stats.Delivered, snap.Stats.Suppressed)
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				publishLifecycle(publisher, mqttStatus, tracker, link, "HEARTBEAT", "", t)
			}
		}
	}
}

// publishLifecycle publishes a system event carrying the full status snapshot.
func publishLifecycle(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, link *receiver.Link, event, reason string, t time.Time) {
	tracker.Update(link.Snapshot())
	tracker.SetMQTTConnected(mqttStatus.IsConnected())
	snap := tracker.Snapshot()

	err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  t,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	} else if event != "HEARTBEAT" {
		log.Printf("published %s event", event)
	}
}

// linkHooks routes link output to MQTT, metrics and the log.
func linkHooks(publisher mqtt.Publisher, m *metrics.Metrics) receiver.Hooks {
	return receiver.Hooks{
		OnStart: func(at time.Time) {
			log.Printf("link: transmission detected at %s", at.UTC().Format(time.RFC3339))
		},
		OnEvent: func(ev logic.Event) {
			m.ObserveEvent(ev)
			if err := publisher.PublishEvent(ev); err != nil {
				log.Printf("publish error: %v", err)
			}
		},
		OnDecode: m.ObserveDecode,
		OnMessage: func(msg receiver.DecodedMessage) {
			log.Printf("message %s: %q (confidence %.2f)", msg.ID, msg.Text, msg.Confidence)
			if err := publisher.PublishMessage(msg); err != nil {
				log.Printf("publish error: %v", err)
			}
		},
	}
}

func newDecoder(cfg config.Config) decode.Decoder {
	if cfg.Decoder.Kind == config.DecoderRemote {
		return decode.NewRemote(cfg.Decoder.URL, cfg.Timing.SampleRateHz, cfg.Decoder.Timeout)
	}
	return decode.NewMajority(cfg.Timing.SampleRateHz)
}

func openInput(path string) (io.Reader, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

// backlog reports how many publishes are waiting for the broker and how many
// were lost to overflow, if the publisher buffers.
func backlog(p mqtt.Publisher) (buffered, dropped int) {
	b, ok := p.(interface {
		Buffered() int
		Dropped() int
	})
	if !ok {
		return 0, 0
	}
	return b.Buffered(), b.Dropped()
}

func runTransmit(cfg config.Config, message string) error {
	out := openActuator(cfg.Actuator, os.Stdout)
	defer out.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := transmit.Transmit(ctx, out, message); err != nil {
		return fmt.Errorf("transmit: %w", err)
	}
	return nil
}

// openActuator opens the configured light source. Hardware that cannot be
// opened, or that fails mid-message, falls back to flashing the terminal.
func openActuator(cfg config.ActuatorConfig, screen io.Writer) actuator.Actuator {
	fallback := actuator.NewScreen(screen, 40)

	var primary actuator.Actuator
	var err error
	switch cfg.Kind {
	case config.ActuatorGPIO:
		primary, err = actuator.NewGPIO(cfg.Chip, cfg.Line)
	case config.ActuatorSerial:
		primary, err = actuator.NewSerial(cfg.SerialPort, cfg.Baud)
	default:
		return fallback
	}
	if err != nil {
		log.Printf("actuator: %s unavailable, using screen: %v", cfg.Kind, err)
		return fallback
	}
	return actuator.WithFallback(primary, fallback)
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
