package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/optical-link/internal/logic"
	"github.com/sweeney/optical-link/internal/receiver"
)

// bufferCapacity is the number of messages held while the broker is unreachable.
const bufferCapacity = 100

// RealPublisher publishes to an actual MQTT broker.
// Messages published while disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // has connected at least once
}

// NewRealPublisher starts connecting to broker in the background and returns immediately.
// will is published retained on the system topic if the connection is lost uncleanly.
func NewRealPublisher(broker, clientID string, topics Topics, will []byte) *RealPublisher {
	p := &RealPublisher{
		topics: topics,
		buf:    newRingBuffer(bufferCapacity),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	if will != nil {
		opts.SetBinaryWill(topics.System, will, 1, true)
	}

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected, replaying %d buffered messages", len(pending))
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		c.Publish(p.topics.System, 1, false, payload)
	} else {
		log.Printf("mqtt: connected, replaying %d buffered messages", len(pending))
	}

	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishMessage sends a decoded message. QoS 1: a received message should not be lost.
func (p *RealPublisher) PublishMessage(msg receiver.DecodedMessage) error {
	payload, err := FormatMessagePayload(msg)
	if err != nil {
		return fmt.Errorf("format message payload: %w", err)
	}
	return p.send(p.topics.Messages, 1, false, payload)
}

// PublishEvent sends a link event. QoS 0 (at-most-once), not retained.
func (p *RealPublisher) PublishEvent(event logic.Event) error {
	payload, err := FormatEventPayload(event)
	if err != nil {
		return fmt.Errorf("format event payload: %w", err)
	}
	return p.send(p.topics.Events, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(p.topics.System, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Dropped returns the number of buffered messages lost to overflow.
func (p *RealPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.dropped
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
