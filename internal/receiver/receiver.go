// Package receiver runs the receive side of an optical link. It serializes
// samples through the state machine and dispatches each captured frame to a
// decoder off the sampling path.
package receiver

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/optical-link/internal/decode"
	"github.com/sweeney/optical-link/internal/hop"
	"github.com/sweeney/optical-link/internal/logic"
)

const (
	// PreviewBits is the number of trailing captured bits shown in snapshots.
	PreviewBits = 40
	// DefaultMessageLog is how many delivered messages are kept for display.
	DefaultMessageLog = 50
)

// DecodedMessage is a message recovered from the link.
type DecodedMessage struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
	Confidence float64   `json:"confidence"`
}

// Disposition records what happened to a decode result.
type Disposition string

const (
	Delivered  Disposition = "DELIVERED"
	Suppressed Disposition = "SUPPRESSED"
	Stale      Disposition = "STALE"
)

// Outcome describes one completed decode.
type Outcome struct {
	Result      decode.Result
	Disposition Disposition
	Bits        int
	Duration    time.Duration
	// Message is set only when Disposition is Delivered.
	Message *DecodedMessage
}

// Config configures a Link.
type Config struct {
	Params    logic.Params
	BitRateHz float64
	// MinConfidence is the cutoff at or below which results are suppressed.
	MinConfidence float64
	// DecodeTimeout bounds a single decoder call. Zero means no limit.
	DecodeTimeout time.Duration
	// MessageLog caps the delivered-message log; values below 1 keep one.
	MessageLog int
}

// DefaultConfig returns the stock link configuration.
func DefaultConfig() Config {
	return Config{
		Params:        logic.DefaultParams(),
		BitRateHz:     hop.BitRateHz,
		MinConfidence: 0.3,
		DecodeTimeout: 30 * time.Second,
		MessageLog:    DefaultMessageLog,
	}
}

// Hooks are optional callbacks. They are never called with the link locked,
// so they may call back into the Link, but not into Wait. Calls arrive one at
// a time, in the order the state machine produced them.
type Hooks struct {
	// OnStart fires when the link locks onto a transmission.
	OnStart func(at time.Time)
	// OnMessage fires once per delivered message.
	OnMessage func(msg DecodedMessage)
	// OnEvent fires for every state machine event.
	OnEvent func(ev logic.Event)
	// OnDecode fires for every completed decode, including suppressed and stale ones.
	OnDecode func(out Outcome)
}

// Stats counts decode dispositions.
type Stats struct {
	Delivered  int `json:"delivered"`
	Suppressed int `json:"suppressed"`
	Stale      int `json:"stale"`
}

// Snapshot is a point-in-time view of the link.
type Snapshot struct {
	State       logic.State
	Armed       bool
	Reading     logic.Reading
	Quality     logic.Quality
	HistoryLen  int
	CaptureLen  int
	Inactivity  int
	Preview     hop.BitStream
	Counts      logic.Counts
	Pending     int
	Stats       Stats
	LastMessage *DecodedMessage
	// Messages is the delivered-message log, newest first.
	Messages []DecodedMessage
}

// Link is safe for concurrent use.
type Link struct {
	mu      sync.Mutex
	machine *logic.Machine
	decoder decode.Decoder
	cfg     Config
	hooks   Hooks
	now     func() time.Time

	// generation is bumped on every disarm; decodes from an older generation are stale.
	generation uint64
	pending    int
	stats      Stats
	last       *DecodedMessage
	messages   []DecodedMessage // newest first

	// outbox holds hook calls in machine order. One goroutine at a time
	// drains it; idle is signalled when it has been emptied.
	outbox   []notice
	draining bool
	idle     *sync.Cond

	wg sync.WaitGroup
}

// notice is one queued hook call: an event, or a finished decode.
type notice struct {
	event   logic.Event
	outcome *Outcome
}

// New creates a disarmed link. now defaults to time.Now.
func New(dec decode.Decoder, cfg Config, hooks Hooks, now func() time.Time) *Link {
	if now == nil {
		now = time.Now
	}
	if cfg.MessageLog < 1 {
		cfg.MessageLog = 1
	}
	l := &Link{
		machine: logic.NewMachine(cfg.Params),
		decoder: dec,
		cfg:     cfg,
		hooks:   hooks,
		now:     now,
	}
	l.idle = sync.NewCond(&l.mu)
	return l
}

// Process feeds one luma sample through the link and returns its reading.
// A completed frame is handed to the decoder in a new goroutine, started
// after the frame's events have been queued.
func (l *Link) Process(luma float64) logic.Reading {
	l.mu.Lock()
	reading, events := l.machine.Process(logic.Input{
		Luma: luma,
		Time: l.now(),
		Hold: l.pending > 0,
	})
	var jobs []decodeJob
	for _, ev := range events {
		if ev.Type == logic.EventFrameReady {
			l.pending++
			l.wg.Add(1)
			jobs = append(jobs, decodeJob{bits: ev.Bits, gen: l.generation})
		}
	}
	l.queue(events)
	l.mu.Unlock()

	l.flush()
	for _, j := range jobs {
		go l.decode(j.bits, j.gen)
	}
	return reading
}

type decodeJob struct {
	bits hop.BitStream
	gen  uint64
}

func (l *Link) decode(bits hop.BitStream, gen uint64) {
	defer l.wg.Done()

	ctx := context.Background()
	if l.cfg.DecodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.DecodeTimeout)
		defer cancel()
	}

	start := l.now()
	res := decode.Reconstruct(ctx, l.decoder, bits, l.cfg.BitRateHz)

	l.mu.Lock()
	now := l.now()
	l.pending--
	out := Outcome{Result: res, Bits: len(bits), Duration: now.Sub(start)}

	var events []logic.Event
	switch {
	case gen != l.generation:
		out.Disposition = Stale
		l.stats.Stale++
	case res.Confidence > l.cfg.MinConfidence:
		events = l.machine.CompleteDecode(now)
		msg := DecodedMessage{
			ID:         uuid.NewString(),
			Text:       res.Text,
			ReceivedAt: now,
			Confidence: res.Confidence,
		}
		out.Disposition = Delivered
		out.Message = &msg
		l.stats.Delivered++
		l.last = &msg
		l.record(msg)
	default:
		events = l.machine.CompleteDecode(now)
		out.Disposition = Suppressed
		l.stats.Suppressed++
	}
	l.queue(events)
	l.outbox = append(l.outbox, notice{outcome: &out})
	l.mu.Unlock()

	log.Printf("link: decode %s %q confidence=%.2f bits=%d took=%s",
		out.Disposition, res.Text, res.Confidence, out.Bits, out.Duration.Round(time.Millisecond))

	l.flush()
}

// record prepends msg to the message log. Caller holds l.mu.
func (l *Link) record(msg DecodedMessage) {
	n := len(l.messages) + 1
	if n > l.cfg.MessageLog {
		n = l.cfg.MessageLog
	}
	next := make([]DecodedMessage, n)
	next[0] = msg
	copy(next[1:], l.messages)
	l.messages = next
}

// queue appends events to the outbox. Caller holds l.mu.
func (l *Link) queue(events []logic.Event) {
	for _, ev := range events {
		l.outbox = append(l.outbox, notice{event: ev})
	}
}

// flush delivers queued notices unless another goroutine is already doing so,
// in which case that goroutine picks up whatever this one queued.
func (l *Link) flush() {
	l.mu.Lock()
	if l.draining {
		l.mu.Unlock()
		return
	}
	l.draining = true
	for len(l.outbox) > 0 {
		batch := l.outbox
		l.outbox = nil
		l.mu.Unlock()
		for _, n := range batch {
			l.deliver(n)
		}
		l.mu.Lock()
	}
	l.draining = false
	l.idle.Broadcast()
	l.mu.Unlock()
}

func (l *Link) deliver(n notice) {
	if out := n.outcome; out != nil {
		if l.hooks.OnDecode != nil {
			l.hooks.OnDecode(*out)
		}
		if out.Message != nil && l.hooks.OnMessage != nil {
			l.hooks.OnMessage(*out.Message)
		}
		return
	}

	ev := n.event
	switch ev.Type {
	case logic.EventFrameReady, logic.EventFrameDiscarded:
		log.Printf("link: %s %s -> %s (%d bits)", ev.Type, ev.From, ev.To, len(ev.Bits))
	default:
		log.Printf("link: %s %s -> %s", ev.Type, ev.From, ev.To)
	}

	if ev.Type == logic.EventReceiving && l.hooks.OnStart != nil {
		l.hooks.OnStart(ev.Timestamp)
	}
	if l.hooks.OnEvent != nil {
		l.hooks.OnEvent(ev)
	}
}

// Arm enables start detection.
func (l *Link) Arm() {
	l.mu.Lock()
	l.queue(l.machine.Arm(l.now()))
	l.mu.Unlock()
	l.flush()
}

// Disarm returns the link to WAITING, drops any partial capture and marks
// an in-flight decode as stale. The decoder call itself is left to finish.
func (l *Link) Disarm() {
	l.mu.Lock()
	l.queue(l.machine.Disarm(l.now()))
	l.generation++
	l.mu.Unlock()
	l.flush()
}

// FlushMessages empties the delivered-message log and returns how many
// entries it held. The last message and the stats are kept.
func (l *Link) FlushMessages() int {
	l.mu.Lock()
	n := len(l.messages)
	l.messages = nil
	l.mu.Unlock()
	log.Printf("link: flushed %d logged messages", n)
	return n
}

// Wait blocks until all outstanding decodes have finished and their hook
// calls have been made. It must not be called from a hook.
func (l *Link) Wait() {
	l.wg.Wait()
	l.mu.Lock()
	for l.draining || len(l.outbox) > 0 {
		l.idle.Wait()
	}
	l.mu.Unlock()
}

// Snapshot returns the current link view.
func (l *Link) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	reading := l.machine.LastReading()
	snap := Snapshot{
		State:      l.machine.State(),
		Armed:      l.machine.Armed(),
		Reading:    reading,
		Quality:    logic.QualityOf(reading.Delta),
		HistoryLen: l.machine.HistoryLen(),
		CaptureLen: l.machine.CaptureLen(),
		Inactivity: l.machine.Inactivity(),
		Preview:    l.machine.Preview(PreviewBits),
		Counts:     l.machine.Counts(),
		Pending:    l.pending,
		Stats:      l.stats,
	}
	if l.last != nil {
		msg := *l.last
		snap.LastMessage = &msg
	}
	if len(l.messages) > 0 {
		snap.Messages = append([]DecodedMessage(nil), l.messages...)
	}
	return snap
}
