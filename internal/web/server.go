// Package web provides the HTTP status and control server for the optical link daemon.
package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sweeney/optical-link/internal/receiver"
	"github.com/sweeney/optical-link/internal/status"
)

// DefaultLiveInterval is how often /live pushes a status frame.
const DefaultLiveInterval = 250 * time.Millisecond

// Controller arms and disarms the receive link and clears its message log.
// *receiver.Link satisfies it.
type Controller interface {
	Arm()
	Disarm()
	FlushMessages() int
	Snapshot() receiver.Snapshot
}

// Server serves the status page, JSON, link control, metrics and a live feed.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	control    Controller
	upgrader   websocket.Upgrader

	// LiveInterval is the /live push period.
	LiveInterval time.Duration

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a Server that reads state from the given tracker.
// control and metrics may be nil; their routes are then not registered.
func New(addr string, tracker *status.Tracker, control Controller, metrics http.Handler) *Server {
	s := &Server{
		tracker: tracker,
		control: control,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // status page may be served through a proxy
			},
		},
		LiveInterval: DefaultLiveInterval,
		done:         make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)
	if control != nil {
		r.HandleFunc("/arm", s.handleArm).Methods(http.MethodPost)
		r.HandleFunc("/disarm", s.handleDisarm).Methods(http.MethodPost)
		r.HandleFunc("/messages/flush", s.handleFlush).Methods(http.MethodPost)
	}
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and ends live feeds.
func (s *Server) Shutdown(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.control != nil)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w)
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	log.Printf("http: arm requested by %s", r.RemoteAddr)
	s.control.Arm()
	s.tracker.Update(s.control.Snapshot())
	s.writeStatus(w)
}

func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	log.Printf("http: disarm requested by %s", r.RemoteAddr)
	s.control.Disarm()
	s.tracker.Update(s.control.Snapshot())
	s.writeStatus(w)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	n := s.control.FlushMessages()
	log.Printf("http: message log flushed by %s (%d entries)", r.RemoteAddr, n)
	s.tracker.Update(s.control.Snapshot())
	s.writeStatus(w)
}

func (s *Server) writeStatus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

// handleLive streams compact status JSON frames until the client goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("http: live upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reads only serve to notice the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.LiveInterval)
	defer ticker.Stop()

	for {
		frame := status.FormatStatusEvent(s.tracker.Snapshot(), "LIVE", "")
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}

		select {
		case <-ticker.C:
		case <-closed:
			return
		case <-s.done:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		}
	}
}
