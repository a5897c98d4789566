// Package web serves the monitoring dashboard: a single embedded page
// that opens an SSE connection to watch session events as they happen.
package web

import (
	"context"
	"encoding/json"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/ksugimoto/hislipd/event"
	"github.com/ksugimoto/hislipd/monitor/broker"
)

//go:embed static
var staticFS embed.FS

// Server serves the dashboard UI and the /api/events SSE endpoint.
type Server struct {
	httpServer *http.Server
	broker     *broker.Broker
}

// New creates a web Server backed by the given Broker.
func New(b *broker.Broker) *Server {
	s := &Server{broker: b}

	mux := http.NewServeMux()

	sub, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /", http.FileServer(http.FS(sub)))
	mux.HandleFunc("GET /api/events", s.handleSSE)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve starts the HTTP server on the given listener.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type eventJSON struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	SessionID  uint16 `json:"session_id"`
	SubAddress string `json:"sub_address,omitempty"`
	At         string `json:"at"`
	Detail     string `json:"detail,omitempty"`
	Normalized string `json:"normalized,omitempty"`
	Chatter    bool   `json:"chatter,omitempty"`
}

func eventToJSON(ev event.Event) eventJSON {
	return eventJSON{
		ID:         ev.ID,
		Kind:       string(ev.Kind),
		SessionID:  ev.SessionID,
		SubAddress: ev.SubAddress,
		At:         ev.At.Format(time.RFC3339Nano),
		Detail:     ev.Detail,
		Normalized: ev.Normalized,
		Chatter:    ev.Chatter,
	}
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush() // send headers immediately

	ch, unsub := s.broker.Subscribe()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(eventToJSON(ev))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
