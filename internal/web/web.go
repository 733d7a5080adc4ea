package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sequins/internal/config"
	"sequins/internal/convert"
	appLog "sequins/internal/log"
	"sequins/internal/matrix"
	"sequins/internal/model"
	"sequins/internal/sequencer"
)

// Sequencer is what the server exposes over HTTP.
type Sequencer interface {
	Status() sequencer.Status
	Reset() error
	Pattern() []model.Frame
	Subscribe(fn func(sequencer.Status)) (cancel func())
}

// Server provides the status API and a websocket mirror of the sequencer.
type Server struct {
	cfg *config.Config
	seq Sequencer
	mux *http.ServeMux
	// geo is nil when the configured layout is invalid.
	geo *matrix.Geometry

	mu      sync.Mutex
	clients map[*client]bool
	cancel  func()
}

// client is one websocket connection. Only the writer goroutine writes to
// conn; updates queue up in out and are dropped when the client lags.
type client struct {
	conn *websocket.Conn
	out  chan sequencer.Status
}

const (
	clientQueue  = 16
	writeTimeout = 200 * time.Millisecond
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// NewServer constructs a new Server and subscribes it to seq. Close
// releases the subscription.
func NewServer(cfg *config.Config, seq Sequencer) *Server {
	s := &Server{
		cfg:     cfg,
		seq:     seq,
		mux:     http.NewServeMux(),
		clients: make(map[*client]bool),
	}
	if geo, err := matrix.NewGeometry(cfg.Layout()); err == nil {
		s.geo = geo
	}
	s.cancel = seq.Subscribe(s.broadcast)
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password leaves auth off.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Sequins", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close drops the sequencer subscription and every websocket client.
func (s *Server) Close() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.Close()
		delete(s.clients, c)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/reset", s.handleReset)
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.seq.Status())
}

// handleReset clears the pattern and the display, as a program change on
// the controller would.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.seq.Reset(); err != nil {
		appLog.Error("api reset failed", err)
		writeError(w, http.StatusInternalServerError, "failed to reset display")
		return
	}
	appLog.Info("pattern reset via api", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, s.seq.Status())
}

// handlePreview renders the recorded steps as they appear on the grid.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.geo == nil {
		writeError(w, http.StatusServiceUnavailable, "display layout invalid")
		return
	}
	b, err := convert.PNG(s.geo, s.seq.Pattern())
	if err != nil {
		appLog.Error("preview render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render preview")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}

// handleWS streams the status as JSON text messages: the current one right
// after connecting, then one per change.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, out: make(chan sequencer.Status, clientQueue)}
	c.out <- s.seq.Status()

	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			select {
			case <-done:
				return
			case st := <-c.out:
				b, err := json.Marshal(st)
				if err != nil {
					appLog.Error("failed to encode status", err)
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					appLog.Debug("websocket write failed", "err", err.Error())
					return
				}
			}
		}
	}()
}

func (s *Server) broadcast(st sequencer.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.out <- st:
		default:
			// Lagging client; it catches up with the next change.
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
