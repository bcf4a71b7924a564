package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/marginalia/core/anchor"
	"github.com/FocuswithJustin/marginalia/core/engine"
	"github.com/FocuswithJustin/marginalia/core/render"
	"github.com/FocuswithJustin/marginalia/core/tree"
	"github.com/FocuswithJustin/marginalia/internal/logging"
)

// Config holds event server settings.
type Config struct {
	Host string
	Port int
	// AllowedOrigins lists accepted Origin headers for /ws. "*" allows all,
	// "*.example.com" allows subdomains. Requests without an Origin header
	// (non-browser clients) are accepted.
	AllowedOrigins []string
	MaxMessageSize int64
	WriteTimeout   time.Duration
	PongWait       time.Duration
}

// DefaultConfig returns local-only defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           8787,
		AllowedOrigins: []string{"*"},
		MaxMessageSize: 4096,
		WriteTimeout:   10 * time.Second,
		PongWait:       60 * time.Second,
	}
}

// ActivateRequest is the POST /activate body. Path and Offset address a point
// in the document the same way stored positions do.
type ActivateRequest struct {
	Path        anchor.NodePath    `json:"path"`
	Offset      int                `json:"offset"`
	Interaction engine.Interaction `json:"interaction"`
}

// Server serves /ws and /activate for one document.
type Server struct {
	cfg      Config
	hub      *Hub
	eng      *engine.Engine
	loop     *render.Loop
	doc      tree.Container
	upgrader websocket.Upgrader
}

// NewServer returns a server. Engine calls are made on loop, which the caller
// must run.
func NewServer(cfg Config, eng *engine.Engine, loop *render.Loop, doc tree.Container) *Server {
	s := &Server{
		cfg:  cfg,
		hub:  NewHub(cfg),
		eng:  eng,
		loop: loop,
		doc:  doc,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if !isOriginAllowed(origin, cfg.AllowedOrigins) {
				logging.Warn("websocket origin rejected", "origin", origin)
				return false
			}
			return true
		},
	}
	return s
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the routes wrapped in request-id and logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /activate", s.handleActivate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": s.hub.ClientCount()})
	})
	return logging.CombinedMiddleware(securityHeaders(mux))
}

// apiCSP forbids loading anything; the endpoints only speak JSON.
const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", apiCSP)
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe runs the hub and HTTP server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	detach := s.hub.Attach(s.eng)
	defer detach()
	go s.hub.Run(ctx)

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logging.ServerStartup("events", "http", s.cfg.Port, "host", s.cfg.Host, "ws", "ws://"+addr+"/ws")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.ErrorContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, 256)}
	if !s.hub.join(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxMessageSize)
	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Interaction == "" {
		req.Interaction = engine.Click
	}

	var (
		evt   engine.MarkerActivated
		found bool
	)
	err := s.loop.Do(r.Context(), func() {
		b, ok := anchor.DecodePoint(anchor.Point{Path: req.Path, Offset: req.Offset}, s.doc)
		if !ok {
			return
		}
		evt, found = s.eng.Activate(b.Node, req.Interaction, s.doc)
	})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no marker at " + req.Path.String()})
		return
	}
	logging.InfoContext(r.Context(), "marker activated", "annotation_id", evt.AnnotationID, "interaction", evt.Interaction)
	writeJSON(w, http.StatusOK, evt)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to write response", "error", err)
	}
}

// isOriginAllowed matches an Origin header against the allowed patterns.
func isOriginAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		switch {
		case a == "*", a == origin:
			return true
		case strings.HasPrefix(a, "*."):
			if strings.HasSuffix(origin, a[1:]) {
				return true
			}
		}
	}
	return false
}
