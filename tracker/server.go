package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaguilera/MiniTorrent/logging"
	"golang.org/x/time/rate"
)

const maxAnnounceBody = 64 << 10

// Server exposes a Registry over HTTP.
type Server struct {
	registry *Registry
	mux      *http.ServeMux
	handler  http.Handler
	limiter  *clientLimiter
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRateLimit allows rps requests per second, with the given burst, per
// client IP. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = newClientLimiter(rate.Limit(rps), burst)
	}
}

// NewServer creates a Server with all routes registered.
func NewServer(registry *Registry, opts ...ServerOption) *Server {
	s := &Server{
		registry: registry,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.handler = s.withRequestLog(s.withRecover(s.withRateLimit(s.mux)))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /announce", s.handleAnnounce)
	s.mux.HandleFunc("POST /announce", s.handleAnnounce)
	s.mux.HandleFunc("GET /get_peers", s.handleGetPeers)
	s.mux.HandleFunc("GET /show_tracker_data", s.handleShowTrackerData)
}

// announceFromQuery reads announce fields from URL query parameters.
func announceFromQuery(r *http.Request) (AnnounceRequest, error) {
	q := r.URL.Query()
	req := AnnounceRequest{
		InfoHash:  q.Get("info_hash"),
		FileNames: FileNames(q["file_names"]),
		IP:        q.Get("ip"),
	}
	if p := q.Get("port"); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return req, fmt.Errorf("%w: invalid port %q", ErrInvalidAnnounce, p)
		}
		req.Port = Port(n)
	}
	return req, nil
}

// handleAnnounce handles GET|POST /announce.
func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req AnnounceRequest
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxAnnounceBody))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read request body")
			return
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid announce body: "+err.Error())
			return
		}
	} else {
		var err error
		if req, err = announceFromQuery(r); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	added, err := s.registry.Announce(req)
	if errors.Is(err, ErrInvalidAnnounce) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stats := s.registry.Stats()
	infoHash, _ := NormalizeInfoHash(req.InfoHash)
	logging.Logger.Info("announce",
		"info_hash", infoHash,
		"peer", net.JoinHostPort(req.IP, strconv.Itoa(int(req.Port))),
		"added", added,
		"torrents", stats.Torrents,
		"records", stats.Records,
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "Seeder registered successfully"})
}

// handleGetPeers handles GET /get_peers.
func (s *Server) handleGetPeers(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("info_hash") {
		writeError(w, http.StatusBadRequest, "Missing info_hash")
		return
	}
	writeJSON(w, http.StatusOK, s.registry.GetPeers(r.URL.Query().Get("info_hash")))
}

// handleShowTrackerData handles GET /show_tracker_data.
func (s *Server) handleShowTrackerData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Dump())
}

func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logging.Logger.Error("panic in handler", "path", r.URL.Path, "panic", v)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Logger.Debug("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limiterIdle is how long a client's bucket is kept after its last request.
const limiterIdle = 3 * time.Minute

type limitedClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client IP. Buckets idle for
// longer than idle are dropped.
type clientLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
	clients   map[string]*limitedClient
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	idle := limiterIdle
	// A dropped bucket comes back full, so keep it at least until it would
	// have refilled.
	if refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); refill > idle {
		idle = refill
	}
	return &clientLimiter{
		limit:   limit,
		burst:   burst,
		idle:    idle,
		now:     time.Now,
		clients: make(map[string]*limitedClient),
	}
}

func (c *clientLimiter) allow(ip string) bool {
	c.mu.Lock()
	now := c.now()
	if now.Sub(c.lastSweep) >= c.idle {
		c.sweep(now)
	}
	cl, ok := c.clients[ip]
	if !ok {
		cl = &limitedClient{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[ip] = cl
	}
	cl.lastSeen = now
	c.mu.Unlock()
	return cl.limiter.AllowN(now, 1)
}

// sweep drops idle buckets. c.mu must be held.
func (c *clientLimiter) sweep(now time.Time) {
	for ip, cl := range c.clients {
		if now.Sub(cl.lastSeen) >= c.idle {
			delete(c.clients, ip)
		}
	}
	c.lastSweep = now
}

func (c *clientLimiter) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
