// Package web serves the timeline over HTTP: JSON APIs for the resolved
// profile, events and hit-testing, an SVG rendering, an HTML page for
// capture and an SSE stream of change notifications.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"timelinecal/internal/apperr"
	appLog "timelinecal/internal/log"
	"timelinecal/internal/sse"
	"timelinecal/internal/view"
)

// DefaultCacheTTL bounds how long rendered responses are reused.
const DefaultCacheTTL = 30 * time.Second

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/timeline.html"))

// Options tunes a Server. The zero value is usable.
type Options struct {
	// PreviewPath is the PNG written by the capture command, served at
	// /preview.png.
	PreviewPath string
	CacheTTL    time.Duration
	// Now replaces the wall clock in tests.
	Now func() time.Time
}

// Server provides the HTTP surface of the timeline.
type Server struct {
	ctrl   *view.Controller
	broker *sse.Broker
	opts   Options
	router chi.Router

	// In-memory cache of rendered responses keyed by path and query, to
	// avoid re-expanding events on every request.
	cacheMu sync.RWMutex
	cache   map[string]cachedResponse
}

type cachedResponse struct {
	contentType string
	body        []byte
	updatedAt   time.Time
}

// NewServer constructs a new Server. broker may be nil, which disables
// /api/stream.
func NewServer(ctrl *view.Controller, broker *sse.Broker, opts Options) *Server {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		ctrl:   ctrl,
		broker: broker,
		opts:   opts,
		cache:  make(map[string]cachedResponse),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Invalidate drops every cached response. It is called after a refresh or
// a config reload.
func (s *Server) Invalidate() {
	s.cacheMu.Lock()
	s.cache = make(map[string]cachedResponse)
	s.cacheMu.Unlock()
}

func (s *Server) registerRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// /health is always reachable without credentials.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.basicAuthMiddleware)

		r.Get("/api/profile", s.handleProfile)
		r.Get("/api/events", s.handleEvents)
		r.Post("/api/hit", s.handleHit)
		r.Post("/api/drag", s.handleDrag)
		if s.broker != nil {
			r.Get("/api/stream", s.broker.ServeHTTP)
		}
		r.Get("/timeline.svg", s.handleSVG)
		r.Get("/timeline", s.handlePage)
		r.Get("/preview.png", s.handlePreview)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/timeline", http.StatusFound)
		})
	})

	s.router = r
}

// requestLogger logs one line per request through the application logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(started).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// basicAuthMiddleware enforces HTTP Basic Auth when the active config sets
// both a username and a password. It reads the config per request so a
// reload takes effect immediately.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := s.ctrl.Config().BasicAuth
		if auth == nil || auth.Username == "" || auth.Password == "" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, auth.Username) || !secureCompare(p, auth.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="timelinecal", charset="UTF-8"`)
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

// ListenAndServe serves until ctx is cancelled, then shuts down with a
// grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown error", err)
		return err
	}
	return <-errCh
}

// cached serves a fresh cached body for key or builds, stores and serves a
// new one.
func (s *Server) cached(w http.ResponseWriter, key string, build func() (string, []byte, error)) {
	now := s.opts.Now()

	s.cacheMu.RLock()
	c, ok := s.cache[key]
	s.cacheMu.RUnlock()
	if ok && now.Sub(c.updatedAt) < s.opts.CacheTTL {
		w.Header().Set("Content-Type", c.contentType)
		w.Header().Set("X-Cache", "hit")
		_, _ = w.Write(c.body)
		return
	}

	contentType, body, err := build()
	if err != nil {
		writeAppError(w, err)
		return
	}

	s.cacheMu.Lock()
	s.cache[key] = cachedResponse{contentType: contentType, body: body, updatedAt: now}
	s.cacheMu.Unlock()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Cache", "miss")
	_, _ = w.Write(body)
}

func cacheKey(r *http.Request) string {
	return r.URL.Path + "?" + r.URL.Query().Encode()
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

// writeAppError maps domain errors onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// stripXMLHeader drops the XML declaration so an SVG document can be
// inlined into HTML.
func stripXMLHeader(svg string) string {
	if strings.HasPrefix(svg, "<?xml") {
		if i := strings.Index(svg, "?>"); i >= 0 {
			return strings.TrimLeft(svg[i+2:], "\n")
		}
	}
	return svg
}
