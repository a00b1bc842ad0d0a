package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

const (
	maxPayloadBytes = 4 << 20
	compressLevel   = 5
	shutdownTimeout = 5 * time.Second
	readTimeout     = 10 * time.Second
)

// Renderer turns a snapshot into a diagram.
type Renderer func(infos []StateInfo) string

// ReadinessCheck reports whether a dependency of the server is usable.
type ReadinessCheck func(ctx context.Context) error

// Server serves the snapshots held in a Store.
type Server struct {
	store    *Store
	logger   *slog.Logger
	renderer Renderer
	checks   map[string]ReadinessCheck
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRenderer enables GET /get_fsm/{name}/diagram.
func WithRenderer(renderer Renderer) ServerOption {
	return func(s *Server) {
		s.renderer = renderer
	}
}

// WithReadinessCheck adds a named check to GET /healthz.
func WithReadinessCheck(name string, check ReadinessCheck) ServerOption {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// NewServer creates a server over store.
func NewServer(store *Store, opts ...ServerOption) *Server {
	s := &Server{
		store:  store,
		logger: slog.Default(),
		checks: make(map[string]ReadinessCheck),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Store returns the store backing the server.
func (s *Server) Store() *Store {
	return s.store
}

// Ingest decodes a payload and stores it. source labels the ingest metric.
func (s *Server) Ingest(source string, payload []byte) error {
	infos, err := Decode(payload)
	if err != nil {
		ingestTotal.WithLabelValues(source, "invalid").Inc()

		return err
	}

	err = s.store.Put(infos)
	if err != nil {
		ingestTotal.WithLabelValues(source, "invalid").Inc()

		return err
	}

	ingestTotal.WithLabelValues(source, "stored").Inc()

	return nil
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(newCompressor().Handler)

	r.Get("/get_fsms", s.handleList)
	r.Get("/get_fsm_names", s.handleNames)
	r.Get("/get_fsm/{name}", s.handleGet)

	if s.renderer != nil {
		r.Get("/get_fsm/{name}/diagram", s.handleDiagram)
	}

	r.Post("/publish", s.handlePublish)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.logger.InfoContext(ctx, "Viewer listening", "addr", addr)

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("viewer server failed: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.store.All())
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.store.Names())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	infos, ok := s.store.Get(chi.URLParam(r, "name"))
	if !ok {
		writeJSON(w, r, struct{}{})

		return
	}

	writeJSON(w, r, infos)
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	infos, ok := s.store.Get(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)

		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, s.renderer(infos))
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)

		return
	}

	err = s.Ingest("http", payload)
	if err != nil {
		s.logger.DebugContext(r.Context(), "Rejected snapshot", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status   string            `json:"status"`
	Machines int               `json:"machines"`
	Checks   map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rsp := healthResponse{
		Status:   "ok",
		Machines: s.store.Len(),
	}

	status := http.StatusOK

	if len(s.checks) > 0 {
		rsp.Checks = make(map[string]string, len(s.checks))

		for name, check := range s.checks {
			if err := check(r.Context()); err != nil {
				rsp.Checks[name] = err.Error()
				rsp.Status = "unavailable"
				status = http.StatusServiceUnavailable

				continue
			}

			rsp.Checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rsp)
}

// writeJSON writes value with an ETag and answers 304 when the client already has it.
func writeJSON(w http.ResponseWriter, r *http.Request, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxh3.Hash(data))

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func newCompressor() *middleware.Compressor {
	c := middleware.NewCompressor(compressLevel, "application/json", "text/plain")

	c.SetEncoder("lz4", func(w io.Writer, _ int) io.Writer {
		return lz4.NewWriter(w)
	})

	c.SetEncoder("zstd", func(w io.Writer, _ int) io.Writer {
		// SpeedDefault is always a valid level, so NewWriter cannot fail here.
		enc, _ := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))

		return enc
	})

	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})

	return c
}
