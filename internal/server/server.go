package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/specialistvlad/lazyinit/internal/coordinator"
	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"github.com/specialistvlad/lazyinit/internal/dispatch"
	"github.com/specialistvlad/lazyinit/internal/image"
)

const shutdownTimeout = 5 * time.Second

// Loader is the dispatch entry point.
type Loader interface {
	InitModule(ctx context.Context, cred dispatch.Credentials, data []byte, args string) error
	FinitModule(ctx context.Context, cred dispatch.Credentials, f *os.File, args string, flags image.Flags) error
}

// StatusSource reports coordinator state.
type StatusSource interface {
	Completed() bool
	Snapshot() []coordinator.EntryInfo
}

// Config holds the listener settings.
type Config struct {
	Addr       string
	AdminToken string
	// RateLimit is requests per second per unprivileged peer; <= 0 disables
	// limiting. Callers holding module management are never limited.
	RateLimit float64
	Burst     int
	// MaxBodySize bounds request bodies; <= 0 means image.DefaultMaxSize.
	MaxBodySize int64
}

// FileRequest is the body of POST /v1/modules/file.
type FileRequest struct {
	Path  string      `json:"path"`
	Args  string      `json:"args,omitempty"`
	Flags image.Flags `json:"flags,omitempty"`
}

// Status is the body of GET /v1/status.
type Status struct {
	Completed bool          `json:"completed"`
	Entries   []StatusEntry `json:"entries"`
}

// StatusEntry describes one registry entry.
type StatusEntry struct {
	Name    string `json:"name"`
	Class   string `json:"class"`
	Loaded  bool   `json:"loaded"`
	Source  string `json:"source,omitempty"`
	InitErr string `json:"init_error,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Server serves load requests.
type Server struct {
	cfg     Config
	loader  Loader
	status  StatusSource
	handler http.Handler
}

// New builds the server and its routes.
func New(cfg Config, loader Loader, status StatusSource) *Server {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = image.DefaultMaxSize
	}
	s := &Server{cfg: cfg, loader: loader, status: status}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/modules", s.handleInit)
	mux.HandleFunc("POST /v1/modules/file", s.handleFinit)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)

	var h http.Handler = mux
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		h = newPeerLimiter(cfg.RateLimit, burst).middleware(h, s.privileged)
	}
	s.handler = h
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on l until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	logger := ctxlog.FromContext(ctx)
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Dispatch server listening.", "address", l.Addr().String())
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dispatch server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Debug("Shutting down dispatch server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Dispatch server shutdown failed.", "error", err)
		return err
	}
	logger.Debug("Dispatch server shut down gracefully.")
	return nil
}

// ListenAndServe listens on cfg.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cred := s.credentials(r)
	if !cred.Has(dispatch.CapModuleManagement) {
		s.writeResult(ctx, w, dispatch.ErrPermission)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, image.ErrImageTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.loader.InitModule(ctx, cred, data, r.URL.Query().Get("args"))
	s.writeResult(ctx, w, err)
}

func (s *Server) handleFinit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cred := s.credentials(r)
	if !cred.Has(dispatch.CapModuleManagement) {
		// Checked before touching the filesystem on the caller's behalf.
		s.writeResult(ctx, w, dispatch.ErrPermission)
		return
	}

	var req FileRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	f, err := os.Open(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to open component image: %v", err))
		return
	}
	defer f.Close()

	err = s.loader.FinitModule(ctx, cred, f, req.Args, req.Flags)
	s.writeResult(ctx, w, err)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.Snapshot()
	st := Status{Completed: s.status.Completed(), Entries: make([]StatusEntry, 0, len(snap))}
	for _, e := range snap {
		se := StatusEntry{Name: e.Name, Class: e.Class.String(), Loaded: e.Loaded, Source: e.Source}
		if e.InitErr != nil {
			se.InitErr = e.InitErr.Error()
		}
		st.Entries = append(st.Entries, se)
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctxlog.FromContext(r.Context()).Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// credentials derives caller privileges from the request.
func (s *Server) credentials(r *http.Request) dispatch.Credentials {
	if s.cfg.AdminToken == "" {
		if ip := net.ParseIP(remoteHost(r)); ip != nil && ip.IsLoopback() {
			return dispatch.Credentials{Capabilities: dispatch.CapModuleManagement}
		}
		return dispatch.Credentials{}
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) == 1 {
		return dispatch.Credentials{Capabilities: dispatch.CapModuleManagement}
	}
	return dispatch.Credentials{}
}

func (s *Server) privileged(r *http.Request) bool {
	return s.credentials(r).Has(dispatch.CapModuleManagement)
}

func (s *Server) writeResult(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		ctxlog.FromContext(ctx).Error("Load request failed.", "error", err)
	}
	writeError(w, status, err.Error())
}

// StatusFor maps a dispatch error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, image.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, image.ErrInvalidImage), errors.Is(err, image.ErrInvalidFlags):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
