// Package server exposes a deskpad session over HTTP.
//
// Routes:
//
//	GET    /health               liveness
//	GET    /v1/status            session and registry counters
//	POST   /v1/resources         upload an original, returns its proxy and placement
//	DELETE /v1/resources         reset the session
//	DELETE /v1/resources/{id}    remove one original and its canvas object
//	POST   /v1/export            export a document, or the session canvas if the body is empty
//	GET    /v1/export/ready      fetch an export that outlived the busy timeout
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gogpu/deskpad"
)

// Server serves one session.
type Server struct {
	session *deskpad.Session
	cfg     deskpad.ServerConfig
	loader  deskpad.ImageLoader
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithImageLoader sets how document image references are resolved. The
// default accepts data URIs only.
func WithImageLoader(l deskpad.ImageLoader) Option {
	return func(s *Server) { s.loader = l }
}

// New returns a server for session. Zero fields of cfg take their defaults.
func New(session *deskpad.Session, cfg deskpad.ServerConfig, opts ...Option) *Server {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = deskpad.DefaultConfig().Server.BusyTimeout
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = deskpad.DefaultConfig().Server.MaxUploadSize
	}
	s := &Server{
		session: session,
		cfg:     cfg,
		loader:  deskpad.DirLoader(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/resources", s.handleUpload)
		r.Delete("/resources", s.handleReset)
		r.Delete("/resources/{id}", s.handleDelete)
		r.Post("/export", s.handleExport)
		r.Get("/export/ready", s.handleReady)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on cfg.Addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		deskpad.Logger().Info("server: listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs each request through the deskpad logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		deskpad.Logger().LogAttrs(r.Context(), slog.LevelDebug, "server: request",
			slog.String("id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Busy      bool   `json:"busy"`
	Objects   int    `json:"objects"`
	Originals int    `json:"originals"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Bytes     int64  `json:"bytes"`
	Size      string `json:"size"`
	Ready     string `json:"ready,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	reg := s.session.Registry()
	st := reg.Stats()
	resp := statusResponse{
		Busy:      s.session.Busy(),
		Objects:   len(s.session.Canvas().Objects),
		Originals: st.Originals,
		Hits:      st.Hits,
		Misses:    st.Misses,
		Bytes:     reg.Bytes(),
		Size:      humanize.IBytes(uint64(reg.Bytes())),
	}
	if a := s.session.Ready(); a != nil {
		resp.Ready = a.Filename
	}
	writeJSON(w, http.StatusOK, resp)
}

// uploadResponse carries the placed object; its src is the proxy data URI.
type uploadResponse struct {
	ID             string                 `json:"id"`
	Width          int                    `json:"width"`
	Height         int                    `json:"height"`
	OriginalWidth  int                    `json:"originalWidth"`
	OriginalHeight int                    `json:"originalHeight"`
	Object         deskpad.DocumentObject `json:"object"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("empty upload"))
		return
	}

	obj, proxy, err := s.session.Upload(r.Context(), data)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	deskpad.Logger().Info("server: original uploaded",
		"id", proxy.ID,
		"bytes", humanize.Bytes(uint64(len(data))),
		"proxy", fmt.Sprintf("%dx%d", proxy.Width, proxy.Height))

	writeJSON(w, http.StatusCreated, uploadResponse{
		ID:             proxy.ID,
		Width:          proxy.Width,
		Height:         proxy.Height,
		OriginalWidth:  proxy.OriginalWidth,
		OriginalHeight: proxy.OriginalHeight,
		Object:         deskpad.DocumentObjectFor(obj, proxy.DataURI),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed := false
	for _, obj := range s.session.Canvas().Objects {
		if img, ok := obj.(*deskpad.ImageObject); ok && img.ImageID == id {
			if err := s.session.Delete(obj.Key()); err == nil {
				removed = true
			}
		}
	}
	if s.session.Registry().Remove(id) {
		removed = true
	}
	if !removed {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", deskpad.ErrResourceNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.session.Reset()
	w.WriteHeader(http.StatusNoContent)
}

type exportOutcome struct {
	res *deskpad.Result
	err error
}

// handleExport runs the export in the background. If it finishes within
// the busy timeout the artifact is the response; otherwise the client gets
// 202 and collects the artifact from /v1/export/ready.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	canvas := s.session.Canvas()
	if len(bytes.TrimSpace(body)) > 0 {
		doc, err := deskpad.ReadDocument(bytes.NewReader(body))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		c, err := doc.Canvas(s.loader, s.session.Registry())
		if err != nil {
			deskpad.Logger().Warn("server: document partially loaded", "err", err)
		}
		canvas = c
	}

	done := make(chan exportOutcome, 1)
	ctx := context.WithoutCancel(r.Context())
	go func() {
		defer func() {
			if v := recover(); v != nil {
				deskpad.Logger().Error("server: export panicked", "panic", v)
				done <- exportOutcome{err: fmt.Errorf("export panicked: %v", v)}
			}
		}()
		res, err := s.session.ExportCanvas(ctx, canvas)
		done <- exportOutcome{res, err}
	}()

	timer := time.NewTimer(s.cfg.BusyTimeout)
	defer timer.Stop()
	select {
	case out := <-done:
		if out.err != nil {
			writeError(w, statusOf(out.err), out.err)
			return
		}
		s.session.TakeReady()
		writeArtifact(w, out.res.Artifact, len(out.res.Dropped))
	case <-timer.C:
		deskpad.Logger().Warn("server: export still running, handing off",
			"timeout", s.cfg.BusyTimeout)
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "pending",
			"ready":  "/v1/export/ready",
		})
	}
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	a := s.session.TakeReady()
	if a == nil {
		if s.session.Busy() {
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
			return
		}
		writeError(w, http.StatusNotFound, errors.New("no export ready"))
		return
	}
	writeArtifact(w, a, 0)
}

func writeArtifact(w http.ResponseWriter, a *deskpad.Artifact, dropped int) {
	h := w.Header()
	h.Set("Content-Type", a.ContentType())
	h.Set("Content-Length", strconv.Itoa(len(a.Data)))
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	h.Set("X-Deskpad-Dropped", strconv.Itoa(dropped))
	w.WriteHeader(http.StatusOK)
	if _, err := a.WriteTo(w); err != nil {
		deskpad.Logger().Debug("server: write artifact", "file", a.Filename, "err", err)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, deskpad.ErrNothingToExport), errors.Is(err, deskpad.ErrInvalidCanvas):
		return http.StatusUnprocessableEntity
	case errors.Is(err, deskpad.ErrDecode):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, deskpad.ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		deskpad.Logger().Debug("server: write response", "status", code, "err", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
