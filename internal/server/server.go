// Package server exposes the crosstalk pipeline over HTTP.
//
// It is deliberately thin glue: it reads raw bytes in, hands them to the
// pipeline, and writes the final container (or a structured error) back out.
// It also serves the health, metrics, and swagger endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/crosstalk/docs"
	"github.com/nadzzz/crosstalk/internal/config"
	"github.com/nadzzz/crosstalk/internal/metrics"
	"github.com/nadzzz/crosstalk/internal/pipeline"
)

// Runner is the pipeline surface the server drives.
type Runner interface {
	Run(ctx context.Context, audio []byte) (*pipeline.Result, error)
	RunText(ctx context.Context, text string) (*pipeline.Result, error)
}

// errorResponse is the structured failure payload.
type errorResponse struct {
	Error string `json:"error"`
}

// Server is the crosstalk HTTP server.
type Server struct {
	port         int
	maxBodyBytes int64
	runner       Runner
	metrics      *metrics.Metrics // nil disables instrumentation
	ready        atomic.Bool
	server       *http.Server
}

// New creates a Server for the given pipeline runner. m may be nil.
func New(cfg config.ServerConfig, runner Runner, m *metrics.Metrics) *Server {
	return &Server{
		port:         cfg.Port,
		maxBodyBytes: cfg.MaxBodyBytes,
		runner:       runner,
		metrics:      m,
	}
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /translate/speech", s.instrument("/translate/speech", s.handleSpeech))
	mux.HandleFunc("POST /translate/text", s.instrument("/translate/text", s.handleText))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return mux
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		slog.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (s *Server) Close() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleSpeech processes an audio-in / audio-out request.
//
// @Summary     Translate spoken audio
// @Description Accepts raw audio bytes in the source language, runs the full
// @Description conditioning → recognition → translation → synthesis pipeline,
// @Description and returns synthesized speech in the target language.
// @Tags        translate
// @Accept      octet-stream
// @Produce     audio/wav
// @Produce     json
// @Success     200  {file}    binary  "Synthesized speech (WAV)"
// @Failure     400  {object}  errorResponse
// @Failure     413  {object}  errorResponse
// @Failure     500  {object}  errorResponse
// @Router      /translate/speech [post]
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	audio, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, bodyErrorStatus(err), fmt.Errorf("reading audio: %w", err))
		return
	}

	res, err := s.runner.Run(r.Context(), audio)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeAudio(w, res)
}

// handleText processes a text-in / audio-out request.
//
// @Summary     Translate text to spoken audio
// @Description Accepts plain text in the source language and returns
// @Description synthesized speech in the target language.
// @Tags        translate
// @Accept      plain
// @Produce     audio/wav
// @Produce     json
// @Success     200  {file}    binary  "Synthesized speech (WAV)"
// @Failure     400  {object}  errorResponse
// @Failure     413  {object}  errorResponse
// @Failure     500  {object}  errorResponse
// @Router      /translate/text [post]
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	text, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, bodyErrorStatus(err), fmt.Errorf("reading text: %w", err))
		return
	}

	res, err := s.runner.RunText(r.Context(), string(text))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeAudio(w, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeAudio sends the final container with an exact content length.
func (s *Server) writeAudio(w http.ResponseWriter, res *pipeline.Result) {
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Audio)))
	w.Header().Set("X-Crosstalk-Transcript", res.Transcript)
	w.Header().Set("X-Crosstalk-Translation", res.Translation)
	_, _ = w.Write(res.Audio)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

// readBody reads a request body bounded by the configured limit. A body over
// the limit is an error, never a silently truncated prefix.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
}

// bodyErrorStatus distinguishes an over-limit body from other read failures.
func bodyErrorStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// statusFor maps pipeline failures onto HTTP statuses: caller mistakes are
// 400, everything downstream is 500.
func statusFor(err error) int {
	if errors.Is(err, pipeline.ErrEmptyInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// instrument wraps a handler with request counting and timing.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
