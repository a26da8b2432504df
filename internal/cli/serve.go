package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	errs "github.com/matzehuels/fibertree/pkg/errors"
	"github.com/matzehuels/fibertree/pkg/fibertree"
	ftio "github.com/matzehuels/fibertree/pkg/io"
	"github.com/matzehuels/fibertree/pkg/metrics"
	"github.com/matzehuels/fibertree/pkg/observability"
	"github.com/matzehuels/fibertree/pkg/pipeline"
)

const (
	// maxRequestBytes bounds request bodies.
	maxRequestBytes = 8 << 20

	// shutdownTimeout bounds graceful shutdown of serve.
	shutdownTimeout = 10 * time.Second
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve kernels over HTTP",
		Long: `Serve kernels over HTTP.

Endpoints:
  GET  /healthz     liveness probe
  POST /v1/run      {"op", "inputs": [yaml, yaml], "trace": [rank ids], "trace_dir"}
  POST /v1/render   {"tensor": yaml, "format", "hide_values", "rankdir"}

Trace directories are relative to the configured trace dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := c.newRunner(ctx)
			if err != nil {
				return err
			}
			defer runner.Close()

			srv := &http.Server{
				Addr:              addr,
				Handler:           newServer(runner, c.Logger, c.Config.Trace.Dir),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serve(ctx, srv, c.Logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "listen address")
	return cmd
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// server handles the HTTP API.
type server struct {
	runner    *pipeline.Runner
	logger    *log.Logger
	traceRoot string
}

// newServer builds the API router.
func newServer(runner *pipeline.Runner, logger *log.Logger, traceRoot string) http.Handler {
	s := &server{runner: runner, logger: logger, traceRoot: traceRoot}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/run", s.handleRun)
		r.Post("/render", s.handleRender)
	})
	return r
}

// observe logs each request and reports it to the HTTP hooks.
func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, ww.Status(), elapsed)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runRequest is the body of POST /v1/run.
type runRequest struct {
	Op       string   `json:"op"`
	Inputs   []string `json:"inputs"`
	Trace    []string `json:"trace,omitempty"`
	TraceDir string   `json:"trace_dir,omitempty"`
	Refresh  bool     `json:"refresh,omitempty"`
	Name     string   `json:"name,omitempty"`
}

// runResponse is the body of a successful POST /v1/run.
type runResponse struct {
	RunID      string       `json:"run_id"`
	Output     string       `json:"output"`
	Metrics    metrics.Dump `json:"metrics"`
	Values     int          `json:"values"`
	CacheHit   bool         `json:"cache_hit"`
	TraceDir   string       `json:"trace_dir,omitempty"`
	DurationMS int64        `json:"duration_ms"`
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	traceDir := ""
	if req.TraceDir != "" {
		if err := errs.ValidateTracePath(req.TraceDir); err != nil {
			s.writeError(w, r, err)
			return
		}
		traceDir = filepath.Join(s.traceRoot, req.TraceDir)
	}

	inputs := make([]*fibertree.Tensor, len(req.Inputs))
	for i, doc := range req.Inputs {
		t, err := ftio.ReadYAML(strings.NewReader(doc))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		inputs[i] = t
	}

	res, err := s.runner.Execute(r.Context(), pipeline.Options{
		Op:        req.Op,
		Inputs:    inputs,
		Trace:     req.Trace,
		TraceDir:  traceDir,
		TraceRoot: s.traceRoot,
		Refresh:   req.Refresh,
		Name:      req.Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var out strings.Builder
	if err := ftio.WriteYAML(res.Output, &out); err != nil {
		s.writeError(w, r, errs.Wrap(errs.ErrCodeInternal, err, "encode output"))
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		RunID:      res.RunID,
		Output:     out.String(),
		Metrics:    res.Metrics,
		Values:     res.Stats.Values,
		CacheHit:   res.CacheHit,
		TraceDir:   res.TraceDir,
		DurationMS: res.Stats.Duration.Milliseconds(),
	})
}

// renderRequest is the body of POST /v1/render.
type renderRequest struct {
	Tensor     string `json:"tensor"`
	Format     string `json:"format,omitempty"`
	HideValues bool   `json:"hide_values,omitempty"`
	RankDir    string `json:"rankdir,omitempty"`
}

var contentTypes = map[string]string{
	pipeline.FormatDOT: "text/vnd.graphviz",
	pipeline.FormatSVG: "image/svg+xml",
	pipeline.FormatPNG: "image/png",
}

func (s *server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Format == "" {
		req.Format = pipeline.FormatSVG
	}
	if err := pipeline.ValidateFormat(req.Format); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := ftio.ReadYAML(strings.NewReader(req.Tensor))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, cached, err := s.runner.Render(r.Context(), t, pipeline.RenderOptions{
		Format:     req.Format,
		HideValues: req.HideValues,
		RankDir:    req.RankDir,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[req.Format])
	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// =============================================================================
// Helpers
// =============================================================================

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "decode request")
	}
	return nil
}

// statusCode maps error codes to HTTP status codes.
func statusCode(err error) int {
	switch errs.GetCode(err) {
	case errs.ErrCodeInvalidInput, errs.ErrCodeInvalidYAML, errs.ErrCodeInvalidOp,
		errs.ErrCodeInvalidRankID, errs.ErrCodeInvalidConfig, errs.ErrCodeUnsupported:
		return http.StatusBadRequest
	case errs.ErrCodeNotFound, errs.ErrCodeFileNotFound:
		return http.StatusNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusCode(err)
	code := string(errs.GetCode(err))
	if code == "" {
		code = string(errs.ErrCodeInternal)
	}
	observability.HTTP().OnError(r.Context(), r.Method, r.URL.Path, err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: errs.UserMessage(err), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
