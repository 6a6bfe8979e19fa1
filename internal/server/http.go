package server

import (
	"context"
	"encoding/json"
	"math"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/coffersTech/nanotail/internal/engine"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

const defaultHistogramInterval = 60 // seconds

type logsResponse struct {
	Events []engine.Event `json:"events"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Options configures a LogServer.
type Options struct {
	LogDir         string // directory {filename} is resolved against
	WebDir         string // optional static files served at /
	DefaultCount   int    // applied when a request omits count
	RequestTimeout time.Duration
	Gzip           bool
	Logger         *slog.Logger
}

// LogServer exposes a QueryEngine over HTTP.
type LogServer struct {
	queryEngine  *engine.QueryEngine
	logDir       string
	webDir       string
	defaultCount int
	timeout      time.Duration
	gzip         bool
	logger       *slog.Logger
	srv          *http.Server
	arenas       fastjson.ArenaPool
}

// NewLogServer creates a LogServer answering queries through qe.
func NewLogServer(qe *engine.QueryEngine, opts Options) *LogServer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LogServer{
		queryEngine:  qe,
		logDir:       opts.LogDir,
		webDir:       opts.WebDir,
		defaultCount: opts.DefaultCount,
		timeout:      opts.RequestTimeout,
		gzip:         opts.Gzip,
		logger:       logger,
	}
}

// Handler returns the routed, middleware-wrapped HTTP handler.
func (s *LogServer) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/logs/{filename}", s.handleLogs).Methods(http.MethodGet)
	r.HandleFunc("/logs/{filename}/histogram", s.handleHistogram).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)

	// Static dashboard
	if s.webDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.webDir))).Methods(http.MethodGet)
	}

	var h http.Handler = r
	if s.gzip {
		h = gzhttp.GzipHandler(h)
	}
	return s.withRequestLog(h)
}

// Start runs the HTTP server.
func (s *LogServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *LogServer) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// handleLogs processes GET /logs/{filename}?count=N&filter=P requests.
func (s *LogServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	events, err := s.queryEngine.Execute(ctx, q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, logsResponse{Events: events})
}

// handleHistogram processes GET /logs/{filename}/histogram requests.
func (s *LogServer) handleHistogram(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	interval := defaultHistogramInterval
	if v := r.URL.Query(); v.Has("interval") {
		n, err := strconv.Atoi(v.Get("interval"))
		if err != nil || n <= 0 || int64(n) > math.MaxInt64/int64(time.Second) {
			s.writeError(w, r, invalidArgument("interval", "interval must be a positive number of seconds within range"))
			return
		}
		interval = n
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	events, err := s.queryEngine.Execute(ctx, q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hist, err := engine.ComputeHistogram(events, time.Duration(interval)*time.Second)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	a := s.arenas.Get()
	defer s.arenas.Put(a)

	points := a.NewArray()
	for i, p := range hist.Points {
		obj := a.NewObject()
		obj.Set("time", int64Value(a, p.Time))
		obj.Set("count", a.NewNumberInt(p.Count))
		points.SetArrayItem(i, obj)
	}
	body := a.NewObject()
	body.Set("points", points)
	body.Set("untimed", a.NewNumberInt(hist.Untimed))
	s.writeArena(w, r, http.StatusOK, body)
}

// handleStats returns cumulative query statistics.
func (s *LogServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.queryEngine.GetStats()

	a := s.arenas.Get()
	defer s.arenas.Put(a)

	failures := a.NewObject()
	for kind, n := range stats.Failures {
		failures.Set(kind, int64Value(a, n))
	}
	body := a.NewObject()
	body.Set("queries", int64Value(a, stats.Queries))
	body.Set("events", int64Value(a, stats.Events))
	body.Set("chunks", int64Value(a, stats.Chunks))
	body.Set("bytes_read", int64Value(a, stats.BytesRead))
	body.Set("failures", failures)
	s.writeArena(w, r, http.StatusOK, body)
}

// parseQuery translates path and query parameters into an engine.Query.
func (s *LogServer) parseQuery(r *http.Request) (engine.Query, error) {
	path, err := s.resolve(mux.Vars(r)["filename"])
	if err != nil {
		return engine.Query{}, err
	}

	params := r.URL.Query()

	// count is optional
	count := s.defaultCount
	if params.Has("count") {
		n, err := strconv.Atoi(params.Get("count"))
		if err != nil || n < 0 {
			return engine.Query{}, invalidArgument("count", "count must be a non-negative integer")
		}
		count = n
	}

	// filter is optional; present but empty matches every line
	var filter *string
	if params.Has("filter") {
		f := params.Get("filter")
		filter = &f
	}

	return engine.Query{Path: path, Count: count, Filter: filter}, nil
}

// resolve maps a single path element onto the log directory.
func (s *LogServer) resolve(filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, "/\\\x00") {
		return "", &engine.Error{
			Kind: engine.KindInvalidArgument,
			Op:   "filename",
			Path: filename,
			Err:  errors.New("filename must be a single path element"),
		}
	}
	return filepath.Join(s.logDir, filename), nil
}

func (s *LogServer) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(r.Context(), s.timeout)
	}
	return context.WithCancel(r.Context())
}

// statusFor maps every error kind to exactly one status and code.
func statusFor(kind engine.Kind) (int, string) {
	switch kind {
	case engine.KindNotFound:
		return http.StatusNotFound, "ENOENT"
	case engine.KindInvalidArgument:
		return http.StatusBadRequest, "EINVAL"
	default:
		return http.StatusInternalServerError, "EIO"
	}
}

func (s *LogServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(engine.KindOf(err))

	logger := loggerFrom(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("query failed", "error", err)
	} else {
		logger.Debug("query rejected", "code", code, "error", err)
	}

	s.writeJSON(w, r, status, errorResponse{Code: code, Message: err.Error()})
}

// writeJSON encodes bodies carrying arbitrary text (log lines, error messages).
func (s *LogServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFrom(r.Context(), s.logger).Warn("response write failed", "error", err)
	}
}

// writeArena writes numeric bodies built on a pooled arena. Arena strings
// must be fixed ASCII: fastjson does not escape control bytes as JSON.
func (s *LogServer) writeArena(w http.ResponseWriter, r *http.Request, status int, v *fastjson.Value) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(v.MarshalTo(nil)); err != nil {
		loggerFrom(r.Context(), s.logger).Warn("response write failed", "error", err)
	}
}

func int64Value(a *fastjson.Arena, n int64) *fastjson.Value {
	return a.NewNumberString(strconv.FormatInt(n, 10))
}

func invalidArgument(op, msg string) error {
	return &engine.Error{Kind: engine.KindInvalidArgument, Op: op, Err: errors.New(msg)}
}
