// Package preview serves rendered notes over HTTP with live reload.
// Notes under the root are rendered on request, cached by content and
// settings, and browsers viewing a note reload when its file changes.
package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/speech-bubbles/pkg/buildinfo"
	"github.com/otherjamesbrown/speech-bubbles/pkg/cache"
	pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
	"github.com/otherjamesbrown/speech-bubbles/pkg/note"
	"github.com/otherjamesbrown/speech-bubbles/pkg/observability"
	"github.com/otherjamesbrown/speech-bubbles/pkg/render"
	"github.com/otherjamesbrown/speech-bubbles/pkg/renderpass"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
)

// ServiceName is reported by /version.
const ServiceName = "speech-bubbles"

// Route prefixes.
const (
	NotesPrefix = "/notes/"
	WSPath      = "/ws"
	StylePath   = "/static/speech-bubbles.css"
)

// Options configures a Server.
type Options struct {
	// Root is the directory notes are served from.
	Root string

	// Addr is the listen address for Run.
	Addr string

	// Settings is called on every render so edits to the settings file apply
	// without a restart. Nil uses settings.Default.
	Settings func() (settings.Settings, error)

	// Cache stores rendered output. Nil uses an in-process cache.
	Cache cache.Cache

	Metrics  *observability.RenderMetrics
	Gatherer prometheus.Gatherer
	Tracer   *observability.Tracer
	Logger   logging.Logger

	// Timeout bounds a single render.
	Timeout time.Duration
}

// Server is the preview HTTP server.
type Server struct {
	opts     Options
	cache    cache.Cache
	hub      *Hub
	router   chi.Router
	recorder *observability.MetricsRecorder
}

// NewServer creates a preview server.
func NewServer(opts Options) *Server {
	if opts.Settings == nil {
		opts.Settings = func() (settings.Settings, error) { return settings.Default(), nil }
	}
	if opts.Logger == nil {
		opts.Logger = logging.MustGlobal()
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.NewTracer()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	c := opts.Cache
	if c == nil {
		c = cache.NewMemory(cache.DefaultTTL)
	}

	srv := &Server{
		opts:     opts,
		cache:    cache.NewInstrumented(c, opts.Metrics, opts.Tracer),
		hub:      NewHub(opts.Metrics, opts.Logger),
		recorder: observability.NewMetricsRecorder(opts.Metrics, "serve"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(srv.instrument)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/notes", http.StatusFound)
	})
	r.Get("/healthz", srv.handleHealth)
	r.Get("/version", buildinfo.Handler(ServiceName))
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	r.Get(WSPath, srv.hub.ServeWS)
	r.Get(StylePath, srv.handleStylesheet)
	r.Get("/notes", srv.handleList)
	r.Get(NotesPrefix+"*", srv.handleNote)

	srv.router = r
	return srv
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the live reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves until ctx is done. It also runs the live reload hub and
// watches the notes root for changes.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.hub.Run(ctx)
	go func() {
		err := WatchNotes(ctx, s.opts.Root, func(rel string) {
			s.hub.Broadcast(ReloadEvent{Path: rel})
		}, s.opts.Logger)
		if err != nil {
			s.opts.Logger.Warn("Live reload disabled", logging.Err(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("Preview server listening",
			logging.F("addr", s.opts.Addr),
			logging.F("root", s.opts.Root),
			logging.F("cache", s.cache.Name()))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("preview server: %w", err)
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// instrument records request metrics and puts the request id on the context
// for logging.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := context.WithValue(r.Context(), logging.RequestIDKey, middleware.GetReqID(r.Context()))
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordHTTPRequest(route, strconv.Itoa(status))
		}
		s.opts.Logger.WithContext(ctx).Debug("Request served",
			logging.F("method", r.Method),
			logging.F("path", r.URL.Path),
			logging.F("status", status),
			logging.F("duration", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": ServiceName,
		"clients": s.hub.ClientCount(),
		"cache":   s.cache.Name(),
	})
}

func (s *Server) handleStylesheet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = io.WriteString(w, render.Stylesheet)
}

// NoteEntry is one item of the /notes listing.
type NoteEntry struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	notes, err := note.ScanNotes(s.opts.Root)
	if err != nil {
		s.writeError(w, r, pferrors.ClassifyError(err, "scan"))
		return
	}
	entries := make([]NoteEntry, 0, len(notes))
	for _, n := range notes {
		entries = append(entries, NoteEntry{Path: n, URL: NotesPrefix + n})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	format := render.FormatPage
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := render.ParseFormat(q)
		if err != nil {
			s.writeError(w, r, pferrors.ClassifyError(err, "request"))
			return
		}
		format = f
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	rel, file, err := s.resolve(chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, r, pferrors.ClassifyError(err, "request"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.Timeout)
	defer cancel()

	body, err := s.renderNote(ctx, rel, file, format, force)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	_, _ = w.Write(body)
}

// resolve maps a URL path to a note file under the root. Paths without an
// extension get ".md", matching how wiki links name notes.
func (s *Server) resolve(raw string) (string, string, error) {
	rel := strings.TrimPrefix(path.Clean("/"+raw), "/")
	if rel == "" || rel == "." {
		return "", "", fmt.Errorf("empty note path: %w", pferrors.ErrNotFound)
	}
	if path.Ext(rel) == "" {
		rel += ".md"
	}
	if !note.IsNoteFile(path.Base(rel)) {
		return "", "", fmt.Errorf("%s: %w", rel, pferrors.ErrNotFound)
	}
	return rel, filepath.Join(s.opts.Root, filepath.FromSlash(rel)), nil
}

// renderNote returns the rendered bytes for a note, consulting the cache.
// Errors are returned as *errors.RenderError.
func (s *Server) renderNote(ctx context.Context, rel, file string, format render.Format, force bool) ([]byte, error) {
	log := s.opts.Logger.WithContext(ctx).With(logging.F("note", rel))

	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("%s: %w", rel, pferrors.ErrNotFound)
		}
		return nil, pferrors.ClassifyError(err, "load")
	}

	st, err := s.opts.Settings()
	if err != nil {
		return nil, pferrors.ClassifyError(err, "settings")
	}

	variant := string(format)
	if force {
		variant += "+force"
	}
	key := cache.Key(variant, rel, data, st)

	cached, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		return cached, nil
	case !pferrors.IsCacheMiss(err):
		log.Warn("Cache lookup failed, rendering", logging.Err(err))
	}

	doc, err := note.Parse(rel, data)
	if err != nil {
		return nil, pferrors.ClassifyError(err, "parse")
	}

	opts := []renderpass.Option{
		renderpass.WithLogger(s.opts.Logger),
		renderpass.WithTracer(s.opts.Tracer),
		renderpass.WithMetrics(s.recorder),
	}
	if force {
		opts = append(opts, renderpass.WithForce())
	}
	result, err := renderpass.Run(ctx, doc, st, opts...)
	if err != nil {
		return nil, pferrors.ClassifyError(err, "render")
	}

	body, err := s.write(ctx, format, result, st)
	if err != nil {
		return nil, pferrors.ClassifyError(err, "output")
	}

	if err := s.cache.Set(ctx, key, body); err != nil {
		log.Warn("Cache store failed", logging.Err(err))
	}
	return body, nil
}

func (s *Server) write(ctx context.Context, format render.Format, result *renderpass.Result, st settings.Settings) ([]byte, error) {
	_, span := s.opts.Tracer.StartOutputSpan(ctx, string(format))
	defer span.End()
	start := time.Now()

	var buf bytes.Buffer
	err := render.Write(&buf, format, result, st, render.WriteOptions{
		Page:     render.PageOptions{LiveReloadURL: WSPath},
		HTML:     []render.HTMLOption{render.WithLinkBase(NotesPrefix)},
		Terminal: []render.TerminalOption{render.WithWidth(render.DefaultTerminalWidth), render.WithMarkdown(false)},
	})
	if err != nil {
		observability.NewSpanHelper(span).SetError(err, string(pferrors.ErrCodeRenderFailed), false)
		return nil, err
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordOutput(string(format), time.Since(start).Seconds())
	}
	return buf.Bytes(), nil
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Code            pferrors.ErrorCode `json:"code"`
	Message         string             `json:"message"`
	Retryable       bool               `json:"retryable"`
	SuggestedAction string             `json:"suggested_action,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var re *pferrors.RenderError
	if !errors.As(err, &re) {
		re = pferrors.ClassifyError(err, "serve")
	}
	status := pferrors.HTTPStatus(re.Code)
	if status >= http.StatusInternalServerError {
		s.opts.Logger.WithContext(r.Context()).Error("Request failed",
			logging.F("path", r.URL.Path),
			logging.F("code", string(re.Code)),
			logging.Err(err))
	}
	writeJSON(w, status, ErrorResponse{
		Code:            re.Code,
		Message:         re.Message,
		Retryable:       pferrors.IsRetryable(re.Code),
		SuggestedAction: pferrors.GetSuggestedAction(re.Code),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
