package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/auditmos/devdash/applog"
	"github.com/auditmos/devdash/logging"
	"github.com/oklog/ulid/v2"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

const component = "dashboard"

// LogStore is the application log the handlers write to and report on.
// *applog.Manager satisfies it.
type LogStore interface {
	Info(msg string, ctx map[string]any)
	Warn(msg string, ctx map[string]any)
	Error(msg string, ctx map[string]any)
	Cleanup() applog.SweepResult
	Stats() applog.Stats
	Dir() string
	Enabled() bool
	MaxFileSize() int64
	Retention() time.Duration
}

type ServerConfig struct {
	Addr string
	// Root is the directory holding memory_notepad.md, .github/ and repo_analysis/.
	Root          string
	Logs          LogStore
	Logger        logging.Logger
	Feed          *StatsFeed
	CleanupPerMin int
	OverridesDir  string
	Now           func() time.Time
}

type Server struct {
	addr       string
	root       string
	logs       LogStore
	logger     logging.Logger
	feed       *StatsFeed
	limiter    *RateLimiter
	templates  *template.Template
	now        func() time.Time
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	onReady  func()
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Logs == nil {
		return nil, fmt.Errorf("log store is required")
	}
	root := cfg.Root
	if root == "" {
		root = "."
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		addr:   cfg.Addr,
		root:   root,
		logs:   cfg.Logs,
		logger: logger,
		feed:   cfg.Feed,
		now:    now,
	}
	if cfg.CleanupPerMin > 0 {
		s.limiter = NewRateLimiter(cfg.CleanupPerMin)
	}

	tmpl, err := loadTemplates(cfg.OverridesDir)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	s.templates = tmpl

	return s, nil
}

// loadTemplates prefers *.html files from overridesDir when it exists and
// falls back to the embedded set.
func loadTemplates(overridesDir string) (*template.Template, error) {
	var src fs.FS = embeddedTemplates
	dir := "templates"
	if overridesDir != "" {
		if info, err := os.Stat(overridesDir); err == nil && info.IsDir() {
			src = os.DirFS(overridesDir)
			dir = "."
		}
	}

	tmpl := template.New("").Funcs(template.FuncMap{"lower": strings.ToLower})
	entries, err := fs.ReadDir(src, dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		content, err := fs.ReadFile(src, filepath.ToSlash(filepath.Join(dir, entry.Name())))
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(entry.Name(), ".html")
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
	}
	if tmpl.Lookup("layout") == nil {
		return nil, fmt.Errorf("layout template missing")
	}
	return tmpl, nil
}

func (s *Server) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/memory", s.handleMemory)
	mux.HandleFunc("/api/instructions", s.handleInstructions)
	mux.HandleFunc("/api/repos", s.handleRepos)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/api/logs/live", s.handleLogsLive)
	return mux
}

func (s *Server) handler() http.Handler {
	return s.withRequestID(s.buildMux())
}

// withRequestID tags each request with a ULID, echoed in X-Request-Id and
// used as the diagnostics trace ID.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		w.Header().Set("X-Request-Id", id)
		s.logger.WithTraceID(id).WithFields(logging.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"remote": clientIP(r),
		}).Info(component, "api", "Request received")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) SetReadyCallback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReady = fn
}

// Addr is the bound listen address once Start is running, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = ln
	onReady := s.onReady
	s.mu.Unlock()

	s.logger.WithFields(logging.Fields{"addr": ln.Addr().String()}).
		Info(component, "start", "Dashboard started")
	if onReady != nil {
		onReady()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info(component, "stop", "Dashboard shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

type IndexData struct {
	LoggingEnabled bool
	MaxFileSize    string
	MaxDays        int
	Generated      string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := IndexData{
		LoggingEnabled: s.logs.Enabled(),
		MaxFileSize:    formatLimit(s.logs.MaxFileSize()),
		MaxDays:        retentionDays(s.logs.Retention()),
		Generated:      s.now().Format("15:04:05"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.WithError(err).Error(component, "render", "Template execution failed")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
