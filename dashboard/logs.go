package dashboard

import (
	"fmt"
	"net/http"
	"time"

	"github.com/auditmos/devdash/applog"
	"github.com/auditmos/devdash/logging"
)

type LogRotation struct {
	Enabled      bool         `json:"enabled"`
	MaxDays      int          `json:"maxDays"`
	MaxFileSize  string       `json:"maxFileSize"`
	CurrentStats applog.Stats `json:"currentStats"`
}

type LogStatusResponse struct {
	Status      string      `json:"status"`
	LogRotation LogRotation `json:"logRotation"`
	Timestamp   string      `json:"timestamp"`
}

type CleanupResponse struct {
	Message string       `json:"message"`
	Stats   applog.Stats `json:"stats"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleLogStats(w, r)
	case http.MethodPost:
		s.handleLogCleanup(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.logs.Stats()
	s.logs.Info("Log stats requested", map[string]any{
		"fileCount": stats.FileCount,
		"totalSize": stats.TotalSize,
	})

	writeJSON(w, http.StatusOK, LogStatusResponse{
		Status: "healthy",
		LogRotation: LogRotation{
			Enabled:      s.logs.Enabled(),
			MaxDays:      retentionDays(s.logs.Retention()),
			MaxFileSize:  formatLimit(s.logs.MaxFileSize()),
			CurrentStats: stats,
		},
		Timestamp: s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}

func (s *Server) handleLogCleanup(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil {
		if ok, retryAfter := s.limiter.Allow(clientIP(r)); !ok {
			s.logger.WithFields(logging.Fields{"remote": clientIP(r), "retry_after": retryAfter}).
				Warn(component, "cleanup", "Cleanup rate limited")
			WriteRateLimitExceeded(w, retryAfter)
			return
		}
	}

	res := s.logs.Cleanup()
	stats := s.logs.Stats()
	s.logs.Info("Manual log cleanup completed", map[string]any{
		"remainingFiles": stats.FileCount,
		"deletedFiles":   len(res.Deleted),
	})

	writeJSON(w, http.StatusOK, CleanupResponse{
		Message: "Cleanup completed",
		Stats:   stats,
	})
}

// formatLimit renders a byte threshold the way the status endpoint reports
// it: whole mebibytes as "10MB", anything else with two decimals.
func formatLimit(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return applog.FormatMB(n)
}

func retentionDays(d time.Duration) int {
	return int(d / (24 * time.Hour))
}
