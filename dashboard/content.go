package dashboard

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	memoryFile       = "memory_notepad.md"
	instructionsFile = ".github/copilot-instructions.md"
	reposDir         = "repo_analysis"
)

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	s.serveTextFile(w, r, "Memory", filepath.Join(s.root, memoryFile), "memory not found")
}

func (s *Server) handleInstructions(w http.ResponseWriter, r *http.Request) {
	s.serveTextFile(w, r, "Instructions", filepath.Join(s.root, filepath.FromSlash(instructionsFile)), "instructions not found")
}

// serveTextFile returns a file as text/plain, recording start, completion
// and failure in the application log. Any read failure is a 404.
func (s *Server) serveTextFile(w http.ResponseWriter, r *http.Request, label, path, notFound string) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := s.now()
	s.logs.Info(label+" request started", nil)

	content, err := os.ReadFile(path)
	if err != nil {
		s.logs.Error(label+" request failed", map[string]any{
			"error":    err.Error(),
			"duration": s.elapsed(start),
		})
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(notFound))
		return
	}

	s.logs.Info(label+" request completed", map[string]any{
		"duration":      s.elapsed(start),
		"contentLength": len(content),
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(content)
}

// handleRepos lists the non-hidden subdirectories of repo_analysis, sorted.
func (s *Server) handleRepos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := s.now()
	s.logs.Info("Repository listing request started", nil)

	entries, err := os.ReadDir(filepath.Join(s.root, reposDir))
	if err != nil {
		s.logs.Error("Repository listing failed", map[string]any{
			"error":    err.Error(),
			"duration": s.elapsed(start),
		})
		writeJSONError(w, "Repository listing failed", http.StatusInternalServerError)
		return
	}

	repos := []string{}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		repos = append(repos, e.Name())
	}
	sort.Strings(repos)

	s.logs.Info("Repository listing completed", map[string]any{
		"duration":  s.elapsed(start),
		"repoCount": len(repos),
	})
	writeJSON(w, http.StatusOK, repos)
}

func (s *Server) elapsed(start time.Time) string {
	return fmt.Sprintf("%dms", s.now().Sub(start).Milliseconds())
}
