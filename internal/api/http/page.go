package apihttp

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
)

//go:embed templates/index.html
var templateFS embed.FS

const descriptionExcerptLength = 250

var indexTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"available": domain.IsAvailable,
	"excerpt":   excerpt,
}).ParseFS(templateFS, "templates/index.html"))

type indexView struct {
	Query       string
	KeywordMode bool
	Total       int64
	CountKnown  bool
	Problem     string
	Response    *domain.SearchResponse
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	view := indexView{
		Query:       strings.TrimSpace(r.URL.Query().Get("q")),
		KeywordMode: strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("mode")), string(domain.SearchModeKeyword)),
	}
	if total, err := s.search.Count(r.Context()); err == nil {
		view.Total = total
		view.CountKnown = true
	} else {
		s.logger.Warn("catalog count failed", slog.String("error", err.Error()))
	}

	if r.URL.Query().Has("q") {
		request, code, message := parseSearchRequest(r)
		if code != "" {
			view.Problem = message
		} else {
			response := s.search.Search(r.Context(), request)
			view.Response = &response
		}
	}

	var body bytes.Buffer
	if err := indexTemplate.Execute(&body, view); err != nil {
		s.logger.Error("render index failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body.Bytes())
}

// excerpt cuts on rune boundaries.
func excerpt(value string) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= descriptionExcerptLength {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:descriptionExcerptLength])) + "..."
}
