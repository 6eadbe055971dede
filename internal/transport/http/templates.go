package http

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brightside/internal/domain"
)

//go:embed web/templates/*.html
var templateFS embed.FS

//go:embed web/static
var staticFS embed.FS

var templates = template.Must(template.New("brightside").Funcs(template.FuncMap{
	"datetime": formatDateTime,
	"host":     hostOf,
}).ParseFS(templateFS, "web/templates/*.html"))

func staticFiles() http.FileSystem {
	sub, err := fs.Sub(staticFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

type flashMessage struct {
	Kind string
	Text string
}

// page - данные для всех HTML-шаблонов.
type page struct {
	Title      string
	Admin      bool
	Flashes    []flashMessage
	Year       int
	Message    string
	Items      []domain.Item
	Sources    []domain.SourceStatus
	FetchedAt  time.Time
	Categories []string
	Regions    []string
	Category   string
	Region     string
	FeedsText  string
}

// render выполняет шаблон в буфер, чтобы ошибка шаблона не оставила
// клиенту половину страницы.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	p.Year = h.now().Year()
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, p); err != nil {
		h.log.Error("Failed to render template",
			slog.String("template", name),
			slog.String("request_id", getRequestID(r.Context())),
			slog.Any("error", err),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("02 Jan 2006 15:04 MST")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
