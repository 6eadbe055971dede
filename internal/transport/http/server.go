package http

import (
	"log/slog"
	"net/http"
)

// NewServer создает HTTP-роутер с публичными страницами, API и панелью администратора.
// Все запросы проходят через recover, request id и логирование; к API добавляется CORS.
func NewServer(log *slog.Logger, h *Handler) http.Handler {
	mux := http.NewServeMux()

	api := corsMiddleware()
	mux.Handle("GET /api/news", api(http.HandlerFunc(h.getNews)))
	mux.Handle("GET /api/health", api(http.HandlerFunc(h.healthCheck)))
	mux.Handle("OPTIONS /api/", api(http.NotFoundHandler()))

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(staticFiles())))
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("POST /subscribe", h.subscribe)
	mux.HandleFunc("GET /unsubscribe/{token}", h.unsubscribe)

	mux.HandleFunc("GET /admin/login", h.loginPage)
	mux.HandleFunc("POST /admin/login", h.login)
	mux.HandleFunc("GET /admin/logout", h.logout)
	mux.HandleFunc("GET /admin", h.requireAdmin(h.dashboard))
	mux.HandleFunc("GET /admin/{$}", h.requireAdmin(h.dashboard))
	mux.HandleFunc("GET /admin/feeds", h.requireAdmin(h.feedsPage))
	mux.HandleFunc("POST /admin/feeds", h.requireAdmin(h.saveFeeds))
	mux.HandleFunc("POST /admin/remove-article", h.requireAdmin(h.removeArticle))
	mux.HandleFunc("POST /admin/refresh", h.requireAdmin(h.refresh))

	var handler http.Handler = mux
	handler = loggingMiddleware(log)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoverMiddleware(log)(handler)
	return handler
}
