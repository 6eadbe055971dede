package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"brightside/internal/domain"
	"brightside/internal/usecase"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

type newsGetter interface {
	GetNews(ctx context.Context, q usecase.Query) ([]domain.Item, error)
	Snapshot(ctx context.Context) *domain.Snapshot
	Cached() *domain.Snapshot
	Select(snap *domain.Snapshot, q usecase.Query) []domain.Item
}

type moderator interface {
	ActiveSources(ctx context.Context) ([]domain.FeedSource, error)
	SetFeeds(ctx context.Context, urls []string) ([]domain.FeedSource, error)
	RemoveArticle(ctx context.Context, link string) (bool, error)
}

type subscriptions interface {
	Subscribe(ctx context.Context, email string) (usecase.SubscribeOutcome, error)
	Unsubscribe(ctx context.Context, token string) error
}

type scheduler interface {
	Trigger() bool
}

// Deps - зависимости обработчиков. Scheduler может быть nil.
type Deps struct {
	News          newsGetter
	Moderation    moderator
	Subscriptions subscriptions
	Refresher     usecase.Refresher
	Scheduler     scheduler
}

// Options - настройки обработчиков.
type Options struct {
	AdminUser     string
	AdminPass     string
	SessionSecret string
	SecureCookie  bool
	Categories    []string
	Regions       []string
}

type Handler struct {
	log      *slog.Logger
	deps     Deps
	opts     Options
	sessions *sessions.CookieStore
	now      func() time.Time
}

// NewHandler создает обработчики. Без SessionSecret ключ подписи генерируется
// случайно, и сессии не переживают перезапуск.
func NewHandler(log *slog.Logger, deps Deps, opts Options) *Handler {
	secret := []byte(opts.SessionSecret)
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/admin",
		MaxAge:   int(sessionLifetime / time.Second),
		HttpOnly: true,
		Secure:   opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(store.Options.MaxAge)
	return &Handler{
		log:      log.With(slog.String("component", "http")),
		deps:     deps,
		opts:     opts,
		sessions: store,
		now:      time.Now,
	}
}

// index - главная страница со списком позитивных новостей.
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	q := usecase.Query{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Region:   strings.TrimSpace(r.URL.Query().Get("region")),
	}
	snap := h.deps.News.Snapshot(r.Context())
	h.render(w, r, http.StatusOK, "index", page{
		Title:      "Positive news",
		Items:      h.deps.News.Select(snap, q),
		FetchedAt:  snap.FetchedAt,
		Categories: h.opts.Categories,
		Regions:    h.opts.Regions,
		Category:   q.Category,
		Region:     q.Region,
	})
}

// getNews - хендлер для эндпоинта GET /api/news
func (h *Handler) getNews(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/getNews"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
	)
	q := usecase.Query{
		Category: r.URL.Query().Get("category"),
		Region:   r.URL.Query().Get("region"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			log.Warn("invalid limit parameter", slog.String("limit", limitStr))
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		q.Limit = limit
	}

	news, err := h.deps.News.GetNews(r.Context(), q)
	if err != nil {
		log.Error("Failed to get news", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	respondWithJSON(w, http.StatusOK, news)
}

// healthCheck - хендлер для проверки состояния сервиса
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	snap := h.deps.News.Cached()
	resp := map[string]any{
		"status": "ok",
		"items":  len(snap.Items),
	}
	if !snap.FetchedAt.IsZero() {
		resp["fetched_at"] = snap.FetchedAt.UTC().Format(time.RFC3339)
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.deps.Subscriptions.Subscribe(r.Context(), r.PostFormValue("email"))
	switch {
	case errors.Is(err, usecase.ErrInvalidEmail):
		h.render(w, r, http.StatusBadRequest, "message", page{Title: "Subscribe", Message: "Please enter a valid email address."})
		return
	case err != nil:
		h.log.Error("Failed to subscribe", slog.Any("error", err))
		h.render(w, r, http.StatusInternalServerError, "message", page{Title: "Subscribe", Message: "Something went wrong. Please try again later."})
		return
	}
	msg := "Thanks for subscribing!"
	switch outcome {
	case usecase.Reactivated:
		msg = "Welcome back! Your subscription is active again."
	case usecase.AlreadySubscribed:
		msg = "You are already subscribed."
	}
	h.render(w, r, http.StatusOK, "message", page{Title: "Subscribe", Message: msg})
}

func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Subscriptions.Unsubscribe(r.Context(), r.PathValue("token"))
	switch {
	case errors.Is(err, usecase.ErrUnknownToken):
		h.render(w, r, http.StatusNotFound, "message", page{Title: "Unsubscribe", Message: "This unsubscribe link is not valid."})
	case err != nil:
		h.log.Error("Failed to unsubscribe", slog.Any("error", err))
		h.render(w, r, http.StatusInternalServerError, "message", page{Title: "Unsubscribe", Message: "Something went wrong. Please try again later."})
	default:
		h.render(w, r, http.StatusOK, "message", page{Title: "Unsubscribe", Message: "You have been unsubscribed."})
	}
}

// Вспомогательные функции для ответов
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
