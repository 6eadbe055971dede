package http

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"brightside/internal/usecase"

	"github.com/gorilla/sessions"
)

const (
	sessionName     = "brightside-admin"
	sessionAuthKey  = "authenticated"
	sessionLifetime = time.Hour
)

func (h *Handler) session(r *http.Request) *sessions.Session {
	// Ошибка означает поврежденную или чужую куку; в этом случае
	// возвращается новая пустая сессия.
	s, _ := h.sessions.Get(r, sessionName)
	return s
}

func (h *Handler) authenticated(r *http.Request) bool {
	ok, _ := h.session(r).Values[sessionAuthKey].(bool)
	return ok
}

// checkCredentials сравнивает учетные данные за постоянное время.
func (h *Handler) checkCredentials(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.opts.AdminUser))
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.opts.AdminPass))
	return userOK&passOK == 1
}

// requireAdmin пропускает запрос только с действующей сессией администратора,
// иначе перенаправляет на страницу входа.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.authenticated(r) {
			h.log.Warn("Unauthenticated admin request",
				slog.String("path", r.URL.Path),
				slog.String("request_id", getRequestID(r.Context())),
			)
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// flash сохраняет сообщение для следующей страницы.
func (h *Handler) flash(w http.ResponseWriter, r *http.Request, kind, text string) {
	s := h.session(r)
	s.AddFlash(kind + ":" + text)
	if err := s.Save(r, w); err != nil {
		h.log.Error("Failed to save session", slog.Any("error", err))
	}
}

func (h *Handler) takeFlashes(w http.ResponseWriter, r *http.Request) []flashMessage {
	s := h.session(r)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := s.Save(r, w); err != nil {
		h.log.Error("Failed to save session", slog.Any("error", err))
	}
	out := make([]flashMessage, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue
		}
		kind, text, _ := strings.Cut(str, ":")
		out = append(out, flashMessage{Kind: kind, Text: text})
	}
	return out
}

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	if h.authenticated(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login", page{Title: "Admin login", Flashes: h.takeFlashes(w, r)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("request_id", getRequestID(r.Context())))
	if !h.checkCredentials(r.PostFormValue("username"), r.PostFormValue("password")) {
		log.Warn("Admin login failed", slog.String("remote_addr", r.RemoteAddr))
		h.render(w, r, http.StatusUnauthorized, "login", page{
			Title:   "Admin login",
			Message: "Invalid username or password.",
		})
		return
	}
	s := h.session(r)
	s.Values[sessionAuthKey] = true
	s.AddFlash("success:Login successful!")
	if err := s.Save(r, w); err != nil {
		log.Error("Failed to save session", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	log.Info("Admin logged in")
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	s.Values = map[any]any{}
	s.Options = &sessions.Options{Path: "/admin", MaxAge: -1}
	if err := s.Save(r, w); err != nil {
		h.log.Error("Failed to clear session", slog.Any("error", err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	snap := h.deps.News.Cached()
	h.render(w, r, http.StatusOK, "dashboard", page{
		Title:     "Dashboard",
		Admin:     true,
		Flashes:   h.takeFlashes(w, r),
		Items:     snap.Items,
		Sources:   snap.Sources,
		FetchedAt: snap.FetchedAt,
	})
}

func (h *Handler) feedsPage(w http.ResponseWriter, r *http.Request) {
	sources, err := h.deps.Moderation.ActiveSources(r.Context())
	if err != nil {
		h.log.Error("Failed to load feed list", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	urls := make([]string, 0, len(sources))
	for _, s := range sources {
		urls = append(urls, s.URL)
	}
	h.render(w, r, http.StatusOK, "feeds", page{
		Title:     "Feeds",
		Admin:     true,
		Flashes:   h.takeFlashes(w, r),
		FeedsText: strings.Join(urls, "\n"),
	})
}

func (h *Handler) saveFeeds(w http.ResponseWriter, r *http.Request) {
	lines := strings.Split(strings.ReplaceAll(r.PostFormValue("feeds"), "\r\n", "\n"), "\n")
	sources, err := h.deps.Moderation.SetFeeds(r.Context(), lines)
	switch {
	case errors.Is(err, usecase.ErrEmptyFeedList):
		h.flash(w, r, "warning", "The feed list must contain at least one URL.")
	case err != nil:
		h.log.Warn("Feed list rejected", slog.Any("error", err))
		h.flash(w, r, "danger", "Error saving feed list: "+err.Error())
	default:
		msg := fmt.Sprintf("Feed list updated (%d feeds). Changes will apply on the next fetch cycle.", len(sources))
		if h.deps.Scheduler != nil && h.deps.Scheduler.Trigger() {
			msg = fmt.Sprintf("Feed list updated (%d feeds). Fetching now.", len(sources))
		}
		h.flash(w, r, "success", msg)
	}
	http.Redirect(w, r, "/admin/feeds", http.StatusSeeOther)
}

func (h *Handler) removeArticle(w http.ResponseWriter, r *http.Request) {
	link := strings.TrimSpace(r.PostFormValue("link"))
	if link == "" {
		h.flash(w, r, "warning", "No article link provided.")
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	added, err := h.deps.Moderation.RemoveArticle(r.Context(), link)
	switch {
	case err != nil:
		h.log.Error("Failed to remove article", slog.String("link", link), slog.Any("error", err))
		h.flash(w, r, "danger", fmt.Sprintf("Failed to remove article '%s'.", link))
	case !added:
		h.flash(w, r, "info", fmt.Sprintf("Article '%s' was already removed.", link))
	default:
		h.flash(w, r, "success", fmt.Sprintf("Article '%s' removed.", link))
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Refresher.Refresh(r.Context())
	switch {
	case errors.Is(err, usecase.ErrAllSourcesFailed):
		h.flash(w, r, "danger", "Every feed failed; the previous articles are kept.")
	case err != nil:
		h.log.Error("Manual refresh failed", slog.Any("error", err))
		h.flash(w, r, "danger", "Refresh failed: "+err.Error())
	default:
		h.flash(w, r, "success", fmt.Sprintf("Refreshed: %d articles, %d feeds failed.", report.Kept, report.Failed))
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}
