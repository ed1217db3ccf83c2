// Package web serves the public JSON API.
package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/charadev96/ratewise/internal/server/service"
	"github.com/charadev96/ratewise/internal/session"
	shared "github.com/charadev96/ratewise/internal/shared/domain"
	"github.com/charadev96/ratewise/internal/shared/log"
)

type Handler struct {
	Auth    *service.AuthService
	Items   *service.ItemService
	Reviews *service.ReviewService

	Cookie         session.CookieOptions
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         *zerolog.Logger
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.logRequests)
	r.Use(chimiddleware.Recoverer)
	if h.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(h.RequestTimeout))
	}
	if len(h.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/sign-up", h.signUp)
		r.Post("/sign-in", h.signIn)
		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Post("/sign-out", h.signOut)
			r.Post("/sign-out-all", h.signOutAll)
			r.Get("/me", h.me)
		})
	})

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.listItems)
		r.Get("/{id}", h.getItem)
		r.Get("/{id}/reviews", h.listReviews)
		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Post("/", h.createItem)
			r.Patch("/{id}", h.updateItem)
			r.Post("/{id}/reviews", h.createReview)
		})
	})

	return r
}

// requireSession authenticates the session cookie and rejects the request
// otherwise. Unusable cookies are cleared.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := session.FromRequest(r, h.Cookie.Name)
		if id == "" {
			h.fail(w, r, shared.ErrUnauthenticated)
			return
		}
		sess, usr, err := h.Auth.Authenticate(r.Context(), id)
		if err != nil {
			if errors.Is(err, shared.ErrUnauthenticated) {
				session.ClearCookie(w, h.Cookie)
			}
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), sess, usr)))
	})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger().Info().
			Str("request", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("latency", time.Since(start)).
			Msg("handled request")
	})
}

func (h *Handler) logger() *zerolog.Logger {
	return log.OrNop(h.Logger)
}
