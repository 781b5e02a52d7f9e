package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/himeno-lab/kotori/pkg/utils/logging"
)

// Server is the HTTP surface: health check plus the WhatsApp webhook
type Server struct {
	router *chi.Mux
}

// Options configures the Server
type Options func(*Server, *chi.Mux)

// WithWebhook mounts the WhatsApp webhook handler at /hooks/whatsapp
func WithWebhook(handler *WebhookHandler) Options {
	return func(s *Server, r *chi.Mux) {
		r.Route("/hooks/whatsapp", func(r chi.Router) {
			r.Get("/", handler.HandleVerify)
			r.Post("/", handler.HandleEvent)
		})
	}
}

// New builds the router with the standard middleware stack
func New(opts ...Options) *Server {
	r := chi.NewRouter()
	s := &Server{router: r}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	for _, opt := range opts {
		opt(s, r)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
