// Package stubapi serves a small in-memory banking API. It is the target of
// the built-in sample cases and of end-to-end tests.
package stubapi

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

//go:embed openapi.yaml
var openAPIDocument []byte

//go:embed sample_cases.yaml
var sampleCases []byte

// OpenAPIDocument returns the API description served at /openapi.yaml.
func OpenAPIDocument() []byte {
	return openAPIDocument
}

// SampleCases returns a case file that passes against this API.
func SampleCases() []byte {
	return sampleCases
}

const (
	// SessionCookie is set by POST /auth/login.
	SessionCookie = "session"
	// Version is reported by GET /version.
	Version = "1.0.0"
)

// Options configure the stub.
type Options struct {
	// Token, when set, is the bearer token every protected route requires.
	Token  string
	Logger *slog.Logger
}

// Server holds the stub state and its router.
type Server struct {
	Router chi.Router

	opts      Options
	mu        sync.Mutex
	accounts  map[string]Account
	transfers map[string]Transfer
	order     []string
	now       func() time.Time
}

// New creates a Server with a fully configured chi router.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(discard{}, nil))
	}
	s := &Server{
		opts:      opts,
		accounts:  seedAccounts(),
		transfers: make(map[string]Transfer),
		now:       time.Now,
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(rejectMalformedJSON)

	// Public routes.
	r.Get("/health", s.health)
	r.Get("/version", s.version)
	r.Get("/openapi.yaml", s.openAPI)
	r.Post("/auth/login", s.login)
	r.Post("/auth/logout", s.logout)
	r.Get("/me", s.me)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(opts.Token))

		r.Get("/accounts", s.listAccounts)
		r.Get("/accounts/{accountId}", s.getAccount)
		r.Get("/accounts/{accountId}/balance", s.getBalance)
		r.Get("/transactions", s.listTransactions)
		r.Post("/transfers", s.createTransfer)
		r.Get("/transfers/{transferId}", s.getTransfer)

		r.Get("/users", emptyList)
		r.Get("/products", emptyList)
		r.Get("/orders", emptyList)
	})

	s.Router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func (s *Server) openAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(openAPIDocument)
}

func emptyList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": []interface{}{}})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// bearerAuth requires "Authorization: Bearer <token>". An empty token accepts
// any bearer value but still requires the header.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			const prefix = "Bearer "
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, prefix) || header[len(prefix):] != token {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rejectMalformedJSON answers 400 when a request declares a JSON body that
// does not parse.
func rejectMalformedJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.ContentLength == 0 || !strings.Contains(r.Header.Get("Content-Type"), "json") {
			next.ServeHTTP(w, r)
			return
		}
		body, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_data", err.Error())
			return
		}
		if !json.Valid(body) {
			writeError(w, http.StatusBadRequest, "invalid_data", "request body is not valid JSON")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("stub request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
