package handler

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/ebeckert/letterwell/internal/auth"
	"github.com/ebeckert/letterwell/internal/auth/google"
	"github.com/ebeckert/letterwell/internal/drive"
	"github.com/ebeckert/letterwell/internal/ratelimit"
	"github.com/ebeckert/letterwell/internal/store"
)

// Deps collects everything the router needs.
type Deps struct {
	Store  *store.Store
	Issuer *auth.TokenIssuer
	Broker *google.Broker
	Bridge *drive.Bridge

	ClientURL       string
	AllowedOrigins  []string
	ProfileTokenTTL time.Duration
	DevMode         bool
}

// NewRouter assembles the full REST surface.
func NewRouter(d Deps) chi.Router {
	rp := responder{dev: d.DevMode}

	// Credential endpoints get a modest per-IP budget.
	limiter := ratelimit.New(rate.Limit(1), 10)

	authHandler := NewAuthHandler(d.Store, d.Issuer, d.Broker, limiter, d.ClientURL, d.ProfileTokenTTL, d.DevMode)
	letterHandler := NewLetterHandler(d.Store, d.DevMode)
	driveHandler := NewDriveHandler(d.Bridge, d.DevMode)

	requireAuth := RequireAuth(d.Issuer, d.Store, rp)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(d.AllowedOrigins))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Get("/verify", authHandler.Verify)
		r.Get("/google", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)
		r.With(requireAuth).Put("/profile", authHandler.UpdateProfile)
	})

	r.Route("/api/letters", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", letterHandler.List)
		r.Post("/", letterHandler.Create)
		r.Get("/count", letterHandler.Count)
		r.Get("/recent", letterHandler.Recent)
		r.Get("/{id}", letterHandler.Get)
		r.Put("/{id}", letterHandler.Update)
		r.Delete("/{id}", letterHandler.Delete)
	})

	r.Route("/api/drive", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/files", driveHandler.Files)
		r.Get("/files/{fileId}", driveHandler.FileContent)
		r.Post("/upload", driveHandler.Upload)
		r.Put("/files/{fileId}", driveHandler.UpdateFile)
		r.Delete("/files/{fileId}", driveHandler.DeleteFile)
		r.Get("/storage", driveHandler.Storage)
	})

	return r
}
