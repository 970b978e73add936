package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"diary-assistant/internal/handlers"
	"diary-assistant/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	NoteService   service.NoteService
	SearchService service.SearchService
	TaskService   service.TaskService
	// HealthChecks are probed by /api/health/ready, keyed by dependency name.
	HealthChecks map[string]handlers.Pinger
	// SearchRateLimit is the per-tenant search budget per hour; <= 0 disables it.
	SearchRateLimit int
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	noteHandler := handlers.NewNoteHandler(deps.NoteService)
	searchHandler := handlers.NewSearchHandler(deps.SearchService)
	taskHandler := handlers.NewTaskHandler(deps.TaskService)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	searchLimiter := NewRateLimiter(deps.SearchRateLimit)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Live)
		r.Get("/health/ready", healthHandler.Ready)

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Use(TenantLogger)

			r.Route("/notes", func(r chi.Router) {
				r.Get("/", noteHandler.List)
				r.Post("/", noteHandler.Create)
				r.Get("/{noteID}", noteHandler.Get)
				r.Patch("/{noteID}", noteHandler.Update)
				r.Delete("/{noteID}", noteHandler.Delete)
			})

			r.With(searchLimiter.Middleware).Method(http.MethodPost, "/search", searchHandler)

			r.Get("/tasks", taskHandler.List)
			r.Post("/tasks/{taskID}/complete", taskHandler.Complete)
		})
	})

	return r
}
