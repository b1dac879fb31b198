package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"markbook/backend/internal/gateway/handlers"
	"markbook/backend/internal/gateway/util"
	"markbook/backend/internal/shared"
)

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(services *Services, cfg *shared.ServiceConfig, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSONError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// 2. Initialize Handlers
	authHandler := &handlers.AuthHandler{Auth: services.Auth, Security: cfg.Security}
	studentHandler := &handlers.StudentHandler{Students: services.Students}
	marksHandler := &handlers.MarksHandler{Marks: services.Marks}
	reportHandler := &handlers.ReportHandler{Reports: services.Reports}
	healthHandler := &handlers.HealthHandler{Store: services}

	loginLimiter := NewIPRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst)
	requireAdmin := RequireRole(shared.RoleAdmin)
	requireTeacher := RequireRole(shared.RoleTeacher)

	// 3. Define Routes
	r.Route("/api", func(r chi.Router) {

		// --- Public Routes ---
		r.Get("/health", healthHandler.Health)
		r.With(loginLimiter.Middleware).Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// --- Protected Routes (Require Valid Token) ---
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(services.Auth, cfg.Security.CookieName))

			r.Get("/auth/me", authHandler.Me)

			// Student Registry: reads for any role, writes for admin
			r.Route("/students", func(r chi.Router) {
				r.Get("/", studentHandler.ListStudents)
				r.Get("/{id}", studentHandler.GetStudent)
				r.With(requireAdmin).Post("/", studentHandler.CreateStudent)
				r.With(requireAdmin).Put("/{id}", studentHandler.UpdateStudent)
				r.With(requireAdmin).Delete("/{id}", studentHandler.DeleteStudent)
			})

			// Mark Ledger
			r.Route("/marks", func(r chi.Router) {
				r.Use(requireTeacher)
				r.Get("/student/{id}", marksHandler.ListForStudent)
				r.Get("/student/{id}/summary", marksHandler.SummaryForStudent)
				r.Post("/", marksHandler.UpsertMark)
				r.Delete("/{id}", marksHandler.DeleteMark)
			})

			// Report
			r.With(requireTeacher).Get("/download/excel", reportHandler.DownloadExcel)
		})
	})

	return r
}
