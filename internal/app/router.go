package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"quizbank/internal/app/apiresp"
	"quizbank/internal/app/observability"
	"quizbank/internal/auth"
	"quizbank/internal/category"
	"quizbank/internal/media"
	"quizbank/internal/question"
	"quizbank/internal/user"
	"quizbank/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// Deps carries what the router needs from main. Media and Limiter fall back
// to a disabled store and an in-memory limiter when nil.
type Deps struct {
	Config  Config
	DB      *sql.DB
	Log     *logrus.Entry
	Media   question.MediaStore
	Limiter RateLimiter
}

func NewRouter(d Deps) http.Handler {
	cfg, log := d.Config, d.Log
	if d.Limiter == nil {
		d.Limiter = NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)
	}

	validate := validation.New()
	collector := observability.NewCollector(d.DB, log)

	userStore := user.NewPostgresStore(d.DB)
	categoryStore := category.NewPostgresStore(d.DB)
	questionStore := question.NewPostgresStore(d.DB)

	userSvc := user.NewService(userStore, validate, log.WithField("component", "user"), user.ServiceConfig{BcryptCost: cfg.BcryptCost})
	categorySvc := category.NewService(categoryStore, questionStore, validate, log.WithField("component", "category"))
	questionSvc := question.NewService(question.ServiceDeps{
		Store:      questionStore,
		Categories: categorySvc,
		Users:      userSvc,
		Media:      mediaOrDisabled(d.Media),
		Observer:   collector,
		Log:        log.WithField("component", "question"),
	})

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authHandler := auth.NewHandler(userSvc, tokens, log.WithField("component", "auth"))
	userHandler := user.NewHandler(userSvc)
	categoryHandler := category.NewHandler(categorySvc)
	questionHandler := question.NewHandler(questionSvc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-Id", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(collector.Middleware)

	r.Method(http.MethodGet, "/metrics", collector.MetricsHandler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", healthHandler(d.DB))

		api.Group(func(pub chi.Router) {
			pub.Use(authHandler.Identify)
			pub.Use(annotateCaller)

			pub.Route("/users", func(users chi.Router) {
				users.With(RateLimitMiddleware(d.Limiter, log)).Post("/login", authHandler.Login)
				users.Group(func(admin chi.Router) {
					admin.Use(auth.RequireAdmin)
					admin.Post("/", userHandler.Create)
					admin.Get("/", userHandler.List)
					admin.Get("/{id}", userHandler.Get)
					admin.Put("/{id}", userHandler.Update)
					admin.Delete("/{id}", userHandler.Delete)
				})
			})

			pub.Route("/categories", func(cats chi.Router) {
				cats.Get("/", categoryHandler.List)
				cats.Get("/{id}", categoryHandler.Get)
				cats.Group(func(admin chi.Router) {
					admin.Use(auth.RequireAdmin)
					admin.Post("/", categoryHandler.Create)
					admin.Put("/{id}", categoryHandler.Update)
					admin.Delete("/{id}", categoryHandler.Delete)
				})
			})

			pub.Route("/questions", func(qs chi.Router) {
				qs.Post("/", questionHandler.Create)
				qs.Get("/", questionHandler.List)
				qs.Get("/export", questionHandler.Export)
				qs.Get("/filter-by-date", questionHandler.FilterByDate)
				qs.Get("/category/{categoryId}", questionHandler.ListByCategory)
				qs.Get("/tag/{tag}", questionHandler.ListByTag)
				qs.Get("/{id}", questionHandler.Get)
				qs.Put("/{id}", questionHandler.Update)
				qs.Delete("/{id}", questionHandler.Delete)
				qs.Group(func(admin chi.Router) {
					admin.Use(auth.RequireAdmin)
					admin.Patch("/{id}/approval", questionHandler.SetApproval)
					admin.Post("/upload-csv-questions", questionHandler.Import)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apiresp.WriteError(w, r, http.StatusNotFound, "route not found")
	})
	return r
}

func mediaOrDisabled(m question.MediaStore) question.MediaStore {
	if m == nil {
		return media.Disabled{}
	}
	return m
}

// annotateCaller adds the identified user to the request log line.
func annotateCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := auth.CurrentUser(r.Context()); ok {
			observability.Annotate(r.Context(), "user_id", u.ID.String())
		}
		next.ServeHTTP(w, r)
	})
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				apiresp.WriteError(w, r, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
