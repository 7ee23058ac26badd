package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ibras0696/m-django-work/internal/api"
	apiMiddleware "github.com/ibras0696/m-django-work/internal/api/middleware"
	"github.com/ibras0696/m-django-work/internal/api/shared"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(apiMiddleware.Trace(app.logger))
	if app.metrics != nil {
		r.Use(apiMiddleware.Metrics(app.metrics))
	}

	authHandler := api.NewAuthHandler(app.accountService, app.logger)
	categoryHandler := api.NewCategoryHandler(app.categoryService, app.logger)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/token", authHandler.Token)
		r.Post("/token/refresh", authHandler.Refresh)

		r.With(apiMiddleware.RequireInternalToken(app.config.Bot.InternalToken)).
			Post("/bot/auth", authHandler.BotAuth)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/me", authHandler.Me)

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", categoryHandler.List)
				r.Post("/", categoryHandler.Create)
				r.Get("/{id}", categoryHandler.Get)
				r.Put("/{id}", categoryHandler.Update)
				r.Patch("/{id}", categoryHandler.Update)
				r.Delete("/{id}", categoryHandler.Delete)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.List)
				r.Post("/", taskHandler.Create)
				r.Get("/{id}", taskHandler.Get)
				r.Put("/{id}", taskHandler.Replace)
				r.Patch("/{id}", taskHandler.Patch)
				r.Delete("/{id}", taskHandler.Delete)
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{"ok": true, "service": "backend"})
	})

	if app.metrics != nil && app.config.Server.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", app.metrics.Handler())
	}

	return r
}
