package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", app.HomeHandler)
	r.Get("/ping", PingHandler)

	r.Get("/models", app.ListModelsHandler)
	r.Post("/models", app.UploadModelHandler)
	r.Get("/models/{filename}", app.ServeModelHandler)
	r.Delete("/models/{filename}", app.DeleteModelHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/infer", app.InferHandler)
		r.Get("/metrics", app.MetricsHandler)
		r.Get("/metrics/history", app.MetricsHistoryHandler)
		r.Get("/metrics/stream", app.MetricsStreamHandler)
		r.Get("/skeleton", app.SkeletonHandler)
	})

	fileServer := http.FileServer(http.Dir("./web/static"))
	r.Handle("/static/*", http.StripPrefix("/static", fileServer))

	return r
}
