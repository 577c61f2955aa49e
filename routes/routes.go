package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbolis/fieldsurvey/app"
	"github.com/mbolis/fieldsurvey/database"
	"github.com/mbolis/fieldsurvey/httpx"
	"github.com/mbolis/fieldsurvey/log"
	"github.com/mbolis/fieldsurvey/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app, middlewares.Session(app.TokenSecret, app.Sessions)))

	return root
}

func apiRouter(app app.App, auth func(http.Handler) http.Handler) http.Handler {
	api := chi.NewRouter()

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	api.Group(func(r chi.Router) {
		r.Use(auth)

		r.Get("/surveys", ListSurveys(app))
		r.Get("/stores", ListStores(app))

		r.Post("/runs", CreateRun(app))
		r.Get("/runs/{id}", GetRun(app))
		r.Delete("/runs/{id}", DeleteRun(app))
		r.Post("/runs/{id}/events", PostRunEvent(app))
		r.Post("/runs/{id}/submit", SubmitRun(app))

		r.Get("/queue", GetQueue(app))
		r.Post("/queue/flush", FlushQueue(app))
	})

	return api
}

func currentSession(w http.ResponseWriter, r *http.Request) (database.StoredSession, bool) {
	ss, ok := middlewares.SessionFrom(r.Context())
	if !ok {
		httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "session.missing")
	}
	return ss, ok
}
