package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/fieldsurvey/app"
	"github.com/mbolis/fieldsurvey/database"
	"github.com/mbolis/fieldsurvey/httpx"
	"github.com/mbolis/fieldsurvey/log"
	"github.com/mbolis/fieldsurvey/model"
	"github.com/mbolis/fieldsurvey/queue"
)

const storesKey = "stores"

func surveysKey(email string) string {
	return "surveys/" + email
}

type surveyView struct {
	model.Survey
	PendingCount int `json:"pendingCount"`
}

func ListSurveys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ss, ok := currentSession(w, r)
		if !ok {
			return
		}

		surveys, err := loadSurveys(r.Context(), app, ss)
		if err != nil {
			httpx.LogBadGateway(w, "surveys.remote", err)
			return
		}

		queued, err := app.Queue.List(r.Context())
		if err != nil {
			httpx.LogInternalError(w, "surveys.queue", err)
			return
		}

		views := make([]surveyView, len(surveys))
		for i, s := range surveys {
			views[i] = surveyView{s, queue.PendingCount(queued, s)}
		}

		render.JSON(w, r, map[string]any{
			"surveys": views,
		})
	}
}

func ListStores(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ss, ok := currentSession(w, r)
		if !ok {
			return
		}

		stores, err := app.Client(ss).Stores(r.Context())
		if err == nil {
			if err := app.Cache.Put(r.Context(), storesKey, stores); err != nil {
				log.Warnf("stores.cache: %v", err)
			}
		} else {
			found, cerr := app.Cache.Get(r.Context(), storesKey, &stores)
			if cerr != nil || !found {
				httpx.LogBadGateway(w, "stores.remote", err)
				return
			}
			log.Warnf("stores.remote: %v; serving cached list", err)
		}

		if stores == nil {
			stores = []model.Store{}
		}
		render.JSON(w, r, map[string]any{
			"stores": stores,
		})
	}
}

// loadSurveys fetches the surveys assigned to the session's user, falling
// back to the last list fetched when the backend is out of reach.
func loadSurveys(ctx context.Context, app app.App, ss database.StoredSession) ([]model.Survey, error) {
	surveys, err := app.Client(ss).Surveys(ctx)
	if err == nil {
		if err := app.Cache.Put(ctx, surveysKey(ss.Email), surveys); err != nil {
			log.Warnf("surveys.cache: %v", err)
		}
		return surveys, nil
	}

	var cached []model.Survey
	found, cerr := app.Cache.Get(ctx, surveysKey(ss.Email), &cached)
	if cerr != nil || !found {
		return nil, err
	}
	log.Warnf("surveys.remote: %v; serving cached list", err)
	return cached, nil
}
