package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/hashicorp/go-multierror"
	"github.com/mbolis/fieldsurvey/app"
	"github.com/mbolis/fieldsurvey/httpx"
	"github.com/mbolis/fieldsurvey/log"
	"github.com/mbolis/fieldsurvey/queue"
	"github.com/mbolis/fieldsurvey/submit"
)

func GetQueue(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := app.Queue.List(r.Context())
		if err != nil {
			httpx.LogInternalError(w, "queue.list", err)
			return
		}
		if list == nil {
			list = []queue.Survey{}
		}

		flushing, progress := app.Replayer.Status()
		render.JSON(w, r, map[string]any{
			"surveys":   list,
			"questions": queue.Total(list),
			"flushing":  flushing,
			"progress":  progress,
		})
	}
}

type flushResponse struct {
	submit.Report
	Errors []string `json:"errors"`
}

func FlushQueue(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ss, ok := currentSession(w, r)
		if !ok {
			return
		}

		ctx := context.WithoutCancel(r.Context())
		report, err := app.Replayer.Flush(ctx, app.Transport(ss), func(p float64) {
			log.Tracef("queue.flush: %.1f%%", p)
		})
		if errors.Is(err, submit.ErrFlushInProgress) {
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "queue.flush.running")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "queue.flush", err)
			return
		}

		resp := flushResponse{Report: report, Errors: []string{}}
		var merr *multierror.Error
		if errors.As(report.Err, &merr) {
			for _, e := range merr.Errors {
				resp.Errors = append(resp.Errors, e.Error())
			}
		}
		render.JSON(w, r, resp)
	}
}
