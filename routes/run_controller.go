package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/fieldsurvey/answer"
	"github.com/mbolis/fieldsurvey/app"
	"github.com/mbolis/fieldsurvey/httpx"
	"github.com/mbolis/fieldsurvey/log"
	"github.com/mbolis/fieldsurvey/model"
	"github.com/mbolis/fieldsurvey/questionnaire"
	"github.com/mbolis/fieldsurvey/runs"
	"github.com/mbolis/fieldsurvey/submit"
)

type runView struct {
	ID         string          `json:"id"`
	SurveyName string          `json:"surveyName"`
	SurID      model.SurID     `json:"surId"`
	Index      int             `json:"index"`
	Total      int             `json:"total"`
	Complete   bool            `json:"complete"`
	Progress   float64         `json:"progress"`
	CanAdvance bool            `json:"canAdvance"`
	Question   *model.Question `json:"question,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
}

func newRunView(run runs.Run) (runView, error) {
	v := runView{
		ID:         run.ID,
		SurveyName: run.SurveyName,
		SurID:      run.SurID,
		Index:      run.State.Index(),
		Total:      run.State.Total(),
		Complete:   run.State.Complete(),
		Progress:   run.State.Progress(),
		CanAdvance: run.State.CanAdvance(),
	}
	if v.Complete {
		return v, nil
	}

	q := run.State.Current()
	v.Question = &q
	if a := run.State.Answer(q.ID); a != nil {
		raw, err := answer.Encode(a)
		if err != nil {
			return v, err
		}
		v.Answer = raw
	}
	return v, nil
}

func renderRun(w http.ResponseWriter, r *http.Request, run runs.Run) {
	v, err := newRunView(run)
	if err != nil {
		httpx.LogInternalError(w, "run.view", err)
		return
	}
	render.JSON(w, r, v)
}

// runError answers for errors coming from the run registry or from a
// rejected questionnaire event.
func runError(w http.ResponseWriter, code string, id string, err error) {
	switch {
	case errors.Is(err, runs.ErrNotFound):
		httpx.LogNotFound(w, code, id)
	case errors.Is(err, runs.ErrInFlight),
		errors.Is(err, runs.ErrNotComplete),
		errors.Is(err, questionnaire.ErrNotAnswered),
		errors.Is(err, questionnaire.ErrComplete),
		errors.Is(err, questionnaire.ErrNotCurrent),
		errors.Is(err, answer.ErrWrongType),
		errors.Is(err, answer.ErrUnknownOption),
		errors.Is(err, answer.ErrOutOfRange):
		httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, code, "%v", err)
	case errors.Is(err, questionnaire.ErrNoQuestions):
		httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, code, "%v", err)
	default:
		httpx.LogInternalError(w, code, err)
	}
}

type createRunRequest struct {
	Survey string      `json:"survey"`
	SurID  model.SurID `json:"surId"`
	Lat    float64     `json:"lat"`
	Lon    float64     `json:"lon"`
}

func CreateRun(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ss, ok := currentSession(w, r)
		if !ok {
			return
		}

		req := createRunRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil || req.Survey == "" || req.SurID == "" {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		surveys, err := loadSurveys(r.Context(), app, ss)
		if err != nil {
			httpx.LogBadGateway(w, "run.create.surveys", err)
			return
		}

		var survey *model.Survey
		for i := range surveys {
			if surveys[i].SurveyName == req.Survey {
				survey = &surveys[i]
				break
			}
		}
		if survey == nil {
			httpx.LogNotFound(w, "run.create.survey", req.Survey)
			return
		}
		if !survey.HasCompletion(req.SurID) {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "run.create.completion",
				"survey %q has no completion %s", req.Survey, req.SurID)
			return
		}

		run, err := app.Runs.Create(ss.Email, *survey, req.SurID, req.Lat, req.Lon)
		if err != nil {
			runError(w, "run.create", "", err)
			return
		}

		render.Status(r, http.StatusCreated)
		renderRun(w, r, run)
	}
}

func GetRun(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ss, ok := currentSession(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		run, err := app.Runs.Get(ss.Email, id)
		if err != nil {
			runError(w, "run.get", id, err)
			return
		}
		renderRun(w, r, run)
	}
}

func DeleteRun(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ss, ok := currentSession(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		if err := app.Runs.Delete(ss.Email, id); err != nil {
			runError(w, "run.delete", id, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type eventRequest struct {
	Type       string        `json:"type"`
	QuestionID int           `json:"questionId"`
	Option     string        `json:"option"`
	Value      string        `json:"value"`
	Stars      int           `json:"stars"`
	Images     []model.Image `json:"images"`
	URI        string        `json:"uri"`
}

var errUnknownEvent = errors.New("unknown event type")

func (req eventRequest) event() (questionnaire.Event, error) {
	switch req.Type {
	case "select":
		return questionnaire.Select{QuestionID: req.QuestionID, Option: req.Option}, nil
	case "set":
		return questionnaire.SetValue{QuestionID: req.QuestionID, Value: req.Value}, nil
	case "rate":
		return questionnaire.Rate{QuestionID: req.QuestionID, Stars: req.Stars}, nil
	case "add_images":
		return questionnaire.AddImages{QuestionID: req.QuestionID, Images: req.Images}, nil
	case "remove_image":
		return questionnaire.RemoveImage{QuestionID: req.QuestionID, URI: req.URI}, nil
	case "next":
		return questionnaire.Next{}, nil
	case "previous":
		return questionnaire.Previous{}, nil
	case "reset":
		return questionnaire.Reset{}, nil
	}
	return nil, errUnknownEvent
}

func PostRunEvent(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ss, ok := currentSession(w, r)
		if !ok {
			return
		}

		req := eventRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		e, err := req.event()
		if err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "run.event", "%v %q", err, req.Type)
			return
		}

		id := chi.URLParam(r, "id")
		run, err := app.Runs.Apply(ss.Email, id, e)
		if err != nil {
			runError(w, "run.event."+req.Type, id, err)
			return
		}
		renderRun(w, r, run)
	}
}

type submitRequest struct {
	SendNow bool `json:"sendNow"`
}

// SubmitRun transmits a complete run, or queues it. Whatever the backend
// says, the caller only learns the outcome.
func SubmitRun(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ss, ok := currentSession(w, r)
		if !ok {
			return
		}

		req := submitRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		id := chi.URLParam(r, "id")
		run, err := app.Runs.Begin(ss.Email, id)
		if err != nil {
			runError(w, "run.submit", id, err)
			return
		}

		// a submission is never cancelled halfway by the caller going away
		ctx := context.WithoutCancel(r.Context())
		outcome, err := app.Submitter.Submit(ctx, app.Transport(ss), run.Queued(), req.SendNow)
		if err != nil {
			app.Runs.Release(id)
			httpx.LogInternalError(w, "run.submit", err)
			return
		}

		resp := map[string]any{"outcome": outcome}
		if outcome == submit.Restarted {
			run, err := app.Runs.Restart(id)
			if err != nil {
				runError(w, "run.restart", id, err)
				return
			}
			v, err := newRunView(run)
			if err != nil {
				httpx.LogInternalError(w, "run.view", err)
				return
			}
			resp["run"] = v
		} else {
			app.Runs.Finish(id)
		}
		render.JSON(w, r, resp)
	}
}
