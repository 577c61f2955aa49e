// Package submit transmits completed survey runs to the backend, either
// right away or later from the offline queue.
package submit

import (
	"context"
	"fmt"

	"github.com/mbolis/fieldsurvey/answer"
	"github.com/mbolis/fieldsurvey/client"
	"github.com/mbolis/fieldsurvey/images"
	"github.com/mbolis/fieldsurvey/log"
	"github.com/mbolis/fieldsurvey/model"
	"github.com/mbolis/fieldsurvey/queue"
	"github.com/mbolis/fieldsurvey/wire"
	"github.com/pkg/errors"
)

// API is the part of the backend the submission protocol talks to.
type API interface {
	Start(ctx context.Context, surId model.SurID, lat, lon float64) error
	SubmitAnswer(ctx context.Context, surId model.SurID, body wire.Body) error
	UploadImage(ctx context.Context, surId model.SurID, questionID, index int, file images.File) error
}

// Transport bundles what one user needs to transmit a survey.
type Transport struct {
	API    API
	Images images.Loader
}

type Step string

const (
	StepStart  Step = "start"
	StepAnswer Step = "answer"
	StepUpload Step = "upload"
)

// StepError reports which protocol step failed.
type StepError struct {
	Step       Step
	SurID      model.SurID
	QuestionID int
	Index      int
	Err        error
}

func (e *StepError) Error() string {
	switch e.Step {
	case StepStart:
		return fmt.Sprintf("survey %s: start: %v", e.SurID, e.Err)
	case StepUpload:
		return fmt.Sprintf("survey %s: upload question %d image %d: %v", e.SurID, e.QuestionID, e.Index, e.Err)
	default:
		return fmt.Sprintf("survey %s: answer question %d: %v", e.SurID, e.QuestionID, e.Err)
	}
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// step is one network call of the protocol. done is how many questions it
// completes once it succeeds: a question counts as processed after its
// answer call, image uploads only refresh progress.
type step struct {
	run  func(ctx context.Context) error
	done float64
}

// pipeline lays out the protocol for s: start, then every question in order,
// each IMGL answer followed by its uploads in index order.
func pipeline(t Transport, s queue.Survey) []step {
	steps := []step{{
		run: func(ctx context.Context) error {
			if err := t.API.Start(ctx, s.SurID, s.Lat, s.Lon); err != nil {
				return &StepError{Step: StepStart, SurID: s.SurID, Err: err}
			}
			return nil
		},
	}}

	for _, e := range s.Data {
		e := e
		body, err := wire.Encode(e.QuestionID, e.Answer)
		if errors.Is(err, wire.ErrUnsupported) {
			log.Debugf("submit.skip: survey %s question %d has unsupported plugin code %q", s.SurID, e.QuestionID, e.PluginCode)
			steps = append(steps, step{run: skip, done: 1})
			continue
		}
		if err != nil {
			steps = append(steps, step{run: fail(&StepError{Step: StepAnswer, SurID: s.SurID, QuestionID: e.QuestionID, Err: err})})
			continue
		}

		var imgs []model.Image
		if a, ok := e.Answer.(answer.Images); ok {
			imgs = a.Images
		}
		steps = append(steps, step{
			run: func(ctx context.Context) error {
				if err := t.API.SubmitAnswer(ctx, s.SurID, body); err != nil {
					return &StepError{Step: StepAnswer, SurID: s.SurID, QuestionID: e.QuestionID, Err: err}
				}
				return nil
			},
			done: 1,
		})

		for i, img := range imgs {
			i, img := i, img
			steps = append(steps, step{
				run: func(ctx context.Context) error {
					file, err := t.Images.Load(ctx, img)
					if err == nil {
						err = t.API.UploadImage(ctx, s.SurID, e.QuestionID, i, file)
					}
					if err != nil {
						return &StepError{Step: StepUpload, SurID: s.SurID, QuestionID: e.QuestionID, Index: i, Err: err}
					}
					return nil
				},
			})
		}
	}
	return steps
}

// transmit runs the steps in order and stops at the first failure.
// advance is told how much of a question each successful step completed.
func transmit(ctx context.Context, t Transport, s queue.Survey, advance func(float64)) error {
	for _, st := range pipeline(t, s) {
		if err := st.run(ctx); err != nil {
			return err
		}
		if advance != nil {
			advance(st.done)
		}
	}
	return nil
}

func skip(context.Context) error { return nil }

func fail(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

// restartable reports whether err asks for the run to be started over.
func restartable(err error) bool {
	var se *StepError
	return errors.As(err, &se) && se.Step == StepStart && errors.Is(se.Err, client.ErrUnknownCompletion)
}
