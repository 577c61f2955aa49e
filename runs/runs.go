// Package runs keeps the survey runs users are taking, in memory, until they
// are submitted or queued.
package runs

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/mbolis/fieldsurvey/model"
	"github.com/mbolis/fieldsurvey/queue"
	"github.com/mbolis/fieldsurvey/questionnaire"
)

var (
	ErrNotFound    = errors.New("run not found")
	ErrInFlight    = errors.New("run is being submitted")
	ErrNotComplete = errors.New("run is not complete")
)

// Run is one user's traversal of a survey at a location.
type Run struct {
	ID         string
	Owner      string
	SurveyName string
	SurID      model.SurID
	Checksum   string
	Lat        float64
	Lon        float64
	State      questionnaire.State

	inFlight bool
}

// Queued turns the run into the record transmitted to the backend: every
// answered question, in question order.
func (r Run) Queued() queue.Survey {
	s := queue.Survey{
		SurID:    r.SurID,
		Lat:      r.Lat,
		Lon:      r.Lon,
		Checksum: r.Checksum,
		Data:     []queue.Entry{},
	}
	for _, q := range r.State.Questions() {
		a := r.State.Answer(q.ID)
		if a == nil || a.Empty() {
			continue
		}
		s.Data = append(s.Data, queue.Entry{QuestionID: q.ID, PluginCode: q.PluginCode, Answer: a})
	}
	return s
}

type Registry struct {
	mu   sync.Mutex
	runs map[string]*Run
}

func NewRegistry() *Registry {
	return &Registry{runs: map[string]*Run{}}
}

// Create starts a run of survey for owner at the given completion session.
func (r *Registry) Create(owner string, survey model.Survey, surId model.SurID, lat, lon float64) (Run, error) {
	state, err := questionnaire.New(survey.Questions)
	if err != nil {
		return Run{}, err
	}

	run := &Run{
		ID:         uuid.NewString(),
		Owner:      owner,
		SurveyName: survey.SurveyName,
		SurID:      surId,
		Checksum:   survey.Checksum,
		Lat:        lat,
		Lon:        lon,
		State:      state,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return *run, nil
}

func (r *Registry) Get(owner, id string) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, err := r.lookup(owner, id)
	if err != nil {
		return Run{}, err
	}
	return *run, nil
}

// Apply feeds e to the run's questionnaire. A rejected event leaves the run
// as it was.
func (r *Registry) Apply(owner, id string, e questionnaire.Event) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, err := r.lookup(owner, id)
	if err != nil {
		return Run{}, err
	}
	if run.inFlight {
		return *run, ErrInFlight
	}

	state, err := questionnaire.Reduce(run.State, e)
	if err != nil {
		return *run, err
	}
	run.State = state
	return *run, nil
}

// Begin marks a complete run as being submitted. Until Finish, Restart or
// Release is called, the run accepts no events and no other submission.
func (r *Registry) Begin(owner, id string) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, err := r.lookup(owner, id)
	if err != nil {
		return Run{}, err
	}
	if run.inFlight {
		return Run{}, ErrInFlight
	}
	if !run.State.Complete() {
		return Run{}, ErrNotComplete
	}
	run.inFlight = true
	return *run, nil
}

// Finish drops a run that has been submitted or queued.
func (r *Registry) Finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
}

// Restart sends a run back to its first question with no answers.
func (r *Registry) Restart(id string) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	state, err := questionnaire.Reduce(run.State, questionnaire.Reset{})
	if err != nil {
		return Run{}, err
	}
	run.State = state
	run.inFlight = false
	return *run, nil
}

// Release ends a submission that neither delivered nor queued the run.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		run.inFlight = false
	}
}

func (r *Registry) Delete(owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, err := r.lookup(owner, id)
	if err != nil {
		return err
	}
	if run.inFlight {
		return ErrInFlight
	}
	delete(r.runs, id)
	return nil
}

func (r *Registry) lookup(owner, id string) (*Run, error) {
	run, ok := r.runs[id]
	if !ok || run.Owner != owner {
		return nil, ErrNotFound
	}
	return run, nil
}
