package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mbolis/fieldsurvey/answer"
	"github.com/mbolis/fieldsurvey/model"
	"github.com/pkg/errors"
)

// Key names the single key/value entry holding the whole queue.
const Key = "savedSurveys"

// Survey is a completed run waiting to be transmitted.
type Survey struct {
	SurID    model.SurID `json:"surId"`
	Lat      float64     `json:"lat"`
	Lon      float64     `json:"lon"`
	Checksum string      `json:"checksum"`
	Data     []Entry     `json:"data"`
}

// Entry is one answered question of a queued survey.
type Entry struct {
	QuestionID int
	PluginCode model.PluginCode
	Answer     answer.Answer
}

type entryJSON struct {
	QuestionID int              `json:"questionId"`
	Answer     json.RawMessage  `json:"answer"`
	PluginCode model.PluginCode `json:"pluginCode"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	raw, err := answer.Encode(e.Answer)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{e.QuestionID, raw, e.PluginCode})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a, err := answer.Decode(raw.PluginCode, raw.Answer)
	if err != nil {
		return errors.Wrapf(err, "question %d", raw.QuestionID)
	}
	*e = Entry{QuestionID: raw.QuestionID, PluginCode: raw.PluginCode, Answer: a}
	return nil
}

// Total counts the questions across all queued surveys.
func Total(list []Survey) int {
	n := 0
	for _, s := range list {
		n += len(s.Data)
	}
	return n
}

// PendingCount counts the queued surveys that belong to one of the survey's
// completions and were answered against its current question set.
func PendingCount(list []Survey, survey model.Survey) int {
	n := 0
	for _, s := range list {
		if s.Checksum == survey.Checksum && survey.HasCompletion(s.SurID) {
			n++
		}
	}
	return n
}

// Store persists the queue as a whole.
type Store interface {
	Load(ctx context.Context) ([]Survey, error)
	Save(ctx context.Context, list []Survey) error
	Clear(ctx context.Context) error
}

// Queue serializes the load-mutate-store cycles on a Store.
type Queue struct {
	mu    sync.Mutex
	store Store
}

func New(store Store) *Queue {
	return &Queue{store: store}
}

func (q *Queue) Append(ctx context.Context, s Survey) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.store.Load(ctx)
	if err != nil {
		return err
	}
	return q.store.Save(ctx, append(list, s))
}

func (q *Queue) List(ctx context.Context) ([]Survey, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.Load(ctx)
}

// Settle removes the first n queued surveys, which a flush has just processed,
// and puts retained back at the head of the queue. Surveys appended after the
// flush loaded its batch are kept.
func (q *Queue) Settle(ctx context.Context, n int, retained []Survey) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.store.Load(ctx)
	if err != nil {
		return err
	}
	if n > len(list) {
		n = len(list)
	}

	next := make([]Survey, 0, len(retained)+len(list)-n)
	next = append(next, retained...)
	next = append(next, list[n:]...)
	if len(next) == 0 {
		return q.store.Clear(ctx)
	}
	return q.store.Save(ctx, next)
}

func decode(data []byte) ([]Survey, error) {
	var list []Survey
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}
