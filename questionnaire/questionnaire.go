// Package questionnaire drives one linear traversal of a survey's questions.
//
// A State is a value: Reduce never mutates its input, it returns the state
// that results from applying an event. The traversal is either at question
// i, for i in [0, n), or complete; moving past the last question completes
// it rather than advancing the index.
package questionnaire

import (
	"errors"
	"fmt"

	"github.com/mbolis/fieldsurvey/answer"
	"github.com/mbolis/fieldsurvey/model"
)

var (
	ErrNoQuestions = errors.New("survey has no questions")
	ErrNotAnswered = errors.New("current question is not answered")
	ErrComplete    = errors.New("questionnaire is complete")
	ErrNotCurrent  = errors.New("question is not the current one")
)

type State struct {
	questions []model.Question
	index     int
	complete  bool
	answers   map[int]answer.Answer
}

// New starts a traversal at the first question.
func New(questions []model.Question) (State, error) {
	if len(questions) == 0 {
		return State{}, ErrNoQuestions
	}
	return State{
		questions: questions,
		answers:   map[int]answer.Answer{},
	}, nil
}

func (s State) Index() int { return s.index }
func (s State) Total() int { return len(s.questions) }
func (s State) Complete() bool { return s.complete }
func (s State) Current() model.Question { return s.questions[s.index] }

func (s State) Questions() []model.Question {
	return s.questions
}

// Answer returns the answer recorded for question id, or nil.
func (s State) Answer(id int) answer.Answer {
	return s.answers[id]
}

// Progress is the share of the survey reached, in percent.
func (s State) Progress() float64 {
	if len(s.questions) == 0 {
		return 0
	}
	if s.complete {
		return 100
	}
	return float64(s.index+1) / float64(len(s.questions)) * 100
}

// CanAdvance reports whether Next would be accepted.
func (s State) CanAdvance() bool {
	if s.complete || len(s.questions) == 0 {
		return false
	}
	q := s.Current()
	return answer.Satisfies(q, s.answers[q.ID])
}

// Event is one user interaction with the questionnaire.
type Event interface {
	apply(State) (State, error)
}

// Select taps an option of a CHO1 or CHOM question.
type Select struct {
	QuestionID int
	Option     string
}

// SetValue replaces the value of a TXT, MNY, NUM or DATE question.
type SetValue struct {
	QuestionID int
	Value      string
}

// Rate taps a star of a STR5 question.
type Rate struct {
	QuestionID int
	Stars      int
}

// AddImages attaches freshly picked pictures to an IMGL question.
type AddImages struct {
	QuestionID int
	Images     []model.Image
}

type RemoveImage struct {
	QuestionID int
	URI        string
}

type Next struct{}

type Previous struct{}

// Reset discards every answer and returns to the first question.
type Reset struct{}

// Reduce applies e to s. On error the returned state is s unchanged.
func Reduce(s State, e Event) (State, error) {
	if len(s.questions) == 0 {
		return s, ErrNoQuestions
	}
	next, err := e.apply(s)
	if err != nil {
		return s, err
	}
	return next, nil
}

func (e Select) apply(s State) (State, error) {
	return s.update(e.QuestionID, func(q model.Question, cur answer.Answer) (answer.Answer, error) {
		return answer.Select(q, cur, e.Option)
	})
}

func (e SetValue) apply(s State) (State, error) {
	return s.update(e.QuestionID, func(q model.Question, _ answer.Answer) (answer.Answer, error) {
		return answer.Set(q, e.Value)
	})
}

func (e Rate) apply(s State) (State, error) {
	return s.update(e.QuestionID, func(q model.Question, cur answer.Answer) (answer.Answer, error) {
		return answer.Rate(q, cur, e.Stars)
	})
}

func (e AddImages) apply(s State) (State, error) {
	return s.update(e.QuestionID, func(q model.Question, cur answer.Answer) (answer.Answer, error) {
		return answer.AddImages(q, cur, e.Images...)
	})
}

func (e RemoveImage) apply(s State) (State, error) {
	return s.update(e.QuestionID, func(q model.Question, cur answer.Answer) (answer.Answer, error) {
		return answer.RemoveImage(q, cur, e.URI)
	})
}

func (Next) apply(s State) (State, error) {
	if s.complete {
		return s, ErrComplete
	}
	if !s.CanAdvance() {
		return s, fmt.Errorf("%w: question %d", ErrNotAnswered, s.Current().ID)
	}
	if s.index == len(s.questions)-1 {
		s.complete = true
		return s, nil
	}
	s.index++
	return s, nil
}

func (Previous) apply(s State) (State, error) {
	switch {
	case s.complete:
		// back from the review step to the last question
		s.complete = false
	case s.index > 0:
		s.index--
	}
	return s, nil
}

func (Reset) apply(s State) (State, error) {
	return New(s.questions)
}

// update records the answer computed by fn for the current question.
func (s State) update(id int, fn func(model.Question, answer.Answer) (answer.Answer, error)) (State, error) {
	if s.complete {
		return s, ErrComplete
	}
	q := s.Current()
	if q.ID != id {
		return s, fmt.Errorf("%w: got %d, at %d", ErrNotCurrent, id, q.ID)
	}

	a, err := fn(q, s.answers[id])
	if err != nil {
		return s, err
	}

	answers := make(map[int]answer.Answer, len(s.answers)+1)
	for k, v := range s.answers {
		answers[k] = v
	}
	answers[id] = a
	s.answers = answers
	return s, nil
}
