// Package answer holds the typed answer of a single question, one variant
// per plugin code, with the predicates deciding whether a required question
// has been answered and the selection rules applied on user interaction.
package answer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mbolis/fieldsurvey/model"
	"github.com/shopspring/decimal"
)

var (
	ErrWrongType     = errors.New("answer does not fit question type")
	ErrUnknownOption = errors.New("option is not offered by question")
	ErrOutOfRange    = errors.New("star rating must be between 1 and 5")
)

// Answer is implemented by exactly one type per plugin code, plus Unsupported.
type Answer interface {
	Code() model.PluginCode
	// Empty reports whether the answer carries nothing worth submitting.
	Empty() bool

	isAnswer()
}

// Choice answers a CHO1 question. A nil Option means nothing is selected.
type Choice struct {
	Option *string
}

// Choices answers a CHOM question; Options keeps selection order.
type Choices struct {
	Options []string
}

type Text struct {
	Value string
}

type Money struct {
	Value string
}

type Number struct {
	Value string
}

type Date struct {
	Value string
}

// Stars answers a STR5 question; 0 means no rating.
type Stars struct {
	Value int
}

type Images struct {
	Images []model.Image
}

// Unsupported carries the raw value of a question whose plugin code the
// agent does not know. It is stored and replayed but never transmitted.
type Unsupported struct {
	PluginCode model.PluginCode
	Raw        []byte
}

func (Choice) Code() model.PluginCode { return model.SingleChoice }
func (Choices) Code() model.PluginCode { return model.MultiChoice }
func (Text) Code() model.PluginCode { return model.Text }
func (Money) Code() model.PluginCode { return model.Money }
func (Number) Code() model.PluginCode { return model.Number }
func (Date) Code() model.PluginCode { return model.Date }
func (Stars) Code() model.PluginCode { return model.StarRating }
func (Images) Code() model.PluginCode { return model.ImageList }
func (a Unsupported) Code() model.PluginCode { return a.PluginCode }

func (a Choice) Empty() bool { return a.Option == nil }
func (a Choices) Empty() bool { return len(a.Options) == 0 }
func (a Text) Empty() bool { return a.Value == "" }
func (a Money) Empty() bool { return strings.TrimSpace(a.Value) == "" }
func (a Number) Empty() bool { return strings.TrimSpace(a.Value) == "" }
func (a Date) Empty() bool { return a.Value == "" }
func (a Stars) Empty() bool { return a.Value == 0 }
func (a Images) Empty() bool { return len(a.Images) == 0 }
func (a Unsupported) Empty() bool { return len(a.Raw) == 0 || string(a.Raw) == "null" }

func (Choice) isAnswer() {}
func (Choices) isAnswer() {}
func (Text) isAnswer() {}
func (Money) isAnswer() {}
func (Number) isAnswer() {}
func (Date) isAnswer() {}
func (Stars) isAnswer() {}
func (Images) isAnswer() {}
func (Unsupported) isAnswer() {}

// Satisfies reports whether a (possibly nil) answer lets the user move past q.
//
// Optional questions never block. Hidden questions gate like any other:
// they are still served and answerable. Image lists never block, even when
// flagged required: pictures are optional in the field.
func Satisfies(q model.Question, a Answer) bool {
	if !q.IsRequired {
		return true
	}

	switch q.PluginCode {
	case model.SingleChoice:
		v, ok := a.(Choice)
		return ok && v.Option != nil
	case model.MultiChoice:
		v, ok := a.(Choices)
		return ok && len(v.Options) > 0
	case model.Text:
		v, ok := a.(Text)
		return ok && v.Value != ""
	case model.Money:
		v, ok := a.(Money)
		return ok && IsNumeric(v.Value)
	case model.Number:
		v, ok := a.(Number)
		return ok && IsNumeric(v.Value)
	case model.StarRating:
		v, ok := a.(Stars)
		return ok && v.Value >= 1 && v.Value <= 5
	case model.Date:
		v, ok := a.(Date)
		return ok && v.Value != ""
	case model.ImageList:
		return true
	default:
		return true
	}
}

// IsNumeric reports whether s is a non-blank decimal number.
func IsNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := decimal.NewFromString(s)
	return err == nil
}

// Select applies a tap on option: CHO1 selects it, or clears it when it is
// already selected; CHOM toggles its membership.
func Select(q model.Question, current Answer, option string) (Answer, error) {
	if len(q.Options) > 0 && !q.HasOption(option) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOption, option)
	}

	switch q.PluginCode {
	case model.SingleChoice:
		if prev, ok := current.(Choice); ok && prev.Option != nil && *prev.Option == option {
			return Choice{}, nil
		}
		return Choice{Option: &option}, nil

	case model.MultiChoice:
		prev, _ := current.(Choices)
		next := make([]string, 0, len(prev.Options)+1)
		found := false
		for _, o := range prev.Options {
			if o == option {
				found = true
				continue
			}
			next = append(next, o)
		}
		if !found {
			next = append(next, option)
		}
		return Choices{Options: next}, nil
	}
	return nil, fmt.Errorf("%w: cannot select an option on %s", ErrWrongType, q.PluginCode)
}

// Set replaces the value of a free-input question.
func Set(q model.Question, value string) (Answer, error) {
	switch q.PluginCode {
	case model.Text:
		return Text{Value: value}, nil
	case model.Money:
		return Money{Value: value}, nil
	case model.Number:
		return Number{Value: value}, nil
	case model.Date:
		return Date{Value: value}, nil
	}
	return nil, fmt.Errorf("%w: cannot set a value on %s", ErrWrongType, q.PluginCode)
}

// Rate selects a star value, clearing it when the same value is chosen again.
func Rate(q model.Question, current Answer, stars int) (Answer, error) {
	if q.PluginCode != model.StarRating {
		return nil, fmt.Errorf("%w: cannot rate %s", ErrWrongType, q.PluginCode)
	}
	if stars < 1 || stars > 5 {
		return nil, fmt.Errorf("%w: got %d", ErrOutOfRange, stars)
	}
	if prev, ok := current.(Stars); ok && prev.Value == stars {
		return Stars{}, nil
	}
	return Stars{Value: stars}, nil
}

// AddImages appends pictures to an image list.
func AddImages(q model.Question, current Answer, images ...model.Image) (Answer, error) {
	if q.PluginCode != model.ImageList {
		return nil, fmt.Errorf("%w: cannot attach images to %s", ErrWrongType, q.PluginCode)
	}
	prev, _ := current.(Images)
	next := make([]model.Image, 0, len(prev.Images)+len(images))
	next = append(next, prev.Images...)
	next = append(next, images...)
	return Images{Images: next}, nil
}

// RemoveImage drops every picture whose uri matches.
func RemoveImage(q model.Question, current Answer, uri string) (Answer, error) {
	if q.PluginCode != model.ImageList {
		return nil, fmt.Errorf("%w: cannot remove images from %s", ErrWrongType, q.PluginCode)
	}
	prev, _ := current.(Images)
	next := make([]model.Image, 0, len(prev.Images))
	for _, img := range prev.Images {
		if img.URI != uri {
			next = append(next, img)
		}
	}
	return Images{Images: next}, nil
}
