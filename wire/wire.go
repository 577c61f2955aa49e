// Package wire builds the request body of the remote answer endpoint.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mbolis/fieldsurvey/answer"
)

// ErrUnsupported marks an answer that is never sent. Callers skip the
// question without treating it as a failure.
var ErrUnsupported = errors.New("plugin code is not submitted")

// Body is the JSON document sent with PATCH /{surId}/answer.
type Body struct {
	QuestionID int              `json:"question_id"`
	Answers    map[string][]any `json:"answers"`
}

type imageRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Encode maps one question's answer onto its wire body.
//
// Choice questions go under "option", everything else under
// "answer_content", always as a list. Image lists travel as a single
// JSON-encoded string describing each picture by its index; the bytes
// themselves are uploaded separately.
func Encode(questionID int, a answer.Answer) (Body, error) {
	body := Body{QuestionID: questionID}

	switch v := a.(type) {
	case answer.Images:
		refs := make([]imageRef, len(v.Images))
		for i, img := range v.Images {
			refs[i] = imageRef{Key: strconv.Itoa(i), Name: img.Name, URI: img.URI}
		}
		list, err := json.Marshal(refs)
		if err != nil {
			return Body{}, fmt.Errorf("wire.images: %w", err)
		}
		body.Answers = map[string][]any{"answer_content": {string(list)}}

	case answer.Choice:
		var option any
		if v.Option != nil {
			option = *v.Option
		}
		body.Answers = map[string][]any{"option": {option}}

	case answer.Choices:
		options := make([]any, len(v.Options))
		for i, o := range v.Options {
			options[i] = o
		}
		body.Answers = map[string][]any{"option": options}

	case answer.Text:
		body.Answers = content(v.Value)
	case answer.Money:
		body.Answers = content(v.Value)
	case answer.Number:
		body.Answers = content(v.Value)
	case answer.Date:
		body.Answers = content(v.Value)

	case answer.Stars:
		var stars any
		if v.Value != 0 {
			stars = v.Value
		}
		body.Answers = content(stars)

	case answer.Unsupported:
		return Body{}, fmt.Errorf("%w: %s", ErrUnsupported, v.PluginCode)
	default:
		return Body{}, fmt.Errorf("%w: %T", ErrUnsupported, a)
	}

	return body, nil
}

func content(v any) map[string][]any {
	return map[string][]any{"answer_content": {v}}
}
