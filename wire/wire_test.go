package wire

import (
	"encoding/json"
	"testing"

	"github.com/mbolis/fieldsurvey/answer"
	"github.com/mbolis/fieldsurvey/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJSON(t *testing.T, id int, a answer.Answer) string {
	t.Helper()
	body, err := Encode(id, a)
	require.NoError(t, err)
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return string(data)
}

func TestEncode_Choices(t *testing.T) {
	got := encodeJSON(t, 4, answer.Choices{Options: []string{"A", "B"}})
	assert.JSONEq(t, `{"question_id":4,"answers":{"option":["A","B"]}}`, got)

	a := "A"
	got = encodeJSON(t, 0, answer.Choice{Option: &a})
	assert.JSONEq(t, `{"question_id":0,"answers":{"option":["A"]}}`, got)

	got = encodeJSON(t, 1, answer.Choices{})
	assert.JSONEq(t, `{"question_id":1,"answers":{"option":[]}}`, got)
}

func TestEncode_Scalars(t *testing.T) {
	assert.JSONEq(t, `{"question_id":2,"answers":{"answer_content":["hello"]}}`,
		encodeJSON(t, 2, answer.Text{Value: "hello"}))
	assert.JSONEq(t, `{"question_id":3,"answers":{"answer_content":["12.50"]}}`,
		encodeJSON(t, 3, answer.Money{Value: "12.50"}))
	assert.JSONEq(t, `{"question_id":5,"answers":{"answer_content":[4]}}`,
		encodeJSON(t, 5, answer.Stars{Value: 4}))
	assert.JSONEq(t, `{"question_id":6,"answers":{"answer_content":["2024-05-31"]}}`,
		encodeJSON(t, 6, answer.Date{Value: "2024-05-31"}))
}

func TestEncode_ImagesAreStringified(t *testing.T) {
	body, err := Encode(7, answer.Images{Images: []model.Image{
		{URI: "file:///a.jpg", Name: "a.jpg", Type: "image"},
		{URI: "file:///b.png", Name: "b.png", Type: "image"},
	}})
	require.NoError(t, err)

	require.Len(t, body.Answers["answer_content"], 1)
	list, ok := body.Answers["answer_content"][0].(string)
	require.True(t, ok)
	assert.Equal(t,
		`[{"key":"0","name":"a.jpg","uri":"file:///a.jpg"},{"key":"1","name":"b.png","uri":"file:///b.png"}]`,
		list)
}

func TestEncode_UnsupportedIsSkipped(t *testing.T) {
	_, err := Encode(8, answer.Unsupported{PluginCode: "SIGN", Raw: []byte(`"x"`)})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Encode(8, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}
