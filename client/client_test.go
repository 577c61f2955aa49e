package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mbolis/fieldsurvey/answer"
	"github.com/mbolis/fieldsurvey/images"
	"github.com/mbolis/fieldsurvey/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client()).WithToken("tok")
	require.NoError(t, c.Start(context.Background(), "991", 34.05, -118.25))

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPatch, got.Method)
	assert.Equal(t, "/991/start/34.05/-118.25", got.URL.Path)
	assert.Equal(t, "tok", got.Header.Get(TokenHeader))
}

func TestStart_UnknownCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Unknown completion request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := New(srv.URL, srv.Client()).Start(context.Background(), "1", 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCompletion)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestStart_OtherFailureIsNotUnknownCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(srv.URL, srv.Client()).Start(context.Background(), "1", 0, 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownCompletion)
}

func TestSubmitAnswer(t *testing.T) {
	var body map[string]any
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/7/answer", r.URL.Path)
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	}))
	defer srv.Close()

	b, err := wire.Encode(2, answer.Choices{Options: []string{"A", "B"}})
	require.NoError(t, err)
	require.NoError(t, New(srv.URL, srv.Client()).SubmitAnswer(context.Background(), "7", b))

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, map[string]any{
		"question_id": float64(2),
		"answers":     map[string]any{"option": []any{"A", "B"}},
	}, body)
}

func TestUploadImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/7/upload/3/1", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get(TokenHeader))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)

		assert.Equal(t, "shelf.jpg", hdr.Filename)
		assert.Equal(t, "image/jpg", hdr.Header.Get("Content-Type"))
		assert.Equal(t, []byte("jpeg-bytes"), data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := New(srv.URL, srv.Client()).WithToken("tok").UploadImage(context.Background(), "7", 3, 1, images.File{
		Name:        "shelf.jpg",
		ContentType: images.ContentType("shelf.jpg"),
		Data:        []byte("jpeg-bytes"),
	})
	require.NoError(t, err)
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login/app", r.URL.Path)
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("password") != "secret" {
			w.Write([]byte(`{"success":false}`))
			return
		}
		assert.Equal(t, "field@example.com", r.PostForm.Get("email"))
		w.Write([]byte(`{"success":true,"token":"tok","gpsFeature":1,"highResolutionUploads":false}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	session, err := c.Login(context.Background(), "field@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", session.Token)
	assert.True(t, bool(session.GPSFeature))
	assert.False(t, bool(session.HighResolutionUploads))

	_, err = c.Login(context.Background(), "field@example.com", "wrong")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestSurveys_IndexesQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get(TokenHeader))
		w.Write([]byte(`[{"surveyName":"Shelf check","checksum":"c1","count":1,
			"completions":[{"surId":991,"locationName":"0012 Alb SCA"}],
			"surveyQuestions":[{"pluginCode":"TXT","question":"Name?"},{"pluginCode":"CHO1","question":"Ok?","options":[{"option":"Yes"}]}]}]`))
	}))
	defer srv.Close()

	surveys, err := New(srv.URL, srv.Client()).WithToken("tok").Surveys(context.Background())
	require.NoError(t, err)
	require.Len(t, surveys, 1)
	assert.Equal(t, 0, surveys[0].Questions[0].ID)
	assert.Equal(t, 1, surveys[0].Questions[1].ID)
	assert.True(t, surveys[0].HasCompletion("991"))
}
