// Package client talks to the remote survey backend.
//
// Every call is a single attempt: no retries, no backoff. Timeouts are the
// ones of the underlying *http.Client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/mbolis/fieldsurvey/images"
	"github.com/mbolis/fieldsurvey/log"
	"github.com/mbolis/fieldsurvey/model"
	"github.com/mbolis/fieldsurvey/wire"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL = "https://stapi.simplifiedtrade.com/app/v2"

	// TokenHeader carries the session token issued at login.
	TokenHeader = "x-st3-token"

	unknownCompletion = "Unknown completion request"
)

var (
	// ErrUnknownCompletion matches start failures the backend reports for a
	// completion session it does not know; the run must be started over.
	ErrUnknownCompletion = errors.New("unknown completion request")

	// ErrRejected means the backend refused the credentials.
	ErrRejected = errors.New("credentials rejected")
)

// APIError is a non-success response from the backend.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnknownCompletion && strings.Contains(e.Body, unknownCompletion)
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// WithToken returns a client sending token on every call.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Login exchanges email and password for a backend session.
func (c *Client) Login(ctx context.Context, email, password string) (model.Session, error) {
	form := url.Values{
		"email":    {email},
		"password": {password},
	}
	body, err := c.do(ctx, "login", http.MethodPost, "/login/app",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			return model.Session{}, errors.Wrap(ErrRejected, apiErr.Error())
		}
		return model.Session{}, err
	}

	var session model.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return model.Session{}, errors.Wrap(err, "login: parse response")
	}
	if !session.Success || session.Token == "" {
		return model.Session{}, ErrRejected
	}
	return session, nil
}

// Surveys fetches the survey directory.
func (c *Client) Surveys(ctx context.Context) ([]model.Survey, error) {
	body, err := c.do(ctx, "surveys", http.MethodGet, "/surveys/json", "", nil)
	if err != nil {
		return nil, err
	}
	var surveys []model.Survey
	if err := json.Unmarshal(body, &surveys); err != nil {
		return nil, errors.Wrap(err, "surveys: parse response")
	}
	return surveys, nil
}

// Stores fetches the store directory.
func (c *Client) Stores(ctx context.Context) ([]model.Store, error) {
	body, err := c.do(ctx, "stores", http.MethodGet, "/stores/json", "", nil)
	if err != nil {
		return nil, err
	}
	var stores []model.Store
	if err := json.Unmarshal(body, &stores); err != nil {
		return nil, errors.Wrap(err, "stores: parse response")
	}
	return stores, nil
}

// Start opens a completion session at the given location.
func (c *Client) Start(ctx context.Context, surId model.SurID, lat, lon float64) error {
	path := fmt.Sprintf("/%s/start/%s/%s", url.PathEscape(string(surId)), coord(lat), coord(lon))
	_, err := c.do(ctx, "start", http.MethodPatch, path, "", nil)
	return err
}

// SubmitAnswer sends one question's answer.
func (c *Client) SubmitAnswer(ctx context.Context, surId model.SurID, body wire.Body) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "answer %d: encode", body.QuestionID)
	}
	path := fmt.Sprintf("/%s/answer", url.PathEscape(string(surId)))
	_, err = c.do(ctx, "answer", http.MethodPatch, path, "application/json", bytes.NewReader(data))
	return errors.Wrapf(err, "question %d", body.QuestionID)
}

// UploadImage sends the picture at index of an IMGL answer as the "file"
// field of a multipart form.
func (c *Client) UploadImage(ctx context.Context, surId model.SurID, questionID, index int, file images.File) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.ContentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return errors.Wrap(err, "upload: create part")
	}
	if _, err := part.Write(file.Data); err != nil {
		return errors.Wrap(err, "upload: write part")
	}
	if err := mw.Close(); err != nil {
		return errors.Wrap(err, "upload: close form")
	}

	path := fmt.Sprintf("/%s/upload/%d/%d", url.PathEscape(string(surId)), questionID, index)
	_, err = c.do(ctx, "upload", http.MethodPost, path, mw.FormDataContentType(), &buf)
	return errors.Wrapf(err, "question %d image %d", questionID, index)
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: build request", op)
	}
	if c.token != "" {
		req.Header.Set(TokenHeader, c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	log.Debugf("client.%s: %s %s", op, method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: %s %s", op, method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read response", op)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Op: op, Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
