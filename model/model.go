package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// PluginCode identifies the answer-input type of a question.
type PluginCode string

const (
	SingleChoice PluginCode = "CHO1"
	MultiChoice  PluginCode = "CHOM"
	Text         PluginCode = "TXT"
	Money        PluginCode = "MNY"
	Number       PluginCode = "NUM"
	Date         PluginCode = "DATE"
	StarRating   PluginCode = "STR5"
	ImageList    PluginCode = "IMGL"
)

// Known reports whether the code is one the agent knows how to collect.
func (c PluginCode) Known() bool {
	switch c {
	case SingleChoice, MultiChoice, Text, Money, Number, Date, StarRating, ImageList:
		return true
	}
	return false
}

type Survey struct {
	SurveyName  string       `json:"surveyName"`
	Questions   []Question   `json:"surveyQuestions"`
	Checksum    string       `json:"checksum"`
	ExpiryDate  string       `json:"expiryDate,omitempty"`
	Completions []Completion `json:"completions"`
	Count       int          `json:"count"`
}

// UnmarshalJSON assigns every question its position in the question list as id.
func (s *Survey) UnmarshalJSON(data []byte) error {
	type survey Survey
	var raw survey
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Survey(raw)
	s.IndexQuestions()
	return nil
}

// IndexQuestions sets each question id to its 0-based index.
func (s *Survey) IndexQuestions() {
	for i := range s.Questions {
		s.Questions[i].ID = i
	}
}

// HasCompletion reports whether surId is one of the survey's completion sessions.
func (s Survey) HasCompletion(surId SurID) bool {
	for _, c := range s.Completions {
		if c.SurID == surId {
			return true
		}
	}
	return false
}

type Question struct {
	ID             int        `json:"id"`
	PluginCode     PluginCode `json:"pluginCode"`
	Question       string     `json:"question"`
	AdditionalText string     `json:"additionalText,omitempty"`
	IsRequired     bool       `json:"isRequired"`
	IsHidden       bool       `json:"isHidden"`
	Options        []Option   `json:"options,omitempty"`
}

// HasOption reports whether option is one of the question's choices.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o.Option == option {
			return true
		}
	}
	return false
}

type Option struct {
	Option         string `json:"option"`
	AdditionalText string `json:"additionalText,omitempty"`
}

type Completion struct {
	SurID        SurID  `json:"surId"`
	LocationName string `json:"locationName"`
}

type Store struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Image describes one picture attached to an IMGL answer.
type Image struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// SurID is the server-assigned id of a survey-at-location completion session.
// The backend is not consistent about sending it as a number or a string.
type SurID string

func (id *SurID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SurID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = SurID(n.String())
	return nil
}

// Session is what the backend hands out on a successful login.
type Session struct {
	Success               bool            `json:"success"`
	Token                 string          `json:"token"`
	GPSFeature            Flag            `json:"gpsFeature"`
	HighResolutionUploads Flag            `json:"highResolutionUploads"`
	Roles                 json.RawMessage `json:"roles,omitempty"`
	Menu                  json.RawMessage `json:"menu,omitempty"`
	Locations             json.RawMessage `json:"locations,omitempty"`
}

// Flag decodes booleans sent as true/false, 0/1 or their string forms.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "", "null", "false", "0", "no", "off":
		*f = false
		return nil
	case "true", "yes", "on":
		*f = true
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = n != 0
	return nil
}
