package answer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mbolis/fieldsurvey/model"
)

var null = json.RawMessage("null")

// Encode renders the answer as the bare JSON value stored in the offline
// queue: a string or null for CHO1, a list for CHOM, a string for free
// input, a number or null for STR5 and a list of descriptors for IMGL.
func Encode(a Answer) (json.RawMessage, error) {
	switch v := a.(type) {
	case nil:
		return null, nil
	case Choice:
		if v.Option == nil {
			return null, nil
		}
		return json.Marshal(*v.Option)
	case Choices:
		if v.Options == nil {
			return json.RawMessage("[]"), nil
		}
		return json.Marshal(v.Options)
	case Text:
		return json.Marshal(v.Value)
	case Money:
		return json.Marshal(v.Value)
	case Number:
		return json.Marshal(v.Value)
	case Date:
		return json.Marshal(v.Value)
	case Stars:
		if v.Value == 0 {
			return null, nil
		}
		return json.Marshal(v.Value)
	case Images:
		if v.Images == nil {
			return json.RawMessage("[]"), nil
		}
		return json.Marshal(v.Images)
	case Unsupported:
		if len(v.Raw) == 0 {
			return null, nil
		}
		return json.RawMessage(v.Raw), nil
	}
	return nil, fmt.Errorf("answer.encode: unexpected type %T", a)
}

// Decode is the inverse of Encode for the given plugin code.
func Decode(code model.PluginCode, raw json.RawMessage) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	isNull := len(raw) == 0 || bytes.Equal(raw, null)

	switch code {
	case model.SingleChoice:
		if isNull {
			return Choice{}, nil
		}
		// the option may have been stored already wrapped in a list
		if raw[0] == '[' {
			var opts []string
			if err := json.Unmarshal(raw, &opts); err != nil {
				return nil, decodeErr(code, err)
			}
			if len(opts) == 0 {
				return Choice{}, nil
			}
			return Choice{Option: &opts[0]}, nil
		}
		s, err := scalar(raw)
		if err != nil {
			return nil, decodeErr(code, err)
		}
		return Choice{Option: &s}, nil

	case model.MultiChoice:
		if isNull {
			return Choices{}, nil
		}
		var opts []string
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, decodeErr(code, err)
		}
		return Choices{Options: opts}, nil

	case model.Text, model.Money, model.Number, model.Date:
		var s string
		if !isNull {
			var err error
			if s, err = scalar(raw); err != nil {
				return nil, decodeErr(code, err)
			}
		}
		switch code {
		case model.Text:
			return Text{Value: s}, nil
		case model.Money:
			return Money{Value: s}, nil
		case model.Number:
			return Number{Value: s}, nil
		default:
			return Date{Value: s}, nil
		}

	case model.StarRating:
		if isNull {
			return Stars{}, nil
		}
		s, err := scalar(raw)
		if err != nil {
			return nil, decodeErr(code, err)
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, decodeErr(code, err)
		}
		return Stars{Value: n}, nil

	case model.ImageList:
		if isNull {
			return Images{}, nil
		}
		var imgs []model.Image
		if err := json.Unmarshal(raw, &imgs); err != nil {
			return nil, decodeErr(code, err)
		}
		return Images{Images: imgs}, nil
	}

	if isNull {
		return Unsupported{PluginCode: code}, nil
	}
	return Unsupported{PluginCode: code, Raw: append([]byte(nil), raw...)}, nil
}

// scalar reads a JSON string or number as its textual form.
func scalar(raw json.RawMessage) (string, error) {
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func decodeErr(code model.PluginCode, err error) error {
	return fmt.Errorf("answer.decode %s: %w", code, err)
}
