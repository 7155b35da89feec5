package hume

import (
	"encoding/json"
	"strings"

	"emotrack/internal/series"
)

var rateLimitPhrases = []string{"rate limit", "quota", "out of credits", "credit limit"}

var rateLimitCodes = map[string]struct{}{
	"rate_limit_exceeded": {},
	"quota_exceeded":      {},
	"E0300":               {}, // out of credits
	"E0301":               {}, // monthly limit reached
}

type prediction struct {
	Emotions []series.EmotionScore `json:"emotions"`
}

type predictionSet struct {
	Predictions []prediction `json:"predictions"`
}

// streamResponse holds the top-level fields of a stream message. Each envelope
// shape is decoded on its own so a malformed field cannot hide a valid one.
type streamResponse struct {
	Error  json.RawMessage
	Code   string
	fields map[string]json.RawMessage
}

func decodeResponse(message []byte) (*streamResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(message, &fields); err != nil {
		return nil, err
	}
	return &streamResponse{
		Error:  fields["error"],
		Code:   codeString(fields["code"]),
		fields: fields,
	}, nil
}

// codeString accepts codes sent as strings or numbers.
func codeString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String()
	}
	return ""
}

func decodeSet(raw json.RawMessage) []series.EmotionScore {
	if len(raw) == 0 {
		return nil
	}
	var set predictionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil
	}
	return firstEmotions(set.Predictions)
}

// extractor returns the emotions found under one envelope shape, or nil.
type extractor func(fields map[string]json.RawMessage) []series.EmotionScore

// extractors are probed in order; the first non-nil result wins.
var extractors = []extractor{
	func(fields map[string]json.RawMessage) []series.EmotionScore {
		return decodeSet(fields["face"])
	},
	func(fields map[string]json.RawMessage) []series.EmotionScore {
		raw := fields["predictions"]
		if len(raw) == 0 {
			return nil
		}
		var preds []prediction
		if err := json.Unmarshal(raw, &preds); err != nil {
			return nil
		}
		return firstEmotions(preds)
	},
	func(fields map[string]json.RawMessage) []series.EmotionScore {
		raw := fields["models"]
		if len(raw) == 0 {
			return nil
		}
		var models map[string]json.RawMessage
		if err := json.Unmarshal(raw, &models); err != nil {
			return nil
		}
		return decodeSet(models["face"])
	},
}

func firstEmotions(preds []prediction) []series.EmotionScore {
	if len(preds) == 0 {
		return nil
	}
	return preds[0].Emotions
}

// ExtractEmotions tries the known response shapes in priority order.
func (r *streamResponse) ExtractEmotions() []series.EmotionScore {
	for _, extract := range extractors {
		if emotions := extract(r.fields); emotions != nil {
			return emotions
		}
	}
	return nil
}

// ErrorMessage returns the error text whether the service sent a string or an
// object with a message field.
func (r *streamResponse) ErrorMessage() string {
	if len(r.Error) == 0 || string(r.Error) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(r.Error, &text); err == nil {
		return text
	}
	var obj struct {
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(r.Error, &obj); err == nil {
		if code := codeString(obj.Code); code != "" && r.Code == "" {
			r.Code = code
		}
		return obj.Message
	}
	return string(r.Error)
}

// IsRateLimited reports whether an error message or code signals rate
// limiting, quota exhaustion, or credit exhaustion.
func IsRateLimited(message, code string) bool {
	if _, ok := rateLimitCodes[strings.TrimSpace(code)]; ok {
		return true
	}
	lower := strings.ToLower(message)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
