package ai

import (
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// RetryMessage is shown to users when a response could not be understood.
const RetryMessage = "The assistant returned an answer we could not read. Please try again."

// GenerationParseError reports model output that is not JSON of the expected
// shape. It is always safe to retry the request.
type GenerationParseError struct {
	Flow   string
	Reason string
	Raw    string
}

func (e *GenerationParseError) Error() string {
	return "ai " + e.Flow + ": " + e.Reason
}

// UserMessage returns the text shown to the user.
func (e *GenerationParseError) UserMessage() string { return RetryMessage }

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeObject parses raw as one JSON object and checks that every required
// field is present and a non-blank string.
func decodeObject(flow, raw string, required ...string) (map[string]string, error) {
	var obj map[string]any
	if err := sonic.UnmarshalString(stripFence(raw), &obj); err != nil || obj == nil {
		return nil, &GenerationParseError{Flow: flow, Reason: "response is not a JSON object", Raw: raw}
	}
	fields, reason := stringFields(obj, required)
	if reason != "" {
		return nil, &GenerationParseError{Flow: flow, Reason: reason, Raw: raw}
	}
	return fields, nil
}

// decodeArray parses raw as a JSON array of objects, each carrying the
// required string fields. An empty array yields an empty result.
func decodeArray(flow, raw string, required ...string) ([]map[string]string, error) {
	body := stripFence(raw)
	var arr []map[string]any
	if err := sonic.UnmarshalString(body, &arr); err != nil || !strings.HasPrefix(body, "[") {
		return nil, &GenerationParseError{Flow: flow, Reason: "response is not a JSON array of objects", Raw: raw}
	}
	out := make([]map[string]string, len(arr))
	for i, obj := range arr {
		fields, reason := stringFields(obj, required)
		if reason != "" {
			return nil, &GenerationParseError{Flow: flow, Reason: "element " + strconv.Itoa(i) + ": " + reason, Raw: raw}
		}
		out[i] = fields
	}
	return out, nil
}

func stringFields(obj map[string]any, required []string) (map[string]string, string) {
	if obj == nil {
		return nil, "element is not an object"
	}
	out := make(map[string]string, len(required))
	for _, name := range required {
		v, ok := obj[name]
		if !ok {
			return nil, "missing field " + name
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, "field " + name + " must be a non-empty string"
		}
		out[name] = strings.TrimSpace(s)
	}
	return out, ""
}
