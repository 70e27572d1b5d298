package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"lycan-hq/arbiter/pkg/perspective"
)

// AgentConfig is the connection descriptor forwarded to the backend so it
// can reach its own LLM or command.
type AgentConfig struct {
	Provider      string `json:"provider"`
	APIURL        string `json:"api_url,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
	ModelName     string `json:"model_name"`
	APITimeoutSec int    `json:"api_timeout_sec"`
	CLICommand    string `json:"cli_command,omitempty"`
	CLITimeoutSec int    `json:"cli_timeout_sec"`
}

// ActRequest is the body of POST {endpoint}/act.
type ActRequest struct {
	SessionID      string           `json:"session_id"`
	PlayerID       string           `json:"player_id"`
	Role           string           `json:"role"`
	Phase          string           `json:"phase"`
	VisibleState   perspective.View `json:"visible_state"`
	PromptTemplate string           `json:"prompt_template"`
	AgentConfig    AgentConfig      `json:"agent_config"`
}

// Action is the structured decision of a backend. A nil Target means no
// target (skip, abstain, speak).
type Action struct {
	Type   string  `json:"type"`
	Target *string `json:"target"`
	Save   bool    `json:"save,omitempty"`
}

// TargetString returns the target or "" when there is none.
func (a Action) TargetString() string {
	if a.Target == nil {
		return ""
	}
	return *a.Target
}

// ActResponse is the validated body of a backend answer.
type ActResponse struct {
	Action    Action `json:"action"`
	Reasoning string `json:"reasoning"`
	Speech    string `json:"speech"`
	Thinking  string `json:"thinking"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

var (
	errMissingAction = errors.New("missing action object")
	errBadTarget     = errors.New("action.target must be string or null")
	errNoJSON        = errors.New("no JSON object in response")

	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")
)

// ExtractJSON returns the JSON object embedded in text: the whole text, a
// fenced code block, or the outermost brace block, in that order.
func ExtractJSON(text []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(text)
	if len(trimmed) == 0 {
		return nil, errNoJSON
	}
	if trimmed[0] == '{' && json.Valid(trimmed) {
		return trimmed, nil
	}
	if m := fencedJSON.FindSubmatch(trimmed); m != nil && json.Valid(m[1]) {
		return m[1], nil
	}
	start := bytes.IndexByte(trimmed, '{')
	end := bytes.LastIndexByte(trimmed, '}')
	if start >= 0 && end > start && json.Valid(trimmed[start:end+1]) {
		return trimmed[start : end+1], nil
	}
	return nil, errNoJSON
}

// ParseResponse extracts, validates and sanitizes a backend answer. The
// action must be a JSON object and its target a string or null. Free-text
// fields that are not strings are dropped.
func ParseResponse(body []byte, s *Sanitizer) (ActResponse, error) {
	raw, err := ExtractJSON(body)
	if err != nil {
		return ActResponse{}, err
	}

	var envelope struct {
		Action    json.RawMessage `json:"action"`
		Reasoning json.RawMessage `json:"reasoning"`
		Speech    json.RawMessage `json:"speech"`
		Thinking  json.RawMessage `json:"thinking"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ActResponse{}, fmt.Errorf("decode response: %w", err)
	}

	action := bytes.TrimSpace(envelope.Action)
	if len(action) == 0 || action[0] != '{' {
		return ActResponse{}, errMissingAction
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(action, &fields); err != nil {
		return ActResponse{}, fmt.Errorf("decode action: %w", err)
	}

	var out ActResponse
	out.Action.Type = stringField(fields["type"])
	if t := bytes.TrimSpace(fields["target"]); len(t) > 0 && !bytes.Equal(t, []byte("null")) {
		var target string
		if err := json.Unmarshal(t, &target); err != nil {
			return ActResponse{}, errBadTarget
		}
		out.Action.Target = &target
	}
	if sv := fields["save"]; len(sv) > 0 {
		_ = json.Unmarshal(sv, &out.Action.Save)
	}

	out.Reasoning = s.Text(stringField(envelope.Reasoning))
	out.Speech = s.Text(stringField(envelope.Speech))
	out.Thinking = s.Text(stringField(envelope.Thinking))
	if len(envelope.Timestamp) > 0 {
		_ = json.Unmarshal(envelope.Timestamp, &out.Timestamp)
	}
	return out, nil
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
