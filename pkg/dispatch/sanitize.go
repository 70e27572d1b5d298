package dispatch

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"lycan-hq/arbiter/pkg/telemetry/logging"
)

// Default sanitizer caps.
const (
	DefaultTextCap    = 300
	DefaultPayloadCap = 1000
)

var (
	bannedWords = []string{"api_key", "password", "secret", "token"}
	maskedKeys  = map[string]bool{"api_key": true, "password": true, "secret": true, "token": true}
)

// Sanitizer scrubs backend free text and audit payloads.
type Sanitizer struct {
	textCap    int
	payloadCap int
	redactor   *logging.Redactor
}

// NewSanitizer creates a sanitizer with the given caps. Non-positive caps
// fall back to the defaults.
func NewSanitizer(textCap, payloadCap int) *Sanitizer {
	if textCap <= 0 {
		textCap = DefaultTextCap
	}
	if payloadCap <= 0 {
		payloadCap = DefaultPayloadCap
	}
	return &Sanitizer{
		textCap:    textCap,
		payloadCap: payloadCap,
		redactor:   logging.NewCredentialRedactor(),
	}
}

// Text redacts credential-looking substrings, masks the banned words in
// their lower and upper case forms and caps the result.
func (s *Sanitizer) Text(text string) string {
	if text == "" {
		return ""
	}
	cleaned := s.redactor.RedactString(text)
	for _, word := range bannedWords {
		cleaned = strings.ReplaceAll(cleaned, word, "***")
		cleaned = strings.ReplaceAll(cleaned, strings.ToUpper(word), "***")
	}
	return truncateRunes(cleaned, s.textCap)
}

// Payload renders v as JSON for the evidence trail with credential keys
// masked at any depth. Renderings longer than the payload cap are cut and
// wrapped as {"truncated": "..."}.
func (s *Sanitizer) Payload(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return ""
	}
	masked, err := json.Marshal(mask(tree))
	if err != nil {
		return ""
	}
	if utf8.RuneCount(masked) <= s.payloadCap {
		return string(masked)
	}
	wrapped, _ := json.Marshal(map[string]string{
		"truncated": truncateRunes(string(masked), s.payloadCap) + "...",
	})
	return string(wrapped)
}

func mask(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if maskedKeys[strings.ToLower(k)] {
				out[k] = "***"
				continue
			}
			out[k] = mask(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = mask(val)
		}
		return out
	}
	return v
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
