package logging

import (
	"log/slog"
	"regexp"
	"strings"

	"lycan-hq/arbiter/pkg/config"
)

// rule rewrites every match of re with repl.
type rule struct {
	name string
	re   *regexp.Regexp
	repl string
}

func mustRule(name, expr, repl string) rule {
	return rule{name: name, re: regexp.MustCompile(expr), repl: repl}
}

// credentialRules mask seat and judge API credentials. They run first so a
// key is gone before any other rule sees it.
var credentialRules = []rule{
	mustRule("api_key", `(sk-[a-zA-Z0-9]+|api[-_]?key[-_:]\s*[a-zA-Z0-9]+)`, "sk-***"),
	mustRule("bearer_token", `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"),
	mustRule("password", `(password|passwd|pwd)[:=]\s*[^\s]+`, "$1: ***"),
}

// contactRules mask operator contact details and agent addresses. They are
// off for game text because seat numbers and vote counts trip them.
var contactRules = []rule{
	mustRule("email", `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "<email>"),
	mustRule("ipv6", `\b(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}\b`, "<ip>"),
	mustRule("ipv4", `\b(?:\d{1,3}\.){3}\d{1,3}\b`, "<ip>"),
	mustRule("phone", `\+?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`, "<phone>"),
}

// sensitiveKeys mark attributes whose whole value is masked regardless of
// content.
var sensitiveKeys = []string{
	"password", "passwd", "pwd", "secret", "token",
	"api_key", "apikey", "authorization", "private_key",
}

// Redactor masks credentials, and optionally contact details, in log
// attributes and free text. A zero Redactor is not usable; build one with
// NewRedactor or NewCredentialRedactor.
type Redactor struct {
	rules []rule
}

// NewRedactor applies the credential and contact rules, then custom.
// Custom patterns that fail to compile are skipped; config validation
// reports them.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{rules: append(append([]rule{}, credentialRules...), contactRules...)}
	for _, p := range custom {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.rules = append(r.rules, rule{name: p.Name, re: re, repl: p.Replacement})
	}
	return r
}

// NewCredentialRedactor masks only credentials. It is the one safe to run
// over seat speech.
func NewCredentialRedactor() *Redactor {
	return &Redactor{rules: credentialRules}
}

// RedactString applies every rule to s in order.
func (r *Redactor) RedactString(s string) string {
	for _, ru := range r.rules {
		if s == "" {
			break
		}
		s = ru.re.ReplaceAllString(s, ru.repl)
	}
	return s
}

// RedactAttr redacts a, recursing into groups. Sensitive keys keep a four
// character prefix of string values so operators can tell keys apart.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindString:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, mask(a.Value.String()))
		}
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok && err != nil {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, "***")
	}
	return a
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

func mask(v string) string {
	if len(v) <= 4 {
		if v == "" {
			return ""
		}
		return "***"
	}
	return v[:4] + "***"
}
