package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// redactionRule replaces matches of re. When keepPrefix is set the first
// capture group (a field name or scheme) is kept and only the value is masked.
type redactionRule struct {
	re         *regexp.Regexp
	keepPrefix bool
}

func (r redactionRule) apply(s string) string {
	if r.keepPrefix {
		return r.re.ReplaceAllString(s, "${1}"+redacted)
	}
	return r.re.ReplaceAllString(s, redacted)
}

// Redactor masks credentials in log output.
type Redactor struct {
	rules []redactionRule
}

// NewRedactor returns a redactor for provider API keys, bearer tokens,
// AWS access keys and credential-named fields.
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []redactionRule{
			{re: regexp.MustCompile(`sk-(?:ant-)?[A-Za-z0-9_-]{20,}`)},
			{re: regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
			{re: regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`), keepPrefix: true},
			{
				re:         regexp.MustCompile(`(?i)(\b(?:api[_-]?key|x-api-key|password|pwd|secret|token)"?\s*[:=]\s*"?)[^\s",}]+`),
				keepPrefix: true,
			},
		},
	}
}

// AddPattern masks every match of pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, redactionRule{re: re})
	return nil
}

// Redact returns s with every credential masked.
func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.apply(s)
	}
	return s
}

// Wrap returns a writer that redacts each write before passing it to w.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{writer: w, redactor: r}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success since callers track their own buffer,
// not the redacted one.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.writer, w.redactor.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
