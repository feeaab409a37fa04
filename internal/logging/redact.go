// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redaction replaces personal data in log output.
const Redaction = "***"

// Separator splits key=value pairs inside log messages.
const Separator = ";"

// PIIFields are the attribute names treated as personal data by default.
var PIIFields = []string{"name", "email", "phone", "ssn", "password"}

// FilterDatum replaces the value of every field=value pair in message with
// redaction. message is split on separator and, within each segment,
// everything after "field=" is replaced.
func FilterDatum(fields []string, redaction, message, separator string) string {
	return newFilter(fields, redaction).apply(message, separator)
}

type filter struct {
	patterns    []*regexp.Regexp
	replacement string
}

func newFilter(fields []string, redaction string) *filter {
	f := &filter{
		patterns:    make([]*regexp.Regexp, 0, len(fields)),
		replacement: "${1}" + strings.ReplaceAll(redaction, "$", "$$"),
	}
	for _, field := range fields {
		f.patterns = append(f.patterns, regexp.MustCompile("("+regexp.QuoteMeta(field)+"=).*"))
	}
	return f
}

func (f *filter) apply(message, separator string) string {
	if message == "" || len(f.patterns) == 0 {
		return message
	}
	parts := []string{message}
	if separator != "" {
		parts = strings.Split(message, separator)
	}
	for _, re := range f.patterns {
		for i, part := range parts {
			parts[i] = re.ReplaceAllString(part, f.replacement)
		}
	}
	return strings.Join(parts, separator)
}

// RedactingHandler masks personal data before passing records on. Attributes
// whose key names a PII field are replaced with Redaction, and field=value
// pairs in the message and in string attributes are filtered with
// FilterDatum.
type RedactingHandler struct {
	handler slog.Handler
	fields  map[string]bool
	filter  *filter
}

// NewRedactingHandler wraps h, redacting fields (matched case-insensitively
// for attribute keys).
func NewRedactingHandler(h slog.Handler, fields []string) *RedactingHandler {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = true
	}
	return &RedactingHandler{
		handler: h,
		fields:  set,
		filter:  newFilter(fields, Redaction),
	}
}

// Enabled returns true if the level is enabled.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle redacts the record and passes it on.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.filter.apply(r.Message, Separator), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, out)
}

// WithAttrs returns a new handler with the given attributes redacted.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &RedactingHandler{handler: h.handler.WithAttrs(redacted), fields: h.fields, filter: h.filter}
}

// WithGroup returns a new handler with the given group.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{handler: h.handler.WithGroup(name), fields: h.fields, filter: h.filter}
}

func (h *RedactingHandler) redact(a slog.Attr) slog.Attr {
	if h.fields[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redaction)
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		redacted := make([]any, len(group))
		for i, ga := range group {
			redacted[i] = h.redact(ga)
		}
		return slog.Group(a.Key, redacted...)
	case slog.KindString:
		return slog.String(a.Key, h.filter.apply(v.String(), Separator))
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}
