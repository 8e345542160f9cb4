// Package obslog wraps log/slog with the kernel's fixed redaction list.
//
// User-visible failures are structured and do not expose stack traces in
// production builds; correlation ids are attached for cross-referencing
// logs, and a fixed field list is redacted by default.
package obslog

import (
	"context"
	"log/slog"
)

// redactedFields is the fixed list of attribute keys that never leave the
// process in cleartext.
var redactedFields = map[string]struct{}{
	"actor_id":   {},
	"from_actor": {},
	"to_actor":   {},
	"amount":     {},
	"token":      {},
	"key":        {},
}

const redactedPlaceholder = "[redacted]"

// RedactingHandler wraps an slog.Handler and masks redacted attribute
// values before they are handed to the underlying handler.
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler wraps next with redaction.
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	redacted := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, redacted)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(out)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if _, ok := redactedFields[a.Key]; ok {
		return slog.String(a.Key, redactedPlaceholder)
	}
	return a
}

// New builds a redacting *slog.Logger writing through next.
func New(next slog.Handler) *slog.Logger {
	return slog.New(NewRedactingHandler(next))
}
