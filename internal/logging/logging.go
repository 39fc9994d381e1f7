// Package logging configures the process logger and carries request-scoped fields.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

// New builds a logrus logger. format is "json" or "text"; unknown levels fall back to info.
func New(level, format string, out io.Writer) *logrus.Logger {
	l := logrus.New()
	if out == nil {
		out = os.Stdout
	}
	l.SetOutput(out)
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}

// Discard returns a logger that drops everything, for tests and optional wiring.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// WithRequestID stores the request id for later log entries.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithUserID stores the authenticated subject for later log entries.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userIDKey, uid)
}

// WithContext returns an entry annotated with the request_id and user_id found in ctx.
func WithContext(ctx context.Context, l logrus.FieldLogger) *logrus.Entry {
	fields := logrus.Fields{}
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		fields["request_id"] = v
	}
	if v, ok := ctx.Value(userIDKey).(string); ok && v != "" {
		fields["user_id"] = v
	}
	return l.WithFields(fields)
}
