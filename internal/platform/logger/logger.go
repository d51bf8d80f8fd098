// Package logger builds the slog.Logger shared by the mediator binaries:
// colored console output via tint, an optional rotated JSON file and
// redaction of credentials that travel in request headers.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

// SensitiveKeys are redacted by New. Header names are compared case-insensitively.
var SensitiveKeys = []string{
	"authorization", "proxy-authorization", "cookie", "set-cookie",
	"x-api-key", "api_key", "password", "secret", "token",
}

// Options defines parameters for logger creation.
type Options struct {
	Env          string
	ConsoleLevel string // default: info
	FileLevel    string // default: debug
	// ConsoleJSON switches the console to JSON lines, for log collectors.
	ConsoleJSON bool
	File        string
	App         string
	// Console defaults to os.Stdout.
	Console io.Writer
}

// New creates the logger and a function releasing its file.
func New(o Options) (*slog.Logger, func() error) {
	out := o.Console
	if out == nil {
		out = os.Stdout
	}
	consoleLvl := ParseLevel(o.ConsoleLevel, slog.LevelInfo)

	var console slog.Handler
	switch {
	case o.ConsoleJSON:
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: consoleLvl})
	case o.Env == "dev":
		console = tint.NewHandler(out, &tint.Options{Level: consoleLvl, TimeFormat: time.Kitchen})
	default:
		console = tint.NewHandler(out, &tint.Options{Level: consoleLvl, TimeFormat: time.RFC3339, NoColor: out != os.Stdout})
	}
	handlers := []slog.Handler{NewRedactingHandler(console, SensitiveKeys)}

	closer := func() error { return nil }
	if o.File != "" {
		w := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		closer = w.Close
		fh := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(o.FileLevel, slog.LevelDebug)})
		handlers = append(handlers, NewRedactingHandler(fh, SensitiveKeys))
	}

	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = NewMultiHandler(handlers...)
	}
	l := slog.New(h).With(slog.String("app", o.App), slog.String("env", o.Env))
	return l, closer
}

// ParseLevel maps debug, info, warn and error to slog levels and anything
// else to def.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return def
}

// RedactingHandler masks sensitive attributes, including those nested in
// groups such as logged request headers.
type RedactingHandler struct {
	inner slog.Handler
	keys  map[string]struct{}
}

// NewRedactingHandler wraps inner.
func NewRedactingHandler(inner slog.Handler, sensitive []string) *RedactingHandler {
	m := make(map[string]struct{}, len(sensitive))
	for _, k := range sensitive {
		m[strings.ToLower(k)] = struct{}{}
	}
	return &RedactingHandler{inner: inner, keys: m}
}

func (h *RedactingHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	nr := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(h.sanitize(a))
		return true
	})
	return h.inner.Handle(ctx, nr)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.sanitize(a)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(clean), keys: h.keys}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name), keys: h.keys}
}

func (h *RedactingHandler) sanitize(a slog.Attr) slog.Attr {
	if _, ok := h.keys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		clean := make([]any, len(group))
		for i, g := range group {
			clean[i] = h.sanitize(g)
		}
		return slog.Group(a.Key, clean...)
	case slog.KindString:
		if looksSensitive(v.String()) {
			return slog.String(a.Key, Redacted)
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func looksSensitive(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "bearer ") || strings.HasPrefix(l, "basic ") ||
		(len(s) > 12 && strings.HasPrefix(s, "sk-"))
}

// MultiHandler fans records out to several handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, r.Level) {
			if err := hh.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: out}
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithGroup(name)
	}
	return &MultiHandler{handlers: out}
}
