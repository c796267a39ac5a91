package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"assistant-bot/internal/config"
)

// Setup installs the process-wide slog logger: JSON in production, text
// everywhere else.
func Setup(cfg config.Config) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, cfg)))
}

func NewHandler(w io.Writer, cfg config.Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.LogLevel),
	}
	if cfg.IsDevelopment() && cfg.LogLevel == "" {
		opts.Level = slog.LevelDebug
	}

	if cfg.IsProduction() {
		return NewContextHandler(slog.NewJSONHandler(w, opts))
	}
	return NewContextHandler(slog.NewTextHandler(w, opts))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ContextHandler adds the Fields stored on the context to every record.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := GetFields(ctx)
	if fields.TurnID != "" {
		r.AddAttrs(slog.String("turn_id", fields.TurnID))
	}
	if fields.Event != "" {
		r.AddAttrs(slog.String("event", fields.Event))
	}
	if fields.Platform != "" {
		r.AddAttrs(slog.String("platform", fields.Platform))
	}
	if fields.Channel != "" {
		r.AddAttrs(slog.String("channel", fields.Channel))
	}
	if fields.ThreadTS != "" {
		r.AddAttrs(slog.String("thread_ts", fields.ThreadTS))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
