package logger

import "context"

type contextKey string

const fieldsKey contextKey = "log_fields"

// Fields are attached to every log record written with a context that
// carries them.
type Fields struct {
	TurnID   string
	Event    string
	Platform string
	Channel  string
	ThreadTS string
}

// WithFields merges fields into the context; non-empty values win.
func WithFields(ctx context.Context, fields Fields) context.Context {
	merged := GetFields(ctx)
	if fields.TurnID != "" {
		merged.TurnID = fields.TurnID
	}
	if fields.Event != "" {
		merged.Event = fields.Event
	}
	if fields.Platform != "" {
		merged.Platform = fields.Platform
	}
	if fields.Channel != "" {
		merged.Channel = fields.Channel
	}
	if fields.ThreadTS != "" {
		merged.ThreadTS = fields.ThreadTS
	}
	return context.WithValue(ctx, fieldsKey, merged)
}

func GetFields(ctx context.Context) Fields {
	if fields, ok := ctx.Value(fieldsKey).(Fields); ok {
		return fields
	}
	return Fields{}
}

// Truncate shortens s to maxLen runes, adding "..." when cut.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
