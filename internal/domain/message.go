package domain

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of the conversation sent to the model.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// ChatMessage is a message as read back from the chat platform.
type ChatMessage struct {
	Author    string
	Text      string
	IsBot     bool
	Timestamp string
}

// ThreadContext identifies the conversation a turn belongs to.
type ThreadContext struct {
	ChannelID         string
	ThreadTS          string
	UserID            string
	TeamID            string
	ReferredChannelID string
}

// Key identifies the thread across adapters and stores.
func (t ThreadContext) Key() string {
	return t.ChannelID + ":" + t.ThreadTS
}

// BoundContext is the channel an assistant thread was opened from.
type BoundContext struct {
	ChannelID    string `json:"channel_id"`
	TeamID       string `json:"team_id,omitempty"`
	EnterpriseID string `json:"enterprise_id,omitempty"`
}

func (b BoundContext) IsZero() bool {
	return b.ChannelID == ""
}

type Prompt struct {
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}
