package slack

import (
	"encoding/json"
	"fmt"

	"github.com/slack-go/slack/slackevents"

	"assistant-bot/internal/domain"
	"assistant-bot/internal/usecase/chat"
)

const (
	eventAssistantThreadStarted        = "assistant_thread_started"
	eventAssistantThreadContextChanged = "assistant_thread_context_changed"
	channelTypeIM                      = "im"
)

type callbackEnvelope struct {
	Type   string          `json:"type"`
	TeamID string          `json:"team_id"`
	Event  json.RawMessage `json:"event"`
}

type innerEvent struct {
	Type        string `json:"type"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	User        string `json:"user"`
	Text        string `json:"text"`
	ThreadTS    string `json:"thread_ts"`
	BotID       string `json:"bot_id"`
	SubType     string `json:"subtype"`

	AssistantThread *assistantThread `json:"assistant_thread"`
}

type assistantThread struct {
	UserID    string              `json:"user_id"`
	ChannelID string              `json:"channel_id"`
	ThreadTS  string              `json:"thread_ts"`
	Context   domain.BoundContext `json:"context"`
}

// translateEvent turns an Events API payload into an assistant event.
// ok is false for events the assistant does not handle, including its own
// messages.
func translateEvent(payload []byte, botUserID string) (chat.Event, bool, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return chat.Event{}, false, fmt.Errorf("decode events api payload: %w", err)
	}
	if env.Type != string(slackevents.CallbackEvent) {
		return chat.Event{}, false, nil
	}

	var inner innerEvent
	if err := json.Unmarshal(env.Event, &inner); err != nil {
		return chat.Event{}, false, fmt.Errorf("decode %s event: %w", env.Type, err)
	}

	switch inner.Type {
	case eventAssistantThreadStarted, eventAssistantThreadContextChanged:
		if inner.AssistantThread == nil {
			return chat.Event{}, false, fmt.Errorf("%s event without assistant_thread", inner.Type)
		}
		at := inner.AssistantThread
		kind := chat.EventThreadStarted
		if inner.Type == eventAssistantThreadContextChanged {
			kind = chat.EventThreadContextChanged
		}
		teamID := at.Context.TeamID
		if teamID == "" {
			teamID = env.TeamID
		}
		return chat.Event{
			Kind: kind,
			Thread: domain.ThreadContext{
				ChannelID:         at.ChannelID,
				ThreadTS:          at.ThreadTS,
				UserID:            at.UserID,
				TeamID:            teamID,
				ReferredChannelID: at.Context.ChannelID,
			},
			Bound: at.Context,
		}, true, nil

	case string(slackevents.Message):
		if inner.ChannelType != channelTypeIM || inner.ThreadTS == "" {
			return chat.Event{}, false, nil
		}
		if inner.BotID != "" || inner.SubType != "" || inner.User == "" || inner.User == botUserID {
			return chat.Event{}, false, nil
		}
		return chat.Event{
			Kind: chat.EventUserMessage,
			Thread: domain.ThreadContext{
				ChannelID: inner.Channel,
				ThreadTS:  inner.ThreadTS,
				UserID:    inner.User,
				TeamID:    env.TeamID,
			},
			Text: inner.Text,
		}, true, nil
	}

	return chat.Event{}, false, nil
}
