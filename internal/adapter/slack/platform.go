package slack

import (
	"context"
	"errors"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"assistant-bot/internal/domain"
	"assistant-bot/internal/textsplit"
	"assistant-bot/internal/usecase/chat"
)

const (
	repliesPageSize = 200
	sectionLimit    = 3000
	maxBlocks       = 50

	FeedbackBlockID      = "assistant_feedback"
	FeedbackGoodActionID = "feedback_good"
	FeedbackBadActionID  = "feedback_bad"
)

// Platform implements chat.Platform on the Slack Web API.
type Platform struct {
	api       *slackapi.Client
	botUserID string
}

func NewPlatform(api *slackapi.Client) *Platform {
	return &Platform{api: api}
}

// Identify looks up the bot's own identity so its messages can be told
// apart from the user's.
func (p *Platform) Identify(ctx context.Context) error {
	resp, err := p.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("auth test: %w", err)
	}
	p.botUserID = resp.UserID
	return nil
}

func (p *Platform) BotUserID() string {
	return p.botUserID
}

func (p *Platform) ThreadReplies(ctx context.Context, channelID, threadTS string, limit int) ([]domain.ChatMessage, error) {
	params := &slackapi.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Oldest:    threadTS,
		Limit:     repliesPageSize,
	}

	var out []domain.ChatMessage
	for {
		msgs, hasMore, cursor, err := p.api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, translateError(err)
		}
		for _, m := range msgs {
			out = append(out, p.toChatMessage(m))
		}
		if limit > 0 && len(out) > limit {
			out = out[len(out)-limit:]
		}
		if !hasMore || cursor == "" {
			break
		}
		params.Cursor = cursor
	}
	return out, nil
}

func (p *Platform) ChannelHistory(ctx context.Context, channelID string, limit int) ([]domain.ChatMessage, error) {
	resp, err := p.api.GetConversationHistoryContext(ctx, &slackapi.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, translateError(err)
	}

	out := make([]domain.ChatMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, p.toChatMessage(m))
	}
	return out, nil
}

func (p *Platform) JoinChannel(ctx context.Context, channelID string) error {
	if _, _, _, err := p.api.JoinConversationContext(ctx, channelID); err != nil {
		return translateError(err)
	}
	return nil
}

func (p *Platform) PostMessage(ctx context.Context, thread domain.ThreadContext, text string) error {
	_, _, err := p.api.PostMessageContext(ctx, thread.ChannelID,
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionTS(thread.ThreadTS),
	)
	return translateError(err)
}

func (p *Platform) SetStatus(ctx context.Context, thread domain.ThreadContext, status string) error {
	return translateError(p.api.SetAssistantThreadsStatusContext(ctx, slackapi.AssistantThreadsSetStatusParameters{
		ChannelID: thread.ChannelID,
		ThreadTS:  thread.ThreadTS,
		Status:    status,
	}))
}

func (p *Platform) SetSuggestedPrompts(ctx context.Context, thread domain.ThreadContext, prompts []domain.Prompt) error {
	params := slackapi.AssistantThreadsSetSuggestedPromptsParameters{
		ChannelID: thread.ChannelID,
		ThreadTS:  thread.ThreadTS,
		Prompts:   make([]slackapi.AssistantThreadsPrompt, 0, len(prompts)),
	}
	for _, prompt := range prompts {
		params.Prompts = append(params.Prompts, slackapi.AssistantThreadsPrompt{
			Title:   prompt.Title,
			Message: prompt.Message,
		})
	}
	return translateError(p.api.SetAssistantThreadsSuggestedPromptsContext(ctx, params))
}

func (p *Platform) StartMessage(ctx context.Context, thread domain.ThreadContext, text string) (chat.MessageRef, error) {
	channelID, ts, err := p.api.PostMessageContext(ctx, thread.ChannelID,
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionTS(thread.ThreadTS),
	)
	if err != nil {
		return chat.MessageRef{}, translateError(err)
	}
	return chat.MessageRef{
		ChannelID: channelID,
		ThreadTS:  thread.ThreadTS,
		MessageID: ts,
	}, nil
}

func (p *Platform) UpdateMessage(ctx context.Context, ref chat.MessageRef, text string) error {
	_, _, _, err := p.api.UpdateMessageContext(ctx, ref.ChannelID, ref.MessageID,
		slackapi.MsgOptionText(text, false),
	)
	return translateError(err)
}

// FinishMessage renders the final text as mrkdwn sections so the feedback
// buttons can follow it in the same message.
func (p *Platform) FinishMessage(ctx context.Context, ref chat.MessageRef, text string, feedback bool) error {
	_, _, _, err := p.api.UpdateMessageContext(ctx, ref.ChannelID, ref.MessageID,
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionBlocks(MessageBlocks(text, feedback)...),
	)
	return translateError(err)
}

func (p *Platform) MentionUser(userID string) string {
	return "<@" + userID + ">"
}

func (p *Platform) MentionChannel(channelID string) string {
	return "<#" + channelID + ">"
}

func (p *Platform) toChatMessage(m slackapi.Message) domain.ChatMessage {
	return domain.ChatMessage{
		Author:    m.User,
		Text:      m.Text,
		IsBot:     m.BotID != "" || (p.botUserID != "" && m.User == p.botUserID),
		Timestamp: m.Timestamp,
	}
}

// MessageBlocks splits text into section blocks, optionally followed by the
// feedback buttons.
func MessageBlocks(text string, feedback bool) []slackapi.Block {
	chunks := textsplit.Split(text, sectionLimit)
	if room := maxBlocks - 1; len(chunks) > room {
		chunks = chunks[:room]
	}

	blocks := make([]slackapi.Block, 0, len(chunks)+1)
	for _, chunk := range chunks {
		blocks = append(blocks, slackapi.NewSectionBlock(
			slackapi.NewTextBlockObject(slackapi.MarkdownType, chunk, false, false), nil, nil,
		))
	}
	if feedback {
		blocks = append(blocks, feedbackBlock())
	}
	return blocks
}

func feedbackBlock() *slackapi.ActionBlock {
	good := slackapi.NewButtonBlockElement(FeedbackGoodActionID, "good",
		slackapi.NewTextBlockObject(slackapi.PlainTextType, ":+1:", true, false))
	bad := slackapi.NewButtonBlockElement(FeedbackBadActionID, "bad",
		slackapi.NewTextBlockObject(slackapi.PlainTextType, ":-1:", true, false))
	return slackapi.NewActionBlock(FeedbackBlockID, good, bad)
}

// translateError maps Slack error codes the assistant reacts to onto chat
// sentinels. Other errors pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errorCode(err) == "not_in_channel" {
		return fmt.Errorf("%w: %w", chat.ErrNotInChannel, err)
	}
	return err
}

func errorCode(err error) string {
	var slackErr slackapi.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return slackErr.Err
	}
	return err.Error()
}
