package chat

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-bot/internal/adapter/memory"
	"assistant-bot/internal/domain"
)

func newTestService(platform *fakePlatform, client *fakeClient) (*Service, *memory.ContextStore) {
	contexts := memory.NewContextStore()
	return NewService(platform, client, contexts, testConfig()), contexts
}

func TestService_StreamsReply(t *testing.T) {
	platform := &fakePlatform{replies: []domain.ChatMessage{{Author: "U1", Text: "give me a list"}}}
	client := &fakeClient{stream: &fakeStream{deltas: []string{"Sure", ", here", " you go."}}}
	svc, _ := newTestService(platform, client)

	svc.Dispatch(context.Background(), Event{Kind: EventUserMessage, Thread: testThread, Text: "give me a list"})

	require.Len(t, platform.finished, 1)
	assert.Equal(t, "Sure, here you go.", platform.finished[0].text)
	assert.True(t, platform.finished[0].feedback)
	assert.Empty(t, platform.posts)
	assert.True(t, client.stream.closed)

	require.Len(t, platform.statuses, 1)
	assert.Contains(t, testConfig().Persona.ThinkingMessages, platform.statuses[0])

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, testConfig().Persona.SystemPrompt, req.SystemPrompt)
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.Equal(t, []domain.Message{{Role: domain.RoleUser, Content: "give me a list"}}, req.Messages)
}

func TestService_TransportErrorAbortsAndWarns(t *testing.T) {
	platform := &fakePlatform{replies: []domain.ChatMessage{{Author: "U1", Text: "hi"}}}
	client := &fakeClient{stream: &fakeStream{
		deltas: []string{"Sure"},
		err:    errors.New("connection reset by peer"),
	}}
	svc, _ := newTestService(platform, client)

	svc.Dispatch(context.Background(), Event{Kind: EventUserMessage, Thread: testThread, Text: "hi"})

	require.Len(t, platform.finished, 1)
	assert.Equal(t, "Sure\n\n:warning: Failed to complete response", platform.finished[0].text)
	assert.False(t, platform.finished[0].feedback)

	require.Len(t, platform.posts, 1)
	assert.Contains(t, platform.posts[0], ":warning: Something went wrong! (")
	assert.Contains(t, platform.posts[0], "connection reset by peer")
}

func TestService_RateLimitedUpdatesDoNotEndTurn(t *testing.T) {
	deltas := make([]string, 120)
	for i := range deltas {
		deltas[i] = "x"
	}
	platform := &fakePlatform{
		replies:   []domain.ChatMessage{{Author: "U1", Text: "write a lot"}},
		updateErr: errors.New("slack rate limit exceeded, retry after 1s"),
	}
	client := &fakeClient{stream: &fakeStream{deltas: deltas}}
	svc, _ := newTestService(platform, client)

	svc.Dispatch(context.Background(), Event{Kind: EventUserMessage, Thread: testThread, Text: "write a lot"})

	assert.Empty(t, platform.posts)
	require.Len(t, platform.finished, 1)
	assert.Equal(t, strings.Repeat("x", 120), platform.finished[0].text)
	assert.True(t, platform.finished[0].feedback)
}

func TestService_LogsTruncatedUserText(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	text := strings.Repeat("a", 200)
	platform := &fakePlatform{replies: []domain.ChatMessage{{Author: "U1", Text: text}}}
	svc, _ := newTestService(platform, &fakeClient{stream: &fakeStream{deltas: []string{"ok"}}})

	svc.Dispatch(context.Background(), Event{Kind: EventUserMessage, Thread: testThread, Text: text})

	assert.Contains(t, buf.String(), "text="+strings.Repeat("a", logTextLimit)+"...")
	assert.NotContains(t, buf.String(), strings.Repeat("a", logTextLimit+1))
}

func TestService_MissingCredentialsWarnsWithoutPosting(t *testing.T) {
	platform := &fakePlatform{replies: []domain.ChatMessage{{Author: "U1", Text: "hi"}}}
	client := &fakeClient{streamErr: ErrMissingCredentials}
	svc, _ := newTestService(platform, client)

	svc.Dispatch(context.Background(), Event{Kind: EventUserMessage, Thread: testThread, Text: "hi"})

	assert.Empty(t, platform.published())
	require.Len(t, platform.posts, 1)
	assert.Contains(t, platform.posts[0], ErrMissingCredentials.Error())

	// the thread is free again for the next turn
	client.streamErr = nil
	client.stream = &fakeStream{deltas: []string{"ok"}}
	svc.Dispatch(context.Background(), Event{Kind: EventUserMessage, Thread: testThread, Text: "hi"})
	require.Len(t, platform.finished, 1)
	assert.Equal(t, "ok", platform.finished[0].text)
}

func TestService_StatusFailureDoesNotStopTurn(t *testing.T) {
	platform := &fakePlatform{
		replies:   []domain.ChatMessage{{Author: "U1", Text: "hi"}},
		statusErr: errors.New("missing_scope"),
	}
	client := &fakeClient{stream: &fakeStream{deltas: []string{"hello"}}}
	svc, _ := newTestService(platform, client)

	svc.Dispatch(context.Background(), Event{Kind: EventUserMessage, Thread: testThread, Text: "hi"})

	require.Len(t, platform.finished, 1)
	assert.Equal(t, "hello", platform.finished[0].text)
	assert.Empty(t, platform.posts)
}

func TestService_EmptyThreadWarns(t *testing.T) {
	platform := &fakePlatform{}
	client := &fakeClient{}
	svc, _ := newTestService(platform, client)

	svc.Dispatch(context.Background(), Event{Kind: EventUserMessage, Thread: testThread, Text: "hi"})

	assert.Empty(t, client.requests)
	require.Len(t, platform.posts, 1)
	assert.Contains(t, platform.posts[0], ErrEmptyThread.Error())
}

func TestService_RecoversFromPanic(t *testing.T) {
	platform := &fakePlatform{panicOnReplies: true}
	svc, _ := newTestService(platform, &fakeClient{})

	assert.NotPanics(t, func() {
		svc.Dispatch(context.Background(), Event{Kind: EventUserMessage, Thread: testThread, Text: "hi"})
	})
	require.Len(t, platform.posts, 1)
	assert.Contains(t, platform.posts[0], "replies exploded")
}

func TestService_ThreadStartedGreets(t *testing.T) {
	platform := &fakePlatform{}
	svc, contexts := newTestService(platform, &fakeClient{})

	svc.Dispatch(context.Background(), Event{Kind: EventThreadStarted, Thread: testThread})

	assert.Equal(t, []string{testConfig().Persona.Greeting}, platform.posts)
	require.Len(t, platform.prompts, 1)
	assert.Equal(t, testConfig().Persona.Prompts, platform.prompts[0])

	_, ok, err := contexts.Load(context.Background(), testThread.ChannelID, testThread.ThreadTS)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_ThreadStartedFromChannel(t *testing.T) {
	platform := &fakePlatform{}
	svc, contexts := newTestService(platform, &fakeClient{})
	bound := domain.BoundContext{ChannelID: "C123", TeamID: "T1"}

	svc.Dispatch(context.Background(), Event{Kind: EventThreadStarted, Thread: testThread, Bound: bound})

	require.Len(t, platform.prompts, 1)
	prompts := platform.prompts[0]
	require.Len(t, prompts, len(testConfig().Persona.Prompts)+1)
	assert.Equal(t, testConfig().Persona.SummarizePrompt, prompts[len(prompts)-1])

	saved, ok, err := contexts.Load(context.Background(), testThread.ChannelID, testThread.ThreadTS)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, bound, saved)
}

func TestService_SummaryUsesStoredContext(t *testing.T) {
	platform := &fakePlatform{history: []domain.ChatMessage{{Author: "U7", Text: "release is out"}}}
	client := &fakeClient{stream: &fakeStream{deltas: []string{"The release shipped."}}}
	svc, contexts := newTestService(platform, client)
	require.NoError(t, contexts.Save(context.Background(), testThread.ChannelID, testThread.ThreadTS,
		domain.BoundContext{ChannelID: "C123"}))

	summarize := testConfig().Persona.SummarizePrompt.Message
	svc.Dispatch(context.Background(), Event{Kind: EventUserMessage, Thread: testThread, Text: summarize})

	assert.Equal(t, []string{"C123"}, platform.historyChannels)
	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0].Messages[0].Content, "<#C123>")
	assert.Contains(t, client.requests[0].Messages[0].Content, "<@U7> says: release is out")
	require.Len(t, platform.finished, 1)
	assert.Equal(t, "The release shipped.", platform.finished[0].text)
}

func TestService_ContextChanged(t *testing.T) {
	platform := &fakePlatform{}
	svc, contexts := newTestService(platform, &fakeClient{})

	svc.Dispatch(context.Background(), Event{
		Kind:   EventThreadContextChanged,
		Thread: testThread,
		Bound:  domain.BoundContext{ChannelID: "C999"},
	})

	assert.Equal(t,
		[]string{"The context of this thread has changed to a new channel <#C999>. How can I assist you?"},
		platform.posts)
	saved, ok, err := contexts.Load(context.Background(), testThread.ChannelID, testThread.ThreadTS)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "C999", saved.ChannelID)
}

func TestService_FeedbackIsOnlyLogged(t *testing.T) {
	platform := &fakePlatform{}
	svc, _ := newTestService(platform, &fakeClient{})

	svc.Dispatch(context.Background(), Event{Kind: EventFeedback, Thread: testThread, Text: "good"})

	assert.Empty(t, platform.posts)
	assert.Empty(t, platform.published())
}
