package slack

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/finance-assistant/internal/domain/agent"
	"github.com/hirosato/finance-assistant/internal/domain/conversation"
)

type posted struct {
	channel  string
	text     string
	threadTS string
}

type fakePoster struct {
	mu    sync.Mutex
	posts []posted
	err   error
	next  int
}

func (p *fakePoster) PostMessageContext(ctx context.Context, channelID string, options ...slackgo.MsgOption) (string, string, error) {
	if p.err != nil {
		return "", "", p.err
	}
	_, values, err := slackgo.UnsafeApplyMsgOptions("xoxb-test", channelID, "https://slack.test/api/", options...)
	if err != nil {
		return "", "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	p.posts = append(p.posts, posted{channel: channelID, text: values.Get("text"), threadTS: values.Get("thread_ts")})
	return channelID, fmt.Sprintf("1719800000.%06d", p.next), nil
}

type fakeAnswerer struct {
	questions []string
	histories [][]agent.Message
	err       error
}

func (a *fakeAnswerer) Run(ctx context.Context, history []agent.Message, question string) (*agent.Result, error) {
	a.questions = append(a.questions, question)
	a.histories = append(a.histories, history)
	if a.err != nil {
		return nil, a.err
	}
	messages := append(append([]agent.Message{}, history...), agent.UserText(question), agent.AssistantText("answer to "+question))
	return &agent.Result{Text: "answer to " + question, Messages: messages, Iterations: 1}, nil
}

func newTestHandler(answerer *fakeAnswerer) (*Handler, *fakePoster, *conversation.Store) {
	poster := &fakePoster{}
	store := conversation.NewStore(20, time.Hour, nil)
	return NewHandler(poster, answerer, store, nil, WithBotUserID("UBOT")), poster, store
}

func TestHandler_BlankSlashCommandGetsUsage(t *testing.T) {
	h, poster, _ := newTestHandler(&fakeAnswerer{})

	ack := h.SlashCommandAck(slackgo.SlashCommand{Command: "/finance", Text: "   "})
	require.NotNil(t, ack)
	assert.Equal(t, "ephemeral", ack["response_type"])
	assert.Contains(t, ack["text"], "/finance what is our cash balance?")

	assert.Nil(t, h.SlashCommandAck(slackgo.SlashCommand{Command: "/finance", Text: "cash?"}))
	require.NoError(t, h.HandleSlashCommand(context.Background(), slackgo.SlashCommand{Text: ""}))
	assert.Empty(t, poster.posts)
}

func TestHandler_SlashCommandAnswersInThread(t *testing.T) {
	answerer := &fakeAnswerer{}
	h, poster, store := newTestHandler(answerer)

	err := h.HandleSlashCommand(context.Background(), slackgo.SlashCommand{
		ChannelID: "C1", UserID: "U42", Command: "/finance", Text: "what is our cash balance?",
	})
	require.NoError(t, err)

	require.Len(t, poster.posts, 2)
	assert.Equal(t, "<@U42> asked: what is our cash balance?", poster.posts[0].text)
	assert.Empty(t, poster.posts[0].threadTS)
	assert.Equal(t, "1719800000.000001", poster.posts[1].threadTS)
	assert.Equal(t, "answer to what is our cash balance?", poster.posts[1].text)

	assert.Len(t, store.History("C1:1719800000.000001"), 2)
}

func TestHandler_ThreadReplyContinuesConversation(t *testing.T) {
	answerer := &fakeAnswerer{}
	h, poster, _ := newTestHandler(answerer)
	ctx := context.Background()

	require.NoError(t, h.HandleAppMention(ctx, &slackevents.AppMentionEvent{
		Channel: "C1", User: "U42", Text: "<@UBOT>  cash balance?", TimeStamp: "100.1",
	}))
	require.NoError(t, h.HandleMessage(ctx, &slackevents.MessageEvent{
		Channel: "C1", User: "U42", Text: "and bank?", TimeStamp: "100.2", ThreadTimeStamp: "100.1",
	}))

	assert.Equal(t, []string{"cash balance?", "and bank?"}, answerer.questions)
	assert.Empty(t, answerer.histories[0])
	assert.Len(t, answerer.histories[1], 2)
	for _, p := range poster.posts {
		assert.Equal(t, "100.1", p.threadTS)
	}
}

func TestHandler_IgnoresUnrelatedMessages(t *testing.T) {
	answerer := &fakeAnswerer{}
	h, poster, _ := newTestHandler(answerer)
	ctx := context.Background()

	events := []*slackevents.MessageEvent{
		{Channel: "C1", User: "U42", Text: "lunch?", TimeStamp: "1.1"},
		{Channel: "C1", User: "U42", Text: "unknown thread", TimeStamp: "1.2", ThreadTimeStamp: "0.9"},
		{Channel: "C1", BotID: "B1", Text: "bot chatter", TimeStamp: "1.3", ChannelType: "im"},
		{Channel: "C1", User: "UBOT", Text: "own reply", TimeStamp: "1.4", ChannelType: "im"},
		{Channel: "C1", User: "U42", SubType: "message_changed", Text: "edit", ChannelType: "im"},
		{Channel: "C1", User: "U42", Text: "<@UBOT> cash", TimeStamp: "1.5", ChannelType: "im"},
	}
	for _, ev := range events {
		require.NoError(t, h.HandleMessage(ctx, ev))
	}
	assert.Empty(t, answerer.questions)
	assert.Empty(t, poster.posts)
}

func TestHandler_DirectMessage(t *testing.T) {
	answerer := &fakeAnswerer{}
	h, poster, _ := newTestHandler(answerer)

	require.NoError(t, h.HandleMessage(context.Background(), &slackevents.MessageEvent{
		Channel: "D1", User: "U42", Text: "payroll budget for march?", TimeStamp: "5.5", ChannelType: "im",
	}))
	require.Len(t, poster.posts, 1)
	assert.Equal(t, "5.5", poster.posts[0].threadTS)
}

func TestHandler_ErrorsPostUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&agent.ModelError{Class: agent.ClassRateLimit}, agent.MessageRateLimit},
		{agent.ErrTookTooLong, agent.MessageTookTooLong},
		{errors.New("boom"), agent.MessageGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			h, poster, store := newTestHandler(&fakeAnswerer{err: tt.err})

			require.NoError(t, h.HandleAppMention(context.Background(), &slackevents.AppMentionEvent{
				Channel: "C1", User: "U42", Text: "<@UBOT> cash?", TimeStamp: "7.7",
			}))
			require.Len(t, poster.posts, 1)
			assert.Equal(t, tt.want, poster.posts[0].text)
			assert.Nil(t, store.History("C1:7.7"))
		})
	}
}

func TestHandler_EmptyMentionGetsUsage(t *testing.T) {
	answerer := &fakeAnswerer{}
	h, poster, _ := newTestHandler(answerer)

	require.NoError(t, h.HandleAppMention(context.Background(), &slackevents.AppMentionEvent{
		Channel: "C1", Text: "<@UBOT>", TimeStamp: "8.8",
	}))
	assert.Empty(t, answerer.questions)
	require.Len(t, poster.posts, 1)
	assert.Contains(t, poster.posts[0].text, "Ask me about account balances")
}

func TestHandler_PostFailure(t *testing.T) {
	h, poster, _ := newTestHandler(&fakeAnswerer{})
	poster.err = errors.New("channel_not_found")

	err := h.HandleSlashCommand(context.Background(), slackgo.SlashCommand{ChannelID: "C9", Text: "cash?"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestStripMentionsWithoutBotID(t *testing.T) {
	h := NewHandler(&fakePoster{}, &fakeAnswerer{}, conversation.NewStore(0, 0, nil), nil)
	assert.Equal(t, "cash balance", h.stripMentions("<@U01ABC|finbot> cash   balance"))
}
