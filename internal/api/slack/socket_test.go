package slack

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecord struct {
	envelopeID string
	payload    []interface{}
}

type fakeAcker struct {
	mu   sync.Mutex
	acks []ackRecord
}

func (a *fakeAcker) Ack(req socketmode.Request, payload ...interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, ackRecord{envelopeID: req.EnvelopeID, payload: payload})
}

func newTestListener() (*Listener, *fakeAcker) {
	handler, _, _ := newTestHandler(&fakeAnswerer{})
	acks := &fakeAcker{}
	return &Listener{acker: acks, handler: handler, logger: slog.Default()}, acks
}

func envelope(eventType socketmode.EventType, data interface{}) socketmode.Event {
	return socketmode.Event{Type: eventType, Data: data, Request: &socketmode.Request{EnvelopeID: "env-1"}}
}

func TestListener_AcksMalformedSlashCommand(t *testing.T) {
	l, acks := newTestListener()

	l.handle(context.Background(), envelope(socketmode.EventTypeSlashCommand, "not a command"))

	require.Len(t, acks.acks, 1)
	assert.Equal(t, "env-1", acks.acks[0].envelopeID)
	assert.Empty(t, acks.acks[0].payload)
}

func TestListener_AcksMalformedEventsAPIEvent(t *testing.T) {
	l, acks := newTestListener()

	l.handle(context.Background(), envelope(socketmode.EventTypeEventsAPI, map[string]any{"type": "event_callback"}))

	require.Len(t, acks.acks, 1)
	assert.Equal(t, "env-1", acks.acks[0].envelopeID)
}

func TestListener_AcksOtherCommandsWithoutAnswering(t *testing.T) {
	l, acks := newTestListener()

	l.handle(context.Background(), envelope(socketmode.EventTypeSlashCommand, slackgo.SlashCommand{Command: "/weather", Text: "today"}))

	require.Len(t, acks.acks, 1)
	assert.Empty(t, acks.acks[0].payload)
}

func TestListener_BlankCommandAckCarriesUsage(t *testing.T) {
	l, acks := newTestListener()

	l.handle(context.Background(), envelope(socketmode.EventTypeSlashCommand, slackgo.SlashCommand{Command: DefaultCommand}))

	require.Len(t, acks.acks, 1)
	require.Len(t, acks.acks[0].payload, 1)
	payload, ok := acks.acks[0].payload[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ephemeral", payload["response_type"])
}

func TestListener_AcksNonCallbackEvents(t *testing.T) {
	l, acks := newTestListener()

	l.handle(context.Background(), envelope(socketmode.EventTypeEventsAPI, slackevents.EventsAPIEvent{Type: slackevents.URLVerification}))

	assert.Len(t, acks.acks, 1)
}

func TestListener_AcksUnhandledEnvelopes(t *testing.T) {
	l, acks := newTestListener()

	l.handle(context.Background(), envelope(socketmode.EventTypeInteractive, nil))
	l.handle(context.Background(), socketmode.Event{Type: socketmode.EventTypeConnected})

	assert.Len(t, acks.acks, 1)
}
