package conversation

import (
	"sync"
	"time"

	"github.com/hirosato/finance-assistant/internal/domain/agent"
	"github.com/hirosato/finance-assistant/internal/observability/metrics"
)

const (
	DefaultMaxMessages = 20
	DefaultIdleTTL     = time.Hour
)

type thread struct {
	messages []agent.Message
	touched  time.Time
}

// Store keeps recent messages per chat thread in memory
type Store struct {
	maxMessages int
	idleTTL     time.Duration
	now         func() time.Time

	mu      sync.Mutex
	threads map[string]*thread
}

// NewStore creates a new conversation store. Non-positive limits use the defaults.
func NewStore(maxMessages int, idleTTL time.Duration, now func() time.Time) *Store {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		maxMessages: maxMessages,
		idleTTL:     idleTTL,
		now:         now,
		threads:     make(map[string]*thread),
	}
}

// History returns a copy of the thread's messages, oldest first
func (s *Store) History(threadID string) []agent.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return nil
	}
	out := make([]agent.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Replace stores the thread transcript, keeping only the most recent messages
func (s *Store) Replace(threadID string, messages []agent.Message) {
	trimmed := trim(messages, s.maxMessages)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = &thread{messages: trimmed, touched: s.now()}
}

// Append adds messages to the thread
func (s *Store) Append(threadID string, messages ...agent.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		t = &thread{}
		s.threads[threadID] = t
	}
	t.messages = trim(append(t.messages, messages...), s.maxMessages)
	t.touched = s.now()
}

// Len reports the number of tracked threads
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads)
}

// Sweep evicts threads idle for longer than the TTL and returns how many were removed
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idleTTL)
	removed := 0
	for id, t := range s.threads {
		if t.touched.Before(cutoff) {
			delete(s.threads, id)
			removed++
		}
	}
	metrics.AddConversationsEvicted(removed)
	return removed
}

// trim keeps the newest max messages. The kept window never starts with a
// user message made only of tool results, whose tool_use would be cut off.
func trim(messages []agent.Message, max int) []agent.Message {
	start := 0
	if len(messages) > max {
		start = len(messages) - max
	}
	for start < len(messages) && !startsTurn(messages[start]) {
		start++
	}
	out := make([]agent.Message, len(messages)-start)
	copy(out, messages[start:])
	return out
}

func startsTurn(m agent.Message) bool {
	if m.Role != agent.RoleUser {
		return false
	}
	for _, block := range m.Content {
		if block.Type == agent.BlockToolResult {
			return false
		}
	}
	return true
}
