package generator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

// scriptedLLM answers spur prompts with reply(n, req), where n counts spur
// prompts only. Classification prompts go to classify when set.
type scriptedLLM struct {
	mu       sync.Mutex
	reqs     []Request
	spurs    int
	reply    func(n int, req Request) (string, error)
	classify func(req Request) (string, error)
}

func (f *scriptedLLM) Complete(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	isClassify := strings.Contains(req.User, tonePromptMarker) || strings.Contains(req.User, situationPromptMarker)
	n := f.spurs
	if !isClassify {
		f.spurs++
	}
	f.mu.Unlock()

	if isClassify {
		if f.classify == nil {
			return "", fmt.Errorf("no classifier scripted")
		}
		return f.classify(req)
	}
	return f.reply(n, req)
}

func (f *scriptedLLM) requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.reqs...)
}

func (f *scriptedLLM) spurPrompts() []string {
	var out []string
	for _, r := range f.requests() {
		if !strings.Contains(r.User, tonePromptMarker) && !strings.Contains(r.User, situationPromptMarker) {
			out = append(out, r.User)
		}
	}
	return out
}

// sequence replies with the given responses in order, repeating the last one.
func sequence(responses ...string) func(int, Request) (string, error) {
	return func(n int, _ Request) (string, error) {
		if n >= len(responses) {
			n = len(responses) - 1
		}
		return responses[n], nil
	}
}

type fakeStore struct {
	users  map[string]*Profile
	conns  map[string]*Profile
	active map[string]string
	convs  map[string]*Conversation
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  map[string]*Profile{},
		conns:  map[string]*Profile{},
		active: map[string]string{},
		convs:  map[string]*Conversation{},
	}
}

func (s *fakeStore) UserProfile(_ context.Context, id string) (*Profile, error) {
	if p, ok := s.users[id]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) ConnectionProfile(_ context.Context, userID, id string) (*Profile, error) {
	if p, ok := s.conns[userID+"/"+id]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) ActiveConnection(_ context.Context, userID string) (string, error) {
	return s.active[userID], nil
}

func (s *fakeStore) Conversation(_ context.Context, userID, id string) (*Conversation, error) {
	if c, ok := s.convs[id]; ok && c.UserID == userID {
		return c, nil
	}
	return nil, ErrNotFound
}

func discardLogger() *log.Logger { return log.New(io.Discard) }

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, llm LLMClient, st Store, mutate ...func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	ids := 0
	e, err := NewEngine(llm, st, cfg,
		WithLogger(discardLogger()),
		WithClock(func() time.Time { return testNow }),
		WithIDFunc(func(userID string) string {
			ids++
			return fmt.Sprintf("%s:%d", userID, ids)
		}))
	require.NoError(t, err)
	return e
}

func textsByVariant(spurs []Spur) map[string]string {
	out := make(map[string]string, len(spurs))
	for _, s := range spurs {
		out[s.Variant] = s.Text
	}
	return out
}
