package store

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"spurly/generator"
)

// connKey scopes a record id to its owning user.
type connKey struct{ user, conn string }

// Memory is a mutex-guarded in-process Store.
type Memory struct {
	mu            sync.RWMutex
	users         map[string]generator.Profile
	connections   map[connKey]generator.Profile
	active        map[string]string
	conversations map[connKey]generator.Conversation
	saved         map[connKey]SavedSpur
	now           func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]generator.Profile),
		connections:   make(map[connKey]generator.Profile),
		active:        make(map[string]string),
		conversations: make(map[connKey]generator.Conversation),
		saved:         make(map[connKey]SavedSpur),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) UserProfile(_ context.Context, userID string) (*generator.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.users[userID]
	if !ok {
		return nil, errors.Wrapf(generator.ErrNotFound, "user %s", userID)
	}
	return &p, nil
}

func (m *Memory) ConnectionProfile(_ context.Context, userID, connectionID string) (*generator.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.connections[connKey{userID, connectionID}]
	if !ok {
		return nil, errors.Wrapf(generator.ErrNotFound, "connection %s", connectionID)
	}
	return &p, nil
}

func (m *Memory) ActiveConnection(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[userID], nil
}

func (m *Memory) Conversation(_ context.Context, userID, conversationID string) (*generator.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[connKey{userID, conversationID}]
	if !ok {
		return nil, errors.Wrapf(generator.ErrNotFound, "conversation %s", conversationID)
	}
	c.Turns = append([]generator.Turn(nil), c.Turns...)
	return &c, nil
}

func (m *Memory) PutUserProfile(_ context.Context, p *generator.Profile) error {
	if p == nil || p.ID == "" {
		return errors.New("user profile requires an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[p.ID] = *p
	return nil
}

func (m *Memory) PutConnectionProfile(_ context.Context, userID string, p *generator.Profile) error {
	if p == nil || p.ID == "" || userID == "" {
		return errors.New("connection profile requires a user id and an id")
	}
	cp := *p
	cp.OwnerID = userID
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[connKey{userID, p.ID}] = cp
	return nil
}

func (m *Memory) SetActiveConnection(_ context.Context, userID, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if connectionID == "" {
		delete(m.active, userID)
		return nil
	}
	if _, ok := m.connections[connKey{userID, connectionID}]; !ok {
		return errors.Wrapf(generator.ErrNotFound, "connection %s", connectionID)
	}
	m.active[userID] = connectionID
	return nil
}

func (m *Memory) PutConversation(_ context.Context, c *generator.Conversation) error {
	if c == nil || c.ID == "" || c.UserID == "" {
		return errors.New("conversation requires an id and a user id")
	}
	cp := *c
	cp.Turns = append([]generator.Turn(nil), c.Turns...)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[connKey{c.UserID, c.ID}] = cp
	return nil
}

func (m *Memory) SaveSpur(_ context.Context, s generator.Spur) (SavedSpur, error) {
	if s.UserID == "" || s.SpurID == "" {
		return SavedSpur{}, errors.New("saved spur requires a user id and a spur id")
	}
	saved := SavedSpur{
		SpurID:         s.SpurID,
		UserID:         s.UserID,
		ConversationID: s.ConversationID,
		Variant:        s.Variant,
		Situation:      s.Situation,
		Topic:          s.Topic,
		Text:           s.Text,
		SavedAt:        m.now(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[connKey{s.UserID, s.SpurID}] = saved
	return saved, nil
}

func (m *Memory) SavedSpurs(_ context.Context, userID string, f SavedFilter) ([]SavedSpur, error) {
	m.mu.RLock()
	var out []SavedSpur
	for k, s := range m.saved {
		if k.user == userID && f.match(s) {
			out = append(out, s)
		}
	}
	m.mu.RUnlock()
	sortSaved(out, f.Ascending)
	return out, nil
}

func (m *Memory) DeleteSavedSpur(_ context.Context, userID, spurID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := connKey{userID, spurID}
	if _, ok := m.saved[k]; !ok {
		return errors.Wrapf(generator.ErrNotFound, "saved spur %s", spurID)
	}
	delete(m.saved, k)
	return nil
}

func (m *Memory) Close() error { return nil }
