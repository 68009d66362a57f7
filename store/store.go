// Package store persists profiles, conversations and saved spurs for the
// generation engine. It ships an in-memory and a SQLite implementation.
package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"spurly/generator"
)

// Store is the full collaborator used by the server: the engine's read side
// plus the writes needed to drive it. Conversation and saved spur ids are
// scoped to their owning user, so two users may use the same id.
type Store interface {
	generator.Store

	PutUserProfile(ctx context.Context, p *generator.Profile) error
	PutConnectionProfile(ctx context.Context, userID string, p *generator.Profile) error
	SetActiveConnection(ctx context.Context, userID, connectionID string) error
	PutConversation(ctx context.Context, c *generator.Conversation) error

	SaveSpur(ctx context.Context, s generator.Spur) (SavedSpur, error)
	SavedSpurs(ctx context.Context, userID string, f SavedFilter) ([]SavedSpur, error)
	DeleteSavedSpur(ctx context.Context, userID, spurID string) error

	Close() error
}

// SavedSpur is a spur the user chose to keep.
type SavedSpur struct {
	SpurID         string    `json:"spur_id" db:"spur_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	ConversationID string    `json:"conversation_id,omitempty" db:"conversation_id"`
	Variant        string    `json:"variant" db:"variant"`
	Situation      string    `json:"situation,omitempty" db:"situation"`
	Topic          string    `json:"topic,omitempty" db:"topic"`
	Text           string    `json:"text" db:"text"`
	SavedAt        time.Time `json:"saved_at" db:"saved_at"`
}

// SavedFilter narrows SavedSpurs. Zero values match everything; results are
// newest first unless Ascending is set.
type SavedFilter struct {
	Variant   string
	Situation string
	Keyword   string
	From      time.Time
	To        time.Time
	Ascending bool
}

func (f SavedFilter) match(s SavedSpur) bool {
	if f.Variant != "" && s.Variant != f.Variant {
		return false
	}
	if f.Situation != "" && s.Situation != f.Situation {
		return false
	}
	if !f.From.IsZero() && s.SavedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.SavedAt.After(f.To) {
		return false
	}
	return matchKeyword(s.Text, f.Keyword)
}

func matchKeyword(text, keyword string) bool {
	return keyword == "" || strings.Contains(strings.ToLower(text), strings.ToLower(keyword))
}

func sortSaved(list []SavedSpur, ascending bool) {
	sort.SliceStable(list, func(i, j int) bool {
		if ascending {
			return list[i].SavedAt.Before(list[j].SavedAt)
		}
		return list[i].SavedAt.After(list[j].SavedAt)
	})
}
