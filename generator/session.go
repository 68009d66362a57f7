package generator

import (
	"context"
	"time"

	"github.com/samber/lo"
)

// Round 记录一次生成或重新生成。
type Round struct {
	Number    int
	Requested []string
	Texts     map[string]string
	Sources   map[string]Source
	Reasons   map[string]RejectReason
	CreatedAt time.Time
}

// slot is the settled state of one variant.
type slot struct {
	spur   Spur
	source Source
}

// Session 持有一次请求的多轮生成上下文。
// It is a two-state machine: while any variant is pending and the round cap
// has not been reached it revises exactly the pending variants, otherwise it is settled.
type Session struct {
	UserID       string
	ConnectionID string
	Variants     []string
	Bundle       Bundle
	History      []Round

	engine       *Engine
	contextBlock string
	slots        map[string]slot
	fallbackText string
}

func newSession(e *Engine, userID, connectionID string, variants []string, b Bundle) *Session {
	return &Session{
		UserID:       userID,
		ConnectionID: connectionID,
		Variants:     variants,
		Bundle:       b,
		engine:       e,
		contextBlock: b.Render(),
		slots:        make(map[string]slot, len(variants)),
	}
}

// Run proposes every variant, then revises failing ones until none fail or
// the configured round cap is reached. Hitting the cap is logged, not returned.
func (s *Session) Run(ctx context.Context) ([]Spur, error) {
	if err := s.Propose(ctx); err != nil {
		return nil, err
	}
	limit := s.engine.cfg.MaxRegenerationRounds
	rounds := 0
	for pending := s.Pending(); len(pending) > 0; pending = s.Pending() {
		if rounds >= limit {
			degradedTotal.Inc()
			s.engine.logger.Warn("regeneration cap reached; returning degraded spurs",
				"user_id", s.UserID, "rounds", rounds, "pending", pending)
			break
		}
		rounds++
		s.engine.logger.Info("regenerating spurs", "user_id", s.UserID, "round", rounds, "variants", pending)
		if err := s.Revise(ctx, pending); err != nil {
			return nil, err
		}
	}
	regenerationRounds.Observe(float64(rounds))
	return s.Spurs(), nil
}

// Propose generates the initial round for every session variant.
func (s *Session) Propose(ctx context.Context) error {
	return s.round(ctx, s.Variants)
}

// Revise regenerates exactly the given variants and merges them into the settled set.
func (s *Session) Revise(ctx context.Context, variants []string) error {
	return s.round(ctx, variants)
}

// Pending returns the session variants whose text is not accepted model output.
func (s *Session) Pending() []string {
	return lo.Filter(s.Variants, func(id string, _ int) bool {
		sl, ok := s.slots[id]
		return !ok || sl.source != SourceGenerated
	})
}

// Spurs returns the settled spurs in variant order.
func (s *Session) Spurs() []Spur {
	out := make([]Spur, 0, len(s.Variants))
	for _, id := range s.Variants {
		if sl, ok := s.slots[id]; ok {
			out = append(out, sl.spur)
		}
	}
	return out
}

func (s *Session) round(ctx context.Context, variants []string) error {
	e := s.engine
	prompt, err := BuildPrompt(variants, e.cfg.Variants, s.contextBlock)
	if err != nil {
		return err
	}

	raw, err := e.invoker.Invoke(ctx, prompt)
	if err != nil {
		raw = ""
	}

	fallback := e.cfg.FallbackVariant
	parsed := ParseOutput(raw, e.cfg.Variants.IDs(), fallback)
	if len(s.History) > 0 && !lo.Contains(variants, fallback) {
		// The fallback was not regenerated this round; substitute from its settled text.
		parsed.Texts[fallback] = s.fallbackText
	}

	res := e.filter.Apply(parsed.Texts, fallback, &s.Bundle.User, s.Bundle.Other)
	if len(s.History) == 0 || lo.Contains(variants, fallback) {
		s.fallbackText = res.Texts[fallback]
	}

	now := e.now()
	next := make(map[string]slot, len(variants))
	for _, v := range variants {
		next[v] = slot{
			spur: Spur{
				UserID:         s.UserID,
				SpurID:         e.newID(s.UserID),
				ConversationID: s.Bundle.ConversationID,
				ConnectionID:   s.ConnectionID,
				Situation:      s.Bundle.Situation,
				Topic:          s.Bundle.Topic,
				Variant:        v,
				Tone:           s.Bundle.Tone,
				Text:           res.Texts[v],
				CreatedAt:      now,
			},
			source: res.Sources[v],
		}
		if reason, ok := res.Reasons[v]; ok {
			rejectionsTotal.WithLabelValues(string(reason)).Inc()
		}
	}
	s.slots = MergeByVariant(s.slots, next)

	r := Round{
		Number:    len(s.History),
		Requested: append([]string(nil), variants...),
		Texts:     make(map[string]string, len(variants)),
		Sources:   make(map[string]Source, len(variants)),
		Reasons:   make(map[string]RejectReason),
		CreatedAt: now,
	}
	for _, v := range variants {
		r.Texts[v] = res.Texts[v]
		r.Sources[v] = res.Sources[v]
		if reason, ok := res.Reasons[v]; ok {
			r.Reasons[v] = reason
		}
	}
	s.History = append(s.History, r)

	flags := res.FallbackFlags()
	hits := lo.Filter(variants, func(v string, _ int) bool { return flags[v] })
	e.logger.Info("spur generation round",
		"user_id", s.UserID,
		"round", r.Number,
		"requested", variants,
		"filter_hits", hits,
		"rejections", r.Reasons,
		"other_drinking", s.Bundle.Other.Attribute("drinking"))
	return nil
}

// MergeByVariant returns current with every key in next overwritten by next's value.
// Keys absent from next keep their current value. Neither input is modified.
func MergeByVariant[V any](current, next map[string]V) map[string]V {
	out := make(map[string]V, len(current)+len(next))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range next {
		out[k] = v
	}
	return out
}
