package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReturnsEveryVariant(t *testing.T) {
	llm := &scriptedLLM{reply: sequence(`{"main":"how was the hike?","warm":"hope your week is kind to you","cool":"sup, still alive?","playful":"bet you got lost"}`)}
	st := newFakeStore()
	st.users["u1"] = &Profile{ID: "u1", Name: "Alex"}
	e := newTestEngine(t, llm, st)

	spurs, err := e.Generate(context.Background(), GenerateRequest{UserID: "u1", Situation: "cold_open", Topic: "hiking"})
	require.NoError(t, err)
	require.Len(t, spurs, 4)

	for i, id := range []string{"main", "warm", "cool", "playful"} {
		s := spurs[i]
		assert.Equal(t, id, s.Variant)
		assert.Equal(t, "u1", s.UserID)
		assert.NotEmpty(t, s.SpurID)
		assert.Equal(t, "cold_open", s.Situation)
		assert.Equal(t, "hiking", s.Topic)
		assert.Equal(t, testNow, s.CreatedAt)
	}
	assert.Equal(t, "bet you got lost", spurs[3].Text)
	assert.Len(t, llm.spurPrompts(), 1)
}

func TestGenerateRegeneratesEmptyFallbackPair(t *testing.T) {
	llm := &scriptedLLM{reply: sequence(
		`{"main": "hi!!!!😀😀😀😀"}`,
		`{"main": "hey, how was the hike?", "warm": "hope your week is going well"}`,
	)}
	e := newTestEngine(t, llm, nil)

	sess, err := e.NewSession(context.Background(), GenerateRequest{UserID: "u1", Variants: []string{"warm", "main"}})
	require.NoError(t, err)
	spurs, err := sess.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sess.History, 2)
	first := sess.History[0]
	assert.Equal(t, []string{"main", "warm"}, first.Requested)
	assert.Equal(t, "", first.Texts["main"])
	assert.Equal(t, "", first.Texts["warm"])
	assert.Equal(t, ReasonEmojiSpam, first.Reasons["main"])
	assert.Equal(t, []string{"main", "warm"}, sess.History[1].Requested)

	assert.Equal(t, map[string]string{
		"main": "hey, how was the hike?",
		"warm": "hope your week is going well",
	}, textsByVariant(spurs))
	assert.Empty(t, sess.Pending())
}

func TestGenerateRevisesOnlyFailingVariants(t *testing.T) {
	llm := &scriptedLLM{reply: sequence(
		`{"main":"how was the hike?","warm":"hope your week is kind to you","cool":"Netflix and chill?","playful":"bet you got lost"}`,
		`{"cool":"sup, still alive?"}`,
	)}
	e := newTestEngine(t, llm, nil)

	ctx := context.Background()
	sess, err := e.NewSession(ctx, GenerateRequest{UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, sess.Propose(ctx))

	firstIDs := map[string]string{}
	for _, s := range sess.Spurs() {
		firstIDs[s.Variant] = s.SpurID
	}
	assert.Equal(t, "hope your week is kind to you", textsByVariant(sess.Spurs())["cool"])
	assert.Equal(t, []string{"cool"}, sess.Pending())

	require.NoError(t, sess.Revise(ctx, sess.Pending()))
	assert.Empty(t, sess.Pending())

	prompts := llm.spurPrompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], `"cool": "..."`)
	assert.NotContains(t, prompts[1], `"main": "..."`)
	assert.NotContains(t, prompts[1], `"warm": "..."`)

	got := textsByVariant(sess.Spurs())
	assert.Equal(t, "sup, still alive?", got["cool"])
	assert.Equal(t, "how was the hike?", got["main"])
	assert.Equal(t, "hope your week is kind to you", got["warm"])
	for _, s := range sess.Spurs() {
		if s.Variant != "cool" {
			assert.Equal(t, firstIDs[s.Variant], s.SpurID, s.Variant)
		}
	}
	assert.Len(t, sess.History, 2)
}

func TestGenerateStopsAtRoundCap(t *testing.T) {
	llm := &scriptedLLM{reply: sequence(`{"main":"Roast me","warm":"Roast me","cool":"Roast me","playful":"Roast me"}`)}
	e := newTestEngine(t, llm, nil)

	sess, err := e.NewSession(context.Background(), GenerateRequest{UserID: "u1"})
	require.NoError(t, err)
	spurs, err := sess.Run(context.Background())
	require.NoError(t, err)

	limit := DefaultConfig().MaxRegenerationRounds
	assert.Len(t, sess.History, limit+1)
	assert.Len(t, llm.spurPrompts(), limit+1)
	require.Len(t, spurs, 4)
	for _, s := range spurs {
		assert.Empty(t, s.Text)
	}
}

func TestGenerateDegradesWhenServiceIsDown(t *testing.T) {
	llm := &scriptedLLM{reply: func(int, Request) (string, error) { return "", errors.New("unavailable") }}
	e := newTestEngine(t, llm, nil, func(c *Config) { c.MaxRegenerationRounds = 2 })

	spurs, err := e.Generate(context.Background(), GenerateRequest{UserID: "u1", Variants: []string{"main"}})
	require.NoError(t, err)
	require.Len(t, spurs, 1)
	assert.Equal(t, "main", spurs[0].Variant)
	assert.Empty(t, spurs[0].Text)
	// three rounds of three attempts
	assert.Len(t, llm.requests(), 9)
}

func TestGenerateRejectsUnknownVariant(t *testing.T) {
	llm := &scriptedLLM{reply: sequence(`{}`)}
	e := newTestEngine(t, llm, nil)

	_, err := e.Generate(context.Background(), GenerateRequest{UserID: "u1", Variants: []string{"main", "spicy"}})
	assert.ErrorIs(t, err, ErrInvalidVariantSet)
	assert.Empty(t, llm.requests())
}

func TestGenerateUsesStoredContext(t *testing.T) {
	st := newFakeStore()
	st.users["u1"] = &Profile{ID: "u1", Name: "Alex", SelectedVariants: []string{"playful", "main"}}
	st.conns["u1/p1"] = &Profile{ID: "p1", Name: "Sam", Drinking: "Never"}
	st.active["u1"] = "p1"
	st.convs["c1"] = &Conversation{
		ID:     "c1",
		UserID: "u1",
		Topic:  "friday plans",
		Turns:  []Turn{{Speaker: "Party B", Text: "wanna grab drinks tonight?"}},
	}

	llm := &scriptedLLM{
		reply: sequence(`{"main":"I'd love to, tea instead?","playful":"only if you're buying"}`),
		classify: func(req Request) (string, error) {
			if strings.Contains(req.User, tonePromptMarker) {
				return `{"tone":"excited","confidence":0.92}`, nil
			}
			return `{"situation":"cta_response","confidence":0.6}`, nil
		},
	}
	e := newTestEngine(t, llm, st)

	spurs, err := e.Generate(context.Background(), GenerateRequest{UserID: "u1", ConversationID: "c1"})
	require.NoError(t, err)
	require.Len(t, spurs, 2)

	assert.Equal(t, "main", spurs[0].Variant)
	assert.Equal(t, "playful", spurs[1].Variant)
	for _, s := range spurs {
		assert.Equal(t, "p1", s.ConnectionID)
		assert.Equal(t, "c1", s.ConversationID)
		assert.Equal(t, "excited", s.Tone)
		assert.Equal(t, "friday plans", s.Topic)
		// medium confidence is not trusted
		assert.Equal(t, "", s.Situation)
	}

	prompt := llm.spurPrompts()[0]
	assert.Contains(t, prompt, "Name: Sam")
	assert.Contains(t, prompt, "Party B: wanna grab drinks tonight?")
	assert.Contains(t, prompt, "***Tone:*** excited")
}

func TestGenerateKeepsCallerSituation(t *testing.T) {
	st := newFakeStore()
	st.convs["c1"] = &Conversation{ID: "c1", UserID: "u1", Turns: []Turn{{Speaker: "Party B", Text: "so?"}}}

	llm := &scriptedLLM{
		reply: sequence(`{"warm":"take your time"}`),
		classify: func(req Request) (string, error) {
			if strings.Contains(req.User, situationPromptMarker) {
				return `{"situation":"recovery","confidence":0.99}`, nil
			}
			return `{"tone":"curious","confidence":0.4}`, nil
		},
	}
	e := newTestEngine(t, llm, st)

	spurs, err := e.Generate(context.Background(), GenerateRequest{
		UserID: "u1", ConversationID: "c1", Situation: "cta_setup", Variants: []string{"warm"},
	})
	require.NoError(t, err)
	require.Len(t, spurs, 1)
	assert.Equal(t, "cta_setup", spurs[0].Situation)
	assert.Equal(t, "", spurs[0].Tone)
	for _, r := range llm.requests() {
		assert.NotContains(t, r.User, situationPromptMarker)
	}
}

func TestGenerateDropsUnsafeTopic(t *testing.T) {
	llm := &scriptedLLM{reply: sequence(`{"warm":"hey you"}`)}
	e := newTestEngine(t, llm, nil)

	spurs, err := e.Generate(context.Background(), GenerateRequest{UserID: "u1", Topic: "white power", Variants: []string{"warm"}})
	require.NoError(t, err)
	assert.Equal(t, "", spurs[0].Topic)
	assert.NotContains(t, llm.spurPrompts()[0], "white power")
}

func TestGenerateBlankTopicUsesConversationTopic(t *testing.T) {
	st := newFakeStore()
	st.convs["c1"] = &Conversation{ID: "c1", UserID: "u1", Situation: "cta_setup", Topic: "friday plans"}
	llm := &scriptedLLM{reply: sequence(`{"warm":"hey you"}`)}
	e := newTestEngine(t, llm, st)

	spurs, err := e.Generate(context.Background(), GenerateRequest{
		UserID: "u1", ConversationID: "c1", Topic: "   ", Variants: []string{"warm"},
	})
	require.NoError(t, err)
	assert.Equal(t, "friday plans", spurs[0].Topic)
	assert.Contains(t, llm.spurPrompts()[0], "***Topic:*** friday plans")
}

func TestResolveVariants(t *testing.T) {
	e := newTestEngine(t, &scriptedLLM{reply: sequence(`{}`)}, nil)

	got, err := e.ResolveVariants(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "warm", "cool", "playful"}, got)

	got, err = e.ResolveVariants([]string{"playful", "main", "playful"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "playful"}, got)

	got, err = e.ResolveVariants(nil, &Profile{SelectedVariants: []string{"cool"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"cool"}, got)

	_, err = e.ResolveVariants([]string{"nope"}, nil)
	assert.ErrorIs(t, err, ErrInvalidVariantSet)
}

func TestNewEngineValidatesConfig(t *testing.T) {
	llm := &scriptedLLM{reply: sequence(`{}`)}

	cfg := DefaultConfig()
	cfg.FallbackVariant = "missing"
	_, err := NewEngine(llm, nil, cfg)
	assert.ErrorIs(t, err, ErrInvalidVariantSet)

	_, err = NewEngine(nil, nil, DefaultConfig())
	assert.Error(t, err)
}

func TestMergeByVariant(t *testing.T) {
	current := map[string]string{"main": "a", "warm": "b", "cool": "c"}
	next := map[string]string{"cool": "C", "playful": "D"}

	got := MergeByVariant(current, next)
	assert.Equal(t, map[string]string{"main": "a", "warm": "b", "cool": "C", "playful": "D"}, got)
	assert.Equal(t, "c", current["cool"])
}
