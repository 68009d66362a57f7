package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleAndRender(t *testing.T) {
	conv := &Conversation{
		ID:    "c1",
		Turns: []Turn{{Speaker: "Party A", Text: "hey!"}, {Speaker: "Party B", Text: "wanna grab drinks tonight?"}},
	}
	traits := [][]string{{"outdoorsy", "dog lover"}, {}}
	user := &Profile{ID: "u1", Name: "Alex", Age: 29, Greenlights: []string{"hiking", "coffee"}}
	other := &Profile{ID: "p1", Name: "Sam", Drinking: "Never", PersonalityTraits: []string{"curious"}}
	b := Assemble(AssembleInput{
		User:            user,
		Other:           other,
		Conversation:    conv,
		Situation:       "cta_response",
		Topic:           "weekend",
		Tone:            "playful",
		ProfileOCRTexts: []string{"Loves sunsets"},
		PhotoTraits:     traits,
	})

	conv.Turns[0].Text = "mutated"
	traits[0][0] = "mutated"
	user.Greenlights[0] = "mutated"
	other.PersonalityTraits[0] = "mutated"
	other.Name = "mutated"

	assert.Equal(t, []string{"hiking", "coffee"}, b.User.Greenlights)
	assert.Equal(t, []string{"curious"}, b.Other.PersonalityTraits)

	assert.Equal(t, "c1", b.ConversationID)
	last, ok := b.LastTurn()
	require.True(t, ok)
	assert.Equal(t, "wanna grab drinks tonight?", last.Text)
	assert.Len(t, b.PhotoTraits, 1)

	out := b.Render()
	for _, want := range []string{
		"***User Profile:***\nName: Alex\nAge: 29\nGreenlight Topics: hiking, coffee",
		"***Connection Profile:***\nName: Sam\nDrinking: Never",
		"***Additional Connection Profile Info (from OCR):***\n- Loves sunsets",
		"- Inferred Traits: outdoorsy, dog lover",
		"Party A: hey!\nParty B: wanna grab drinks tonight?",
		"***Situation:*** cta_response",
		"***Topic:*** weekend",
		"***Tone:*** playful",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "mutated")
	assert.Less(t, strings.Index(out, "***User Profile"), strings.Index(out, "***Connection Profile"))
}

func TestRenderWithoutConnection(t *testing.T) {
	b := Assemble(AssembleInput{User: &Profile{ID: "u1"}})
	out := b.Render()
	assert.Contains(t, out, "(no active connection)")
	assert.NotContains(t, out, "from OCR")
	_, ok := b.LastTurn()
	assert.False(t, ok)
}
