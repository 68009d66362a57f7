package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func classifier(resp string, err error) *scriptedLLM {
	return &scriptedLLM{classify: func(Request) (string, error) { return resp, err }}
}

func TestInferTone(t *testing.T) {
	msg := Turn{Speaker: "Party B", Text: "haha you wish"}
	tests := []struct {
		name string
		resp string
		err  error
		want Inference
	}{
		{"plain", `{"tone": "Playful", "confidence": 0.84}`, nil, Inference{Label: "playful", Confidence: 0.84}},
		{"fenced", "```json\n{\"tone\": \"sarcastic\", \"confidence\": 0.9}\n```", nil, Inference{Label: "sarcastic", Confidence: 0.9}},
		{"label key", `{"label": "warm", "confidence": 0.7}`, nil, Inference{Label: "warm", Confidence: 0.7}},
		{"malformed", `tone: playful`, nil, Inference{Label: DefaultTone}},
		{"out of range", `{"tone": "playful", "confidence": 1.4}`, nil, Inference{Label: DefaultTone}},
		{"confidence as string", `{"tone": "playful", "confidence": "high"}`, nil, Inference{Label: DefaultTone}},
		{"service error", "", errors.New("down"), Inference{Label: DefaultTone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewInferencer(classifier(tt.resp, tt.err), "", 0.65, discardLogger())
			assert.Equal(t, tt.want, in.InferTone(context.Background(), msg))
		})
	}
}

func TestInferSituation(t *testing.T) {
	turns := []Turn{{Speaker: "Party A", Text: "hey"}, {Speaker: "Party B", Text: "wanna grab drinks tonight?"}}

	t.Run("known label", func(t *testing.T) {
		llm := classifier(`{"situation": "cta_response", "confidence": 0.91}`, nil)
		got := NewInferencer(llm, "", 0.65, discardLogger()).InferSituation(context.Background(), turns)
		assert.Equal(t, Inference{Label: "cta_response", Confidence: 0.91}, got)

		reqs := llm.requests()
		assert.Contains(t, reqs[0].User, "wanna grab drinks tonight?")
		assert.Contains(t, reqs[0].User, "- re_engagement")
		assert.Equal(t, 0.65, reqs[0].Temperature)
	})

	t.Run("label outside the closed set", func(t *testing.T) {
		llm := classifier(`{"situation": "first_date", "confidence": 0.99}`, nil)
		got := NewInferencer(llm, "", 0.65, discardLogger()).InferSituation(context.Background(), turns)
		assert.Equal(t, Inference{Label: DefaultSituation}, got)
	})
}
