package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

const (
	DefaultTone      = "neutral"
	DefaultSituation = "cold_open"

	tonePromptMarker      = "Analyze the tone of the message below."
	situationPromptMarker = "Analyze the situation of the conversation below."
)

// Situations is the closed set of situation labels the inferencer may return.
var Situations = []string{
	"cold_open",
	"recovery",
	"follow_up_no_response",
	"cta_setup",
	"cta_response",
	"message_refinement",
	"topic_pivot",
	"re_engagement",
}

// Inference is a classified label with the model's confidence.
type Inference struct {
	Label      string
	Confidence float64
}

// Inferencer classifies tone and situation with small auxiliary generation requests.
type Inferencer struct {
	llm         LLMClient
	system      string
	temperature float64
	logger      *log.Logger
}

func NewInferencer(llm LLMClient, system string, temperature float64, logger *log.Logger) *Inferencer {
	if logger == nil {
		logger = log.Default()
	}
	return &Inferencer{llm: llm, system: system, temperature: temperature, logger: logger}
}

// InferTone classifies the emotional tone of a single message.
// Any failure yields DefaultTone at confidence 0.
func (in *Inferencer) InferTone(ctx context.Context, message Turn) Inference {
	prompt := fmt.Sprintf("%s Respond only with a JSON object like:\n{\"tone\": \"playful\", \"confidence\": 0.84}\n\nMessage:\n%s",
		tonePromptMarker, message.Text)

	inf, err := in.classify(ctx, prompt, "tone")
	if err != nil || inf.Label == "" {
		in.logger.Warn("tone inference failed", "error", err)
		return Inference{Label: DefaultTone}
	}
	inf.Label = strings.ToLower(inf.Label)
	return inf
}

// InferSituation classifies the conversation into one of Situations.
// Any failure, including a label outside the closed set, yields DefaultSituation at confidence 0.
func (in *Inferencer) InferSituation(ctx context.Context, turns []Turn) Inference {
	transcript, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return Inference{Label: DefaultSituation}
	}

	var sb strings.Builder
	sb.WriteString("You're a messaging assistant. " + situationPromptMarker + "\n")
	sb.WriteString("Respond ONLY with a JSON object like this:\n")
	sb.WriteString("{\"situation\": \"cta_setup\", \"confidence\": 0.85}\n\n")
	sb.WriteString("Valid situations:\n")
	for _, s := range Situations {
		sb.WriteString("- " + s + "\n")
	}
	sb.WriteString("\nConversation:\n")
	sb.Write(transcript)
	sb.WriteString("\n")

	inf, err := in.classify(ctx, sb.String(), "situation")
	if err != nil {
		in.logger.Warn("situation inference failed", "error", err)
		return Inference{Label: DefaultSituation}
	}
	inf.Label = strings.ToLower(inf.Label)
	if !lo.Contains(Situations, inf.Label) {
		in.logger.Warn("situation inference returned unknown label", "label", inf.Label)
		return Inference{Label: DefaultSituation}
	}
	return inf
}

func (in *Inferencer) classify(ctx context.Context, prompt, key string) (Inference, error) {
	raw, err := in.llm.Complete(ctx, Request{
		System:      in.system,
		User:        prompt,
		Temperature: in.temperature,
	})
	if err != nil {
		return Inference{}, err
	}
	body := extractJSON(raw)
	if !gjson.Valid(body) {
		return Inference{}, fmt.Errorf("malformed classification response %q", raw)
	}
	obj := gjson.Parse(body)
	if !obj.IsObject() {
		return Inference{}, fmt.Errorf("classification response is not an object")
	}

	label := obj.Get(key)
	if !label.Exists() {
		label = obj.Get("label")
	}
	conf := obj.Get("confidence")
	if label.Type != gjson.String || conf.Type != gjson.Number {
		return Inference{}, fmt.Errorf("classification response missing %s/confidence", key)
	}
	score := conf.Float()
	if score < 0 || score > 1 {
		return Inference{}, fmt.Errorf("confidence %.3f out of range", score)
	}
	return Inference{Label: strings.TrimSpace(label.String()), Confidence: score}, nil
}
