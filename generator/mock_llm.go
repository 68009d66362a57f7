package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var mockKeyRe = regexp.MustCompile(`(?m)^\s*"([A-Za-z0-9_]+)": "\.\.\."`)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
// It answers spur prompts with one canned line per requested key and
// classification prompts with a medium-confidence default.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, req Request) (string, error) {
	switch {
	case strings.Contains(req.User, tonePromptMarker):
		return `{"tone": "neutral", "confidence": 0.5}`, nil
	case strings.Contains(req.User, situationPromptMarker):
		return `{"situation": "cold_open", "confidence": 0.5}`, nil
	}

	out := make(map[string]string)
	for _, m := range mockKeyRe.FindAllStringSubmatch(req.User, -1) {
		out[m[1]] = fmt.Sprintf("Here's a %s reply, how has your week been?", m[1])
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return "```json\n" + string(b) + "\n```", nil
}
