package generator

import "context"

// Request is a single call to the generation service.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// LLMClient 抽象大模型客户端，便于替换/Mock。
// Implementations must be safe for concurrent use by independent requests.
type LLMClient interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
