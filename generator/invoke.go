package generator

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// maxAttempts bounds RetrySchedule.Attempts regardless of configuration.
const maxAttempts = 3

// Invoker calls the generation service with a bounded retry schedule.
// Attempt 1 uses the creative temperature; later attempts use the
// conservative temperature and append the safety suffix.
type Invoker struct {
	llm      LLMClient
	system   string
	schedule RetrySchedule
	logger   *log.Logger
}

func NewInvoker(llm LLMClient, system string, schedule RetrySchedule, logger *log.Logger) *Invoker {
	if logger == nil {
		logger = log.Default()
	}
	if schedule.Attempts < 1 {
		schedule.Attempts = 1
	}
	if schedule.Attempts > maxAttempts {
		schedule.Attempts = maxAttempts
	}
	return &Invoker{llm: llm, system: system, schedule: schedule, logger: logger}
}

// Invoke returns the first non-empty response that carries a JSON object.
// Per-attempt failures are logged; ErrAttemptsExhausted is returned when none succeed.
func (c *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.schedule.Attempts; attempt++ {
		req := Request{
			System:      c.system,
			User:        prompt,
			Temperature: c.schedule.CreativeTemperature,
			MaxTokens:   c.schedule.MaxTokens,
		}
		if attempt > 0 {
			req.User = prompt + c.schedule.SafetySuffix
			req.Temperature = c.schedule.ConservativeTemperature
		}

		raw, err := c.llm.Complete(ctx, req)
		switch {
		case err != nil:
			lastErr = err
		case strings.TrimSpace(raw) == "":
			lastErr = errors.New("empty response")
		case !hasJSONObject(raw):
			lastErr = errors.New("response carries no JSON object")
		default:
			attemptsTotal.WithLabelValues("ok").Inc()
			return raw, nil
		}
		attemptsTotal.WithLabelValues("failed").Inc()
		c.logger.Warn("generation attempt failed",
			"attempt", attempt+1,
			"temperature", req.Temperature,
			"error", lastErr)
	}
	c.logger.Error("all generation attempts failed", "attempts", c.schedule.Attempts, "error", lastErr)
	return "", errors.Wrapf(ErrAttemptsExhausted, "after %d attempts: %v", c.schedule.Attempts, lastErr)
}
