package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentrun/logging"
)

// DefaultGenerateAttempts is the number of attempts a model call gets before
// the error is treated as fatal.
const DefaultGenerateAttempts = 2

// GenerateWithRetry calls Generate up to attempts times with a short linear
// backoff between tries. The last error is returned when every attempt fails
// or the context is cancelled.
func GenerateWithRetry(ctx context.Context, m Model, req *Request, attempts int, logger logging.Logger) (*Message, error) {
	if attempts <= 0 {
		attempts = DefaultGenerateAttempts
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		msg, err := m.Generate(ctx, req)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		logger.Warn("model call failed", "attempt", attempt, "attempts", attempts, "error", err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("model call failed after %d attempts: %w", attempts, lastErr)
}
