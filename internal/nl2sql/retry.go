package nl2sql

import (
	"context"
	"errors"
	"log/slog"
)

const maxRetries = 1

type retryingTranslator struct {
	next    Translator
	retries int
	logger  *slog.Logger
}

// WithRetry repeats a call that failed with ErrTransient. retries is capped
// at one extra attempt.
func WithRetry(next Translator, retries int, logger *slog.Logger) Translator {
	if retries <= 0 {
		return next
	}
	if retries > maxRetries {
		retries = maxRetries
	}
	return &retryingTranslator{next: next, retries: retries, logger: logger}
}

func (t *retryingTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	result, err := t.next.Translate(ctx, req)
	for attempt := 1; attempt <= t.retries; attempt++ {
		if err == nil || !errors.Is(err, ErrTransient) || ctx.Err() != nil {
			break
		}
		if t.logger != nil {
			t.logger.WarnContext(ctx, "retrying language model call", slog.Int("attempt", attempt), slog.Any("error", err))
		}
		result, err = t.next.Translate(ctx, req)
	}
	return result, err
}
