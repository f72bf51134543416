package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/card-advisor/internal/apperr"
)

// Bounded bounds every call of the wrapped Generator and tags failures with
// an error kind: apperr.ErrOracleTimeout when the deadline passes,
// apperr.ErrDependency for anything else.
type Bounded struct {
	next    Generator
	timeout time.Duration
}

// WithTimeout wraps g so that each call is limited to timeout.
func WithTimeout(g Generator, timeout time.Duration) *Bounded {
	return &Bounded{next: g, timeout: timeout}
}

type generateResult struct {
	text string
	err  error
}

// Generate implements Generator.
func (b *Bounded) Generate(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan generateResult, 1)
	go func() {
		text, err := b.next.Generate(callCtx, req)
		done <- generateResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				return "", fmt.Errorf("oracle: %w after %s", apperr.ErrOracleTimeout, b.timeout)
			}
			return "", apperr.Dependency("oracle", res.err)
		}
		return res.text, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "", apperr.Dependency("oracle", fmt.Errorf("request cancelled: %w", ctx.Err()))
		}
		return "", fmt.Errorf("oracle: %w after %s", apperr.ErrOracleTimeout, b.timeout)
	}
}

var _ Generator = (*Bounded)(nil)
