// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"

	"github.com/jllopis/crewsum/pkg/llm"
)

// RetryCompleter retries recoverable completion failures (rate limits and
// transport errors) according to cfg. A single-attempt config returns c as is.
func RetryCompleter(c llm.Completer, cfg RetryConfig) llm.Completer {
	if cfg.MaxAttempts <= 1 {
		return c
	}
	return llm.CompleterFunc(func(ctx context.Context, completion llm.Completion) (string, error) {
		return Retry(ctx, cfg, func(ctx context.Context) (string, error) {
			return c.Complete(ctx, completion)
		})
	})
}
