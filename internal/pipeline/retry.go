package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/docdigest/internal/extract"
)

const (
	backoffBase = time.Second
	backoffCap  = 30 * time.Second
	// maxRetryAfter bounds how long a server-requested wait is honored.
	maxRetryAfter = time.Minute
)

// IsRetryable reports whether err is a transient model failure.
func IsRetryable(err error) bool {
	var re *extract.RetryableError
	return errors.As(err, &re)
}

// Backoff is the wait before retry attempt n (0-indexed): doubling from one
// second, capped at 30s, plus up to 50% jitter.
func Backoff(attempt int) time.Duration {
	d := min(backoffBase<<min(attempt, 5), backoffCap)
	return d + rand.N(d/2+1)
}

// retryDelay prefers the server's Retry-After when it asks for longer than
// the computed backoff.
func retryDelay(err error, backoff time.Duration) time.Duration {
	var re *extract.RetryableError
	if errors.As(err, &re) && re.RetryAfter > backoff {
		return min(re.RetryAfter, maxRetryAfter)
	}
	return backoff
}
