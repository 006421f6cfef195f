package config

import "git.home.luguber.info/inful/taskescrow/internal/foundation/normalization"

// RetryBackoffMode selects how the NATS KV store spaces its compare-and-swap
// retries after a revision conflict.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer("store.retry.backoff", map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, "")

// NormalizeRetryBackoff maps user input onto a backoff mode. Unknown input
// yields the empty mode so Validate can reject it.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}
