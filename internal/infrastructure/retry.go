package infrastructure

import (
	"math"
	"math/rand"
	"time"
)

// retryPolicy is an exponential backoff capped at maxJitter, with a random jitter drawn
// from [0, maxJitter-minJitter].
type retryPolicy struct {
	factor    float64
	minJitter time.Duration
	maxJitter time.Duration
	rng       *rand.Rand
}

func newRetryPolicy(factor float64, minJitter, maxJitter time.Duration, defaults retryPolicy) retryPolicy {
	if factor < 1 {
		factor = defaults.factor
	}
	if minJitter <= 0 {
		minJitter = defaults.minJitter
	}
	if maxJitter <= 0 {
		maxJitter = defaults.maxJitter
	}
	if maxJitter < minJitter {
		maxJitter = minJitter
	}

	return retryPolicy{
		factor:    factor,
		minJitter: minJitter,
		maxJitter: maxJitter,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p retryPolicy) delay(attempt int) time.Duration {
	backoff := float64(p.minJitter) * math.Pow(p.factor, float64(attempt))
	if backoff > float64(p.maxJitter) {
		backoff = float64(p.maxJitter)
	}

	base := time.Duration(backoff)
	if p.maxJitter <= p.minJitter {
		return base
	}

	jitter := time.Duration(p.rng.Int63n(int64(p.maxJitter-p.minJitter) + 1))
	if result := base + jitter; result < p.maxJitter {
		return result
	}

	return p.maxJitter
}
