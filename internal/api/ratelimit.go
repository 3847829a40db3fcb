package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/veilapp/veil-server/internal/ratelimit"
)

// RateLimiter wraps KeyedRateLimiter for API use.
type RateLimiter = ratelimit.KeyedRateLimiter

// NewRateLimiter creates a rate limiter allowing rps requests per second
// per key with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return ratelimit.New(rps, burst)
}

// checkRecomputeLimit enforces the per-user recompute rate. Keys are
// user IDs: one client hammering its own rebuild cannot starve another
// user's.
func (s *Server) checkRecomputeLimit(userID string) error {
	if s.recomputeRateLimiter.Allow(userID) {
		return nil
	}
	s.logger.Warn("recompute rate limit exceeded", "user_id", userID)
	return huma.Error429TooManyRequests("Too many recompute requests. Please try again later.")
}
