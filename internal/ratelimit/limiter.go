package ratelimit

import "context"

// RateLimiter controls outbound send throughput per channel type.
type RateLimiter interface {
	Allow(ctx context.Context, channelType string) (bool, error)
	Wait(ctx context.Context, channelType string) error
}
