// Package ratelimit throttles requests per client with token buckets kept in
// Redis, or in process memory when Redis is not configured.
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Policy is a bucket of Limit requests refilled evenly over Window. A client
// that overruns a policy with a Block is refused for Block, whatever the
// bucket holds meanwhile.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
	Block  time.Duration
}

// Interval is the time it takes to refill one token.
func (p Policy) Interval() time.Duration {
	if p.Limit <= 0 {
		return p.Window
	}
	return p.Window / time.Duration(p.Limit)
}

var (
	// AuthPolicy guards credential endpoints against guessing.
	AuthPolicy = Policy{Name: "auth", Limit: 10, Window: 5 * time.Minute, Block: time.Hour}
	// MutationPolicy applies to every other write.
	MutationPolicy = Policy{Name: "mutation", Limit: 2, Window: time.Second, Block: 5 * time.Minute}
	// ReadPolicy applies to everything else.
	ReadPolicy = Policy{Name: "read", Limit: 180, Window: time.Minute}
)

// Classify picks the policy for a request.
func Classify(r *http.Request) Policy {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return ReadPolicy
	}
	path := strings.TrimRight(r.URL.Path, "/")
	if r.Method == http.MethodPost && (strings.HasSuffix(path, "/auth/login") || strings.HasSuffix(path, "/users")) {
		return AuthPolicy
	}
	return MutationPolicy
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter takes one token for key under policy.
type Limiter interface {
	Allow(ctx context.Context, key string, policy Policy) (Decision, error)
}
