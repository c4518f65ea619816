// server/internal/reachability/probe.go
// Package reachability answers whether the remote document store can be reached right now.
package reachability

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Probe is asked once per capture, at routing time. Implementations must not cache.
type Probe interface {
	IsReachable(ctx context.Context) bool
}

// Pinger is anything with a cheap round trip to the remote store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingProbe treats a successful ping within Timeout as reachable.
type PingProbe struct {
	Target  Pinger
	Timeout time.Duration
}

func NewPingProbe(target Pinger, timeout time.Duration) *PingProbe {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PingProbe{Target: target, Timeout: timeout}
}

func (p *PingProbe) IsReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	if err := p.Target.Ping(ctx); err != nil {
		zap.L().Debug("reachability: remote store unreachable", zap.Error(err))
		return false
	}
	return true
}

// Static always gives the same verdict. The CLI uses it for --offline.
type Static bool

func (s Static) IsReachable(context.Context) bool { return bool(s) }

// Func adapts a function to Probe.
type Func func(ctx context.Context) bool

func (f Func) IsReachable(ctx context.Context) bool { return f(ctx) }
