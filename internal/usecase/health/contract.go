package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks an optional dependency such as the vision provider.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a plain function, such as a pool's Ping, to Checker.
type CheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
