package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks availability of a model provider (embedding or generation).
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexCounter reports how many chunks the vector index holds.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}
