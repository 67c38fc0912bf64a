package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a provider is failing; questions will fail until it recovers.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	ComponentDatabase   = "database"
	ComponentEmbedding  = "embedding"
	ComponentGeneration = "generation"
)

// DefaultCheckTimeout bounds each individual check.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
// Chunks is the number of indexed chunks, -1 when unknown.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Chunks int
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	index      IndexCounter
	embedding  ProviderChecker
	generation ProviderChecker
	timeout    time.Duration
}

// New creates a Service. index, embedding and generation can be nil.
func New(db DBPinger, index IndexCounter, embedding, generation ProviderChecker) *Service {
	return &Service{
		db:         db,
		index:      index,
		embedding:  embedding,
		generation: generation,
		timeout:    DefaultCheckTimeout,
	}
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]func(context.Context) error{
		ComponentDatabase: s.db.Ping,
	}
	if s.embedding != nil {
		checks[ComponentEmbedding] = s.embedding.HealthCheck
	}
	if s.generation != nil {
		checks[ComponentGeneration] = s.generation.HealthCheck
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := check(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	rep := Report{Status: Healthy, Checks: results, Chunks: -1}
	for _, v := range results {
		if v == CheckError {
			rep.Status = Degraded
			break
		}
	}
	if results[ComponentDatabase] == CheckError {
		rep.Status = Unhealthy
		return rep
	}

	if s.index != nil {
		if n, err := s.index.Count(ctx); err == nil {
			rep.Chunks = n
		}
	}
	return rep
}
