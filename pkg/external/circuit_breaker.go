package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/onco-efficacy-engine/internal/domain"
)

// ResilientClient wraps the collaborator clients with circuit breakers and
// Redis caching. It is the production implementation of the engine's
// collaborator ports; failures propagate as errors and the orchestrator owns
// the degradation policy.
type ResilientClient struct {
	baseline *SequenceScorerClient
	enhanced *SequenceScorerClient
	evidence *EvidenceClient
	clinical *ClinicalVariantClient
	insights *InsightsClient
	cache    *CacheClient

	baselineBreaker *gobreaker.CircuitBreaker
	enhancedBreaker *gobreaker.CircuitBreaker
	evidenceBreaker *gobreaker.CircuitBreaker
	clinicalBreaker *gobreaker.CircuitBreaker
	insightsBreaker *gobreaker.CircuitBreaker

	log *logrus.Logger
}

// NewResilientClient creates the resilient collaborator client. The enhanced
// scorer and the cache are optional and disabled through their configs.
func NewResilientClient(
	baselineConfig domain.SequenceScorerConfig,
	enhancedConfig domain.SequenceScorerConfig,
	evidenceConfig domain.EvidenceConfig,
	clinicalConfig domain.ClinicalDBConfig,
	insightsConfig domain.InsightsConfig,
	cacheConfig domain.CacheConfig,
	logger *logrus.Logger,
) (*ResilientClient, error) {
	r := &ResilientClient{
		baseline: NewSequenceScorerClient(baselineConfig),
		evidence: NewEvidenceClient(evidenceConfig),
		clinical: NewClinicalVariantClient(clinicalConfig),
		insights: NewInsightsClient(insightsConfig),
		log:      logger,
	}

	if enhancedConfig.Enabled {
		r.enhanced = NewSequenceScorerClient(enhancedConfig)
	}

	if cacheConfig.Enabled {
		cache, err := NewCacheClient(cacheConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache client: %w", err)
		}
		r.cache = cache
	}

	r.baselineBreaker = r.newBreaker("SequenceScorer", 5, 60*time.Second)
	r.enhancedBreaker = r.newBreaker("EnhancedScorer", 5, 60*time.Second)
	r.evidenceBreaker = r.newBreaker("EvidenceProvider", 5, 60*time.Second)
	r.clinicalBreaker = r.newBreaker("ClinicalVariantDB", 3, 60*time.Second)
	r.insightsBreaker = r.newBreaker("InsightsProvider", 5, 30*time.Second)

	return r, nil
}

func (r *ResilientClient) newBreaker(name string, maxRequests uint32, timeout time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    30 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// scorerAdapter binds one scorer client to its breaker behind the
// SequenceScorer port.
type scorerAdapter struct {
	client  *SequenceScorerClient
	breaker *gobreaker.CircuitBreaker
}

// ScoreVariant scores the variant through the circuit breaker.
func (a scorerAdapter) ScoreVariant(ctx context.Context, variant *domain.Variant) (*domain.SequenceScore, error) {
	result, err := a.breaker.Execute(func() (interface{}, error) {
		return a.client.ScoreVariant(ctx, variant)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("%s: %w", a.breaker.Name(), domain.ErrUpstreamUnavailable)
		}
		return nil, err
	}
	return result.(*domain.SequenceScore), nil
}

// Baseline returns the baseline sequence scorer port.
func (r *ResilientClient) Baseline() domain.SequenceScorer {
	return scorerAdapter{client: r.baseline, breaker: r.baselineBreaker}
}

// Enhanced returns the enhanced sequence scorer port, nil when disabled.
func (r *ResilientClient) Enhanced() domain.SequenceScorer {
	if r.enhanced == nil {
		return nil
	}
	return scorerAdapter{client: r.enhanced, breaker: r.enhancedBreaker}
}

// GatherEvidence fetches evidence, cache-first, with the circuit breaker
// around the live call. Only fully-completed live calls are written back to
// the cache.
func (r *ResilientClient) GatherEvidence(ctx context.Context, gene, proteinChange, drug, mechanism string) (*domain.EvidenceResult, error) {
	if r.cache != nil {
		if cached, found, err := r.cache.GetEvidence(ctx, gene, proteinChange, drug, mechanism); err == nil && found {
			return cached, nil
		}
	}

	result, err := r.evidenceBreaker.Execute(func() (interface{}, error) {
		return r.evidence.GatherEvidence(ctx, gene, proteinChange, drug, mechanism)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("evidence provider: %w", domain.ErrUpstreamUnavailable)
		}
		return nil, fmt.Errorf("evidence query failed: %w", err)
	}

	evidence := result.(*domain.EvidenceResult)
	if r.cache != nil {
		if cacheErr := r.cache.SetEvidence(ctx, gene, proteinChange, drug, mechanism, evidence); cacheErr != nil {
			r.log.WithError(cacheErr).Debug("Failed to cache evidence result")
		}
	}
	return evidence, nil
}

// LookupPrior fetches the clinical prior, cache-first.
func (r *ResilientClient) LookupPrior(ctx context.Context, variant *domain.Variant) (*domain.ClinicalPrior, error) {
	if r.cache != nil {
		if cached, found, err := r.cache.GetPrior(ctx, variant); err == nil && found {
			return cached, nil
		}
	}

	result, err := r.clinicalBreaker.Execute(func() (interface{}, error) {
		return r.clinical.LookupPrior(ctx, variant)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("clinical-variant database: %w", domain.ErrUpstreamUnavailable)
		}
		return nil, fmt.Errorf("prior lookup failed: %w", err)
	}

	prior := result.(*domain.ClinicalPrior)
	if r.cache != nil {
		if cacheErr := r.cache.SetPrior(ctx, variant, prior); cacheErr != nil {
			r.log.WithError(cacheErr).Debug("Failed to cache clinical prior")
		}
	}
	return prior, nil
}

// VariantInsights fetches the insights bundle through the circuit breaker.
// Insights are cheap to recompute and carry no cache layer.
func (r *ResilientClient) VariantInsights(ctx context.Context, variant *domain.Variant) (*domain.InsightsBundle, error) {
	result, err := r.insightsBreaker.Execute(func() (interface{}, error) {
		return r.insights.VariantInsights(ctx, variant)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("insights provider: %w", domain.ErrUpstreamUnavailable)
		}
		return nil, fmt.Errorf("insights query failed: %w", err)
	}
	return result.(*domain.InsightsBundle), nil
}

// CircuitBreakerStates reports the current state of every breaker, for the
// health endpoint.
func (r *ResilientClient) CircuitBreakerStates() map[string]string {
	return map[string]string{
		"sequence_scorer":     r.baselineBreaker.State().String(),
		"enhanced_scorer":     r.enhancedBreaker.State().String(),
		"evidence_provider":   r.evidenceBreaker.State().String(),
		"clinical_variant_db": r.clinicalBreaker.State().String(),
		"insights_provider":   r.insightsBreaker.State().String(),
	}
}

// Close releases cache connections.
func (r *ResilientClient) Close() error {
	if r.cache != nil {
		return r.cache.Close()
	}
	return nil
}
