package domain

import (
	"context"
)

// SequenceScorer returns a disruption value and calibrated percentile for a
// variant. Implementations must tolerate "not computable" by returning a
// SequenceScore with a nil Percentile rather than an error.
type SequenceScorer interface {
	ScoreVariant(ctx context.Context, variant *Variant) (*SequenceScore, error)
}

// EvidenceProvider returns literature/clinical evidence for a
// gene+variant+drug triple.
type EvidenceProvider interface {
	GatherEvidence(ctx context.Context, gene, proteinChange, drug, mechanism string) (*EvidenceResult, error)
}

// ClinicalVariantLookup returns a pathogenicity prior for a variant from a
// clinical-variant database.
type ClinicalVariantLookup interface {
	LookupPrior(ctx context.Context, variant *Variant) (*ClinicalPrior, error)
}

// InsightsProvider returns the four auxiliary per-variant scores.
type InsightsProvider interface {
	VariantInsights(ctx context.Context, variant *Variant) (*InsightsBundle, error)
}
