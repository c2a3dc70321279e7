package service

import (
	"github.com/onco-efficacy-engine/internal/domain"
)

// Gate provenance flag values recorded when a gate fires.
const (
	GateCoverage       = "coverage_gate"
	GateEvidence       = "evidence_gate"
	GateDiseaseContext = "disease_context_gate"
)

// Evidence-gate multipliers, applied after base confidence and before the
// final clamp.
const (
	evidenceGateSupported    = 1.15
	evidenceGateConsider     = 1.05
	evidenceGateInsufficient = 0.95
)

// diseaseContextCeiling is the conservative confidence cap applied when the
// disease-specific contextual fields required for full confidence are absent.
const diseaseContextCeiling = 0.4

// CoverageGate restricts the enhanced sequence scorer to variants it is
// validated for. When preconditions fail the caller falls back to the
// baseline scorer without erroring.
type CoverageGate struct {
	Build        domain.GenomeBuild
	Consequences map[domain.Consequence]bool
}

// NewCoverageGate creates the default coverage gate: the enhanced scorer is
// validated for GRCh38 missense and nonsense variants only.
func NewCoverageGate() *CoverageGate {
	return &CoverageGate{
		Build: domain.BuildGRCh38,
		Consequences: map[domain.Consequence]bool{
			domain.ConsequenceMissense: true,
			domain.ConsequenceNonsense: true,
		},
	}
}

// Allows reports whether the enhanced scorer may be invoked for the variant.
// Both the genome build and the consequence type must match.
func (g *CoverageGate) Allows(v *domain.Variant) bool {
	if v.Build != g.Build {
		return false
	}
	return g.Consequences[v.Consequence]
}

// EvidenceGate applies the tier-conditioned multiplicative adjustment to
// confidence. It always fires; the returned multiplier is recorded in the
// rationale breakdown.
type EvidenceGate struct{}

// Apply returns the adjusted confidence and the multiplier used.
func (EvidenceGate) Apply(confidence float64, tier domain.EvidenceTier) (float64, float64) {
	var multiplier float64
	switch tier {
	case domain.TierSupported:
		multiplier = evidenceGateSupported
	case domain.TierConsider:
		multiplier = evidenceGateConsider
	default:
		multiplier = evidenceGateInsufficient
	}
	return confidence * multiplier, multiplier
}

// DiseaseContextGate caps confidence when disease-specific contextual data is
// missing. The gate fires only when the effective context is genuinely empty:
// a context struct whose fields are all blank counts as absent, while a
// non-empty default resolved from the disease profile suppresses the gate.
type DiseaseContextGate struct{}

// Apply returns the capped confidence and whether the gate fired.
func (DiseaseContextGate) Apply(confidence float64, context *domain.DiseaseContext) (float64, bool) {
	if !context.IsEmpty() {
		return confidence, false
	}
	if confidence <= diseaseContextCeiling {
		return confidence, true
	}
	return diseaseContextCeiling, true
}
