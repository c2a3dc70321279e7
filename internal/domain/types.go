// Package domain contains the core business entities for the efficacy scoring
// and confidence orchestration engine: patient variants, per-drug scoring
// results, evidence tiers and the provenance record attached to every run.
package domain

import "errors"

// EvidenceTier is the coarse confidence bucket assigned to a drug from
// literature/clinical evidence and pathway alignment. Tiers are terminal and
// mutually exclusive; every request computes them fresh.
type EvidenceTier string

const (
	TierSupported    EvidenceTier = "supported"
	TierConsider     EvidenceTier = "consider"
	TierInsufficient EvidenceTier = "insufficient"
)

// IsValid reports whether the tier is one of the three defined buckets.
func (t EvidenceTier) IsValid() bool {
	switch t {
	case TierSupported, TierConsider, TierInsufficient:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tier.
func (t EvidenceTier) String() string {
	return string(t)
}

// GenomeBuild identifies the reference assembly a variant's coordinates use.
type GenomeBuild string

const (
	BuildGRCh38 GenomeBuild = "GRCh38"
	BuildGRCh37 GenomeBuild = "GRCh37"
)

// IsValid reports whether the build is a supported reference assembly.
func (b GenomeBuild) IsValid() bool {
	switch b {
	case BuildGRCh38, BuildGRCh37:
		return true
	default:
		return false
	}
}

// Consequence is the predicted molecular consequence of a variant.
type Consequence string

const (
	ConsequenceMissense   Consequence = "missense"
	ConsequenceNonsense   Consequence = "nonsense"
	ConsequenceFrameshift Consequence = "frameshift"
	ConsequenceSpliceSite Consequence = "splice_site"
	ConsequenceSynonymous Consequence = "synonymous"
	ConsequenceOther      Consequence = "other"
)

// IsValid reports whether the consequence is a recognized type.
func (c Consequence) IsValid() bool {
	switch c {
	case ConsequenceMissense, ConsequenceNonsense, ConsequenceFrameshift,
		ConsequenceSpliceSite, ConsequenceSynonymous, ConsequenceOther:
		return true
	default:
		return false
	}
}

// AblationMode disables a single scoring signal for benchmarking. The mode is
// carried through the request options and recorded in provenance; it is never
// read from ambient state.
type AblationMode string

const (
	AblationNone       AblationMode = "none"
	AblationNoSequence AblationMode = "no_sequence"
	AblationNoPathway  AblationMode = "no_pathway"
	AblationNoEvidence AblationMode = "no_evidence"
)

// IsValid reports whether the ablation mode is recognized. The empty string
// is accepted and treated as AblationNone.
func (m AblationMode) IsValid() bool {
	switch m {
	case "", AblationNone, AblationNoSequence, AblationNoPathway, AblationNoEvidence:
		return true
	default:
		return false
	}
}

// Badges are independent boolean tags surfaced alongside the evidence tier
// for audit. They affect the tier only through the documented tier rules.
const (
	BadgeRandomizedTrial  = "randomized_trial"
	BadgeGuidelineListed  = "guideline_listed"
	BadgeStrongClinicalDB = "strong_clinical_db"
	BadgePathwayAligned   = "pathway_aligned"
)

// Calibration provenance markers.
const (
	CalibrationGeneSnapshot   = "gene_snapshot"
	CalibrationFallbackGlobal = "fallback_global"
	CalibrationSkipped        = "skipped"
)

// SchemaVersion is the response contract version. The response shape is
// strictly additive within a version: fields may be appended, never renamed
// or removed.
const SchemaVersion = "v1"

// Validation errors surfaced by entity Validate methods.
var (
	ErrMissingGene        = errors.New("gene symbol is required")
	ErrMissingCoordinates = errors.New("genomic coordinates are required")
	ErrInvalidBuild       = errors.New("unsupported genome build")
	ErrInvalidConsequence = errors.New("unrecognized consequence type")
	ErrInvalidAblation    = errors.New("unrecognized ablation mode")
)
