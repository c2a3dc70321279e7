package domain

import (
	"fmt"
	"time"
)

// Variant is one mutation instance from the incoming request. It is immutable
// after request parsing; the pipeline never writes to it.
type Variant struct {
	Gene          string      `json:"gene"`
	ProteinChange string      `json:"protein_change,omitempty"`
	Chromosome    string      `json:"chromosome"`
	Position      int64       `json:"position"`
	Reference     string      `json:"reference"`
	Alternate     string      `json:"alternate"`
	Build         GenomeBuild `json:"build"`
	Consequence   Consequence `json:"consequence"`
}

// Validate checks the fields required for scoring. A variant that fails
// validation is excluded from the run with a provenance warning; it never
// fails the whole request.
func (v *Variant) Validate() error {
	if v.Gene == "" {
		return fmt.Errorf("variant validation: %w", ErrMissingGene)
	}
	if v.Chromosome == "" || v.Position <= 0 || v.Reference == "" || v.Alternate == "" {
		return fmt.Errorf("variant validation: %w", ErrMissingCoordinates)
	}
	if v.Build != "" && !v.Build.IsValid() {
		return fmt.Errorf("variant validation: %w", ErrInvalidBuild)
	}
	if v.Consequence != "" && !v.Consequence.IsValid() {
		return fmt.Errorf("variant validation: %w", ErrInvalidConsequence)
	}
	return nil
}

// Key returns a stable identity for the variant, used for cache keys and
// per-variant deduplication within a request.
func (v *Variant) Key() string {
	return fmt.Sprintf("%s:%s:%d:%s>%s", v.Gene, v.Chromosome, v.Position, v.Reference, v.Alternate)
}

// SequenceScore is the sequence scorer's output for one variant. Percentile
// is nil when the scorer reports the variant as not computable.
type SequenceScore struct {
	Disruption float64           `json:"disruption_value"`
	Percentile *float64          `json:"calibrated_percentile"`
	Mode       string            `json:"mode"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// PercentileOrZero returns the calibrated percentile, or 0 when the scorer
// could not compute one.
func (s *SequenceScore) PercentileOrZero() float64 {
	if s == nil || s.Percentile == nil {
		return 0
	}
	return *s.Percentile
}

// ScoredVariant pairs a variant with its sequence score for the duration of
// one request.
type ScoredVariant struct {
	Variant  Variant         `json:"variant"`
	Score    *SequenceScore  `json:"score"`
	Insights *InsightsBundle `json:"insights,omitempty"`
	Prior    *ClinicalPrior  `json:"prior,omitempty"`
}

// PathwayScores maps pathway identifiers to aggregated non-negative scores.
// A missing key reads as 0.0, never as an error.
type PathwayScores map[string]float64

// Get returns the score for a pathway, 0.0 when the pathway is absent.
func (p PathwayScores) Get(pathway string) float64 {
	return p[pathway]
}

// DrugCandidate is one entry in the active drug panel. The panel is
// process-wide read-only configuration; per-request filtering produces a new
// slice, never mutates the panel.
type DrugCandidate struct {
	Name           string             `json:"name" yaml:"name"`
	Mechanism      string             `json:"mechanism" yaml:"mechanism"`
	Targets        []string           `json:"targets,omitempty" yaml:"targets"`
	PathwayWeights map[string]float64 `json:"pathway_weights,omitempty" yaml:"pathway_weights"`
	Diseases       []string           `json:"diseases,omitempty" yaml:"diseases"`
}

// AppliesTo reports whether the drug is applicable to the given disease. A
// drug with no disease flags applies everywhere.
func (d *DrugCandidate) AppliesTo(disease string) bool {
	if disease == "" || len(d.Diseases) == 0 {
		return true
	}
	for _, dz := range d.Diseases {
		if dz == disease {
			return true
		}
	}
	return false
}

// TargetsGene reports whether the drug's mechanism directly targets the
// given gene's product. Used by the ranking tie-break.
func (d *DrugCandidate) TargetsGene(gene string) bool {
	for _, t := range d.Targets {
		if t == gene {
			return true
		}
	}
	return false
}

// EvidenceResult holds literature/clinical evidence for one
// (gene, variant, drug) triple. Failed marks a timeout or provider error; the
// zero strength and empty citations are the documented degraded defaults.
type EvidenceResult struct {
	Strength  float64  `json:"strength"`
	Citations []string `json:"citations"`
	Badges    []string `json:"badges,omitempty"`
	Failed    bool     `json:"failed,omitempty"`
}

// ClinicalPrior is the clinical-variant database's pathogenicity prior for
// one variant.
type ClinicalPrior struct {
	Prior          float64 `json:"prior"`
	Classification string  `json:"classification"`
	ReviewStatus   string  `json:"review_status"`
}

// IsStrongClassification reports whether the prior carries a pathogenic-level
// classification with a high-confidence review status, which contributes the
// strong clinical-database badge.
func (p *ClinicalPrior) IsStrongClassification() bool {
	if p == nil {
		return false
	}
	switch p.Classification {
	case "pathogenic", "likely_pathogenic":
	default:
		return false
	}
	switch p.ReviewStatus {
	case "expert_panel", "practice_guideline", "multiple_submitters":
		return true
	default:
		return false
	}
}

// InsightsBundle carries the four auxiliary per-variant scores. Each score is
// nil when the insights provider could not compute it.
type InsightsBundle struct {
	Functionality *float64 `json:"functionality"`
	Chromatin     *float64 `json:"chromatin"`
	Essentiality  *float64 `json:"essentiality"`
	Regulatory    *float64 `json:"regulatory"`
}

// SignalBreakdown records the individual contributions that produced a
// drug's confidence, for audit.
type SignalBreakdown struct {
	SeqPct           float64 `json:"seq_pct"`
	PathRaw          float64 `json:"path_raw"`
	PathPct          float64 `json:"path_pct"`
	EvidenceStrength float64 `json:"evidence_strength"`
	InsightLift      float64 `json:"insight_lift"`
	PriorBoost       float64 `json:"prior_boost"`
	GateAdjustment   float64 `json:"gate_adjustment"`
	Calibration      string  `json:"calibration"`
}

// DrugScoreResult is the final per-drug output. It is constructed once per
// drug per request and never mutated afterwards; the orchestrator only
// reorders the result list.
type DrugScoreResult struct {
	Drug          string          `json:"drug"`
	Mechanism     string          `json:"mechanism"`
	EfficacyScore float64         `json:"efficacy_score"`
	Confidence    float64         `json:"confidence"`
	EvidenceTier  EvidenceTier    `json:"evidence_tier"`
	Badges        []string        `json:"badges"`
	Rationale     SignalBreakdown `json:"rationale"`
	Insights      *InsightsBundle `json:"insights,omitempty"`
}

// RunProvenance is the single audit record attached to every response. The
// core never persists it; persistence is an external collaborator's job.
type RunProvenance struct {
	RunID         string            `json:"run_id"`
	Disease       string            `json:"disease,omitempty"`
	Profile       string            `json:"profile,omitempty"`
	TablesVersion string            `json:"tables_version"`
	Flags         map[string]string `json:"flags,omitempty"`
	Stages        map[string]string `json:"stages,omitempty"`
	GatesFired    []string          `json:"gates_fired,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
	SchemaVersion string            `json:"schema_version"`
	StartedAt     time.Time         `json:"started_at"`
}

// DiseaseContext carries the disease-specific contextual fields required for
// full-confidence scoring. A field that is present but empty is treated as
// absent by the disease-context gate.
type DiseaseContext struct {
	GermlineStatus string `json:"germline_status,omitempty"`
	TumorContext   string `json:"tumor_context,omitempty"`
}

// IsEmpty reports whether no contextual data was actually provided.
func (c *DiseaseContext) IsEmpty() bool {
	return c == nil || (c.GermlineStatus == "" && c.TumorContext == "")
}

// ScoreOptions are per-request feature flags, validated at the pipeline
// entry and passed explicitly through the call chain.
type ScoreOptions struct {
	FastMode     bool         `json:"fast_mode,omitempty"`
	AblationMode AblationMode `json:"ablation_mode,omitempty"`
	PanelLimit   int          `json:"panel_limit,omitempty"`
}

// Validate checks the option values.
func (o *ScoreOptions) Validate() error {
	if !o.AblationMode.IsValid() {
		return fmt.Errorf("options validation: %w", ErrInvalidAblation)
	}
	if o.PanelLimit < 0 {
		return fmt.Errorf("options validation: panel_limit must be non-negative")
	}
	return nil
}

// ScoreRequest is the core's exposed API request.
type ScoreRequest struct {
	Mutations []Variant       `json:"mutations"`
	Disease   string          `json:"disease,omitempty"`
	Profile   string          `json:"profile,omitempty"`
	Context   *DiseaseContext `json:"context,omitempty"`
	Options   ScoreOptions    `json:"options,omitempty"`
}

// ScoreResponse is the core's exposed API response. Drugs are sorted by
// confidence descending with a deterministic tie-break.
type ScoreResponse struct {
	Drugs         []DrugScoreResult `json:"drugs"`
	SchemaVersion string            `json:"schema_version"`
	Provenance    RunProvenance     `json:"provenance"`
}
