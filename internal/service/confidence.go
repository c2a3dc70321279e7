package service

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/onco-efficacy-engine/internal/calibration"
	"github.com/onco-efficacy-engine/internal/domain"
)

// Base confidence weights. Sequence disruption dominates, evidence second,
// pathway alignment third.
const (
	confidenceSequenceWeight = 0.5
	confidencePathwayWeight  = 0.2
	confidenceEvidenceWeight = 0.3
)

// Insight lift schedule. Lifts are applied in this fixed order and the total
// is capped; the order must never depend on map iteration.
const (
	liftFunctionality = 0.04
	liftChromatin     = 0.02
	liftEssentiality  = 0.02
	liftRegulatory    = 0.02

	functionalityThreshold = 0.6
	chromatinThreshold     = 0.5
	essentialityThreshold  = 0.7
	regulatoryThreshold    = 0.6

	// InsightLiftCap bounds the total additive insight lift regardless of how
	// many conditions fire.
	InsightLiftCap = 0.08
)

// ConfidenceInputs are the fused signals for one drug.
type ConfidenceInputs struct {
	Gene             string
	SeqPct           float64
	PathPct          float64
	EvidenceStrength float64
	Insights         *domain.InsightsBundle
	Prior            *domain.ClinicalPrior
	SkipCalibration  bool
}

// ConfidenceEngine computes the calibrated ranking confidence for one drug.
// The snapshot cache is optional; without it every gene uses the global
// fallback calibration.
type ConfidenceEngine struct {
	log       *logrus.Logger
	snapshots *calibration.Cache
}

// NewConfidenceEngine creates a confidence engine. snapshots may be nil.
func NewConfidenceEngine(snapshots *calibration.Cache, logger *logrus.Logger) *ConfidenceEngine {
	return &ConfidenceEngine{log: logger, snapshots: snapshots}
}

// Base computes the pre-gate confidence: the weighted base formula on the
// (possibly calibrated) sequence percentile plus the capped insight lift.
// It returns the value before rounding so gates compose on full precision,
// along with the rationale fields it filled in.
func (e *ConfidenceEngine) Base(ctx context.Context, in ConfidenceInputs) (float64, domain.SignalBreakdown) {
	breakdown := domain.SignalBreakdown{
		PathPct:          in.PathPct,
		EvidenceStrength: in.EvidenceStrength,
		Calibration:      domain.CalibrationFallbackGlobal,
	}

	seqPct := in.SeqPct
	if in.SkipCalibration {
		breakdown.Calibration = domain.CalibrationSkipped
	} else if e.snapshots != nil && in.Gene != "" {
		if snapshot, ok := e.snapshots.Lookup(ctx, in.Gene); ok {
			seqPct = Clamp01(snapshot.Apply(in.SeqPct))
			breakdown.Calibration = domain.CalibrationGeneSnapshot
		}
	}
	breakdown.SeqPct = seqPct

	base := Clamp01(confidenceSequenceWeight*seqPct +
		confidencePathwayWeight*in.PathPct +
		confidenceEvidenceWeight*in.EvidenceStrength)

	lift := InsightLift(in.Insights)
	breakdown.InsightLift = lift

	return base + lift, breakdown
}

// ApplyPrior adds the clinical pathogenicity prior after lift capping. The
// boost is additive and bounded by the prior's own value; the final clamp
// keeps confidence at most 1.0.
func ApplyPrior(confidence float64, prior *domain.ClinicalPrior) (float64, float64) {
	if prior == nil || prior.Prior <= 0 {
		return confidence, 0
	}
	boost := Clamp01(prior.Prior)
	return confidence + boost, boost
}

// InsightLift computes the total additive lift from the insights bundle.
// Conditions are evaluated in the fixed schedule order and accumulation
// stops once the cap is reached.
func InsightLift(ins *domain.InsightsBundle) float64 {
	if ins == nil {
		return 0
	}

	type liftRule struct {
		score     *float64
		threshold float64
		lift      float64
	}
	rules := []liftRule{
		{ins.Functionality, functionalityThreshold, liftFunctionality},
		{ins.Chromatin, chromatinThreshold, liftChromatin},
		{ins.Essentiality, essentialityThreshold, liftEssentiality},
		{ins.Regulatory, regulatoryThreshold, liftRegulatory},
	}

	var total float64
	for _, r := range rules {
		if r.score == nil || *r.score < r.threshold {
			continue
		}
		total += r.lift
		if total >= InsightLiftCap {
			return InsightLiftCap
		}
	}
	return total
}

// Sanitize maps NaN and infinities to 0 and clamps to [0,1]. It is the final
// guard before a value reaches a DrugScoreResult: no upstream arithmetic may
// leak an invalid number into the response.
func Sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return Clamp01(v)
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Round2 rounds to the 2-decimal display precision used for confidence.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
