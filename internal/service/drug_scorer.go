package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/onco-efficacy-engine/internal/domain"
	"github.com/onco-efficacy-engine/internal/registry"
)

// Display blend weights for efficacy_score. The blend is for display only;
// ranking always uses confidence.
const (
	efficacySequenceWeight = 0.4
	efficacyPathwayWeight  = 0.3
	efficacyEvidenceWeight = 0.3
)

// DrugSignals are the per-drug inputs to the confidence formula.
type DrugSignals struct {
	PathRaw float64
	PathPct float64
	SeqPct  float64
}

// DrugScorer computes the pathway-alignment signal for one drug and owns the
// ranking tie-break.
type DrugScorer struct {
	log *logrus.Logger
}

// NewDrugScorer creates a drug scorer.
func NewDrugScorer(logger *logrus.Logger) *DrugScorer {
	return &DrugScorer{log: logger}
}

// Signals computes the raw pathway-alignment value, its normalized
// percentile, and the sequence percentile for one drug.
//
// The raw alignment is Σ pathway_score[p] × drug_weight[p] over the drug's
// weighted pathways. A drug with no pathway-weight entries scores 0 — not an
// error; it can still rank through sequence and evidence signals.
//
// Normalization divides by the empirically calibrated maximum from the
// scoring tables, then clamps to [0,1]. The divisor is deliberately NOT the
// scorer's theoretical ceiling: observed raw values cluster far below it, and
// a divisor two orders of magnitude too small saturates every drug to 1.0
// and collapses the ranking signal entirely.
func (s *DrugScorer) Signals(scores domain.PathwayScores, drug *domain.DrugCandidate, primary *domain.SequenceScore, tables *registry.ScoringTables) DrugSignals {
	var raw float64
	for pathway, weight := range drug.PathwayWeights {
		raw += scores.Get(pathway) * weight
	}

	sig := DrugSignals{
		PathRaw: raw,
		PathPct: Clamp01(raw / tables.PathwayEmpiricalMax),
		SeqPct:  primary.PercentileOrZero(),
	}

	s.log.WithFields(logrus.Fields{
		"drug":     drug.Name,
		"path_raw": sig.PathRaw,
		"path_pct": sig.PathPct,
		"seq_pct":  sig.SeqPct,
	}).Debug("Computed drug signals")

	return sig
}

// EfficacyScore blends the three normalized signals into the display score.
func EfficacyScore(seqPct, pathPct, evidenceStrength float64) float64 {
	return Round2(Sanitize(efficacySequenceWeight*seqPct +
		efficacyPathwayWeight*pathPct +
		efficacyEvidenceWeight*evidenceStrength))
}

// Rank sorts results by confidence descending with a deterministic
// tie-break: at equal rounded confidence, drugs whose mechanism directly
// targets a mutated gene's product rank first, then lexicographic order on
// drug name guarantees a total order.
func (s *DrugScorer) Rank(results []domain.DrugScoreResult, directTarget func(drug string) bool) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		at, bt := directTarget(a.Drug), directTarget(b.Drug)
		if at != bt {
			return at
		}
		return a.Drug < b.Drug
	})
}
