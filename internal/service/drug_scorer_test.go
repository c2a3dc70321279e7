package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/onco-efficacy-engine/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func TestSignalsPathwayAlignment(t *testing.T) {
	scorer := NewDrugScorer(testLogger())
	tables := testTables()

	drug := &domain.DrugCandidate{
		Name: "olaparib",
		PathwayWeights: map[string]float64{
			"dna_damage_repair":        1.0,
			"homologous_recombination": 0.9,
		},
	}
	scores := domain.PathwayScores{
		"dna_damage_repair":        4.0,
		"homologous_recombination": 2.0,
	}
	primary := &domain.SequenceScore{Disruption: 4.0, Percentile: floatPtr(0.8)}

	sig := scorer.Signals(scores, drug, primary, tables)

	assert.InDelta(t, 5.8, sig.PathRaw, 1e-9)
	assert.InDelta(t, 5.8/12.0, sig.PathPct, 1e-9)
	assert.InDelta(t, 0.8, sig.SeqPct, 1e-9)
}

func TestSignalsDrugWithoutWeightsScoresZero(t *testing.T) {
	scorer := NewDrugScorer(testLogger())

	drug := &domain.DrugCandidate{Name: "carboplatin"}
	scores := domain.PathwayScores{"dna_damage_repair": 6.0}

	sig := scorer.Signals(scores, drug, nil, testTables())

	assert.Zero(t, sig.PathRaw)
	assert.Zero(t, sig.PathPct)
	assert.Zero(t, sig.SeqPct)
}

// A single strong driver variant against a fully aligned drug must land
// mid-range, not saturate. Saturation here means the normalization constant
// regressed and all ranking signal is gone.
func TestPathwayAlignmentDoesNotSaturate(t *testing.T) {
	scorer := NewDrugScorer(testLogger())
	tables := testTables()

	drug := &domain.DrugCandidate{
		Name:           "trametinib",
		PathwayWeights: map[string]float64{"mapk_signaling": 1.0},
	}
	// Observed raw disruption for a strong activating driver sits around 6.
	scores := domain.PathwayScores{"mapk_signaling": 6.0}

	sig := scorer.Signals(scores, drug, nil, tables)

	assert.Greater(t, sig.PathPct, 0.2)
	assert.Less(t, sig.PathPct, 0.8, "strong driver must not saturate path_pct")
}

func TestRankOrdersByConfidenceDescending(t *testing.T) {
	scorer := NewDrugScorer(testLogger())

	results := []domain.DrugScoreResult{
		{Drug: "a-drug", Confidence: 0.40},
		{Drug: "b-drug", Confidence: 0.90},
		{Drug: "c-drug", Confidence: 0.70},
	}

	scorer.Rank(results, func(string) bool { return false })

	assert.Equal(t, []string{"b-drug", "c-drug", "a-drug"}, []string{results[0].Drug, results[1].Drug, results[2].Drug})
}

func TestRankTieBreakPrefersDirectTargetThenName(t *testing.T) {
	scorer := NewDrugScorer(testLogger())

	results := []domain.DrugScoreResult{
		{Drug: "zeta", Confidence: 0.50},
		{Drug: "alpha", Confidence: 0.50},
		{Drug: "mid", Confidence: 0.50},
	}

	scorer.Rank(results, func(drug string) bool { return drug == "mid" })

	assert.Equal(t, "mid", results[0].Drug, "direct target wins the tie")
	assert.Equal(t, "alpha", results[1].Drug)
	assert.Equal(t, "zeta", results[2].Drug)
}

func TestRankIsDeterministic(t *testing.T) {
	scorer := NewDrugScorer(testLogger())

	build := func() []domain.DrugScoreResult {
		return []domain.DrugScoreResult{
			{Drug: "gamma", Confidence: 0.33},
			{Drug: "beta", Confidence: 0.33},
			{Drug: "alpha", Confidence: 0.66},
			{Drug: "delta", Confidence: 0.33},
		}
	}

	first := build()
	second := build()
	scorer.Rank(first, func(string) bool { return false })
	scorer.Rank(second, func(string) bool { return false })

	assert.Equal(t, first, second)
}

func TestEfficacyScoreBlend(t *testing.T) {
	got := EfficacyScore(1.0, 0.5, 0.0)
	assert.InDelta(t, 0.55, got, 1e-9)

	// NaN inputs sanitize to zero contribution rather than leaking.
	assert.GreaterOrEqual(t, EfficacyScore(0, 0, 0), 0.0)
}
