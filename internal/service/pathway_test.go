package service

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/onco-efficacy-engine/internal/domain"
	"github.com/onco-efficacy-engine/internal/registry"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testTables() *registry.ScoringTables {
	return &registry.ScoringTables{
		GenePathways: map[string]map[string]float64{
			"BRCA1": {"dna_damage_repair": 1.0, "homologous_recombination": 0.9},
			"KRAS":  {"mapk_signaling": 1.0},
		},
		PathwayEmpiricalMax: 12.0,
	}
}

func scoredVariant(gene string, disruption float64) domain.ScoredVariant {
	return domain.ScoredVariant{
		Variant: domain.Variant{
			Gene:       gene,
			Chromosome: "17",
			Position:   43045000,
			Reference:  "A",
			Alternate:  "T",
		},
		Score: &domain.SequenceScore{Disruption: disruption},
	}
}

func TestAggregateUsesMeanNotSum(t *testing.T) {
	aggregator := NewPathwayAggregator(testLogger())

	// Two variants on the same pathway must average, not stack.
	variants := []domain.ScoredVariant{
		scoredVariant("BRCA1", 4.0),
		scoredVariant("BRCA1", 8.0),
	}

	scores := aggregator.Aggregate(variants, testTables())

	assert.InDelta(t, 6.0, scores.Get("dna_damage_repair"), 1e-9)
	assert.InDelta(t, 5.4, scores.Get("homologous_recombination"), 1e-9)
}

func TestAggregateSkipsUnmappedGenes(t *testing.T) {
	aggregator := NewPathwayAggregator(testLogger())

	variants := []domain.ScoredVariant{
		scoredVariant("BRCA1", 5.0),
		scoredVariant("UNKNOWN_GENE", 9.0),
	}

	scores := aggregator.Aggregate(variants, testTables())

	assert.InDelta(t, 5.0, scores.Get("dna_damage_repair"), 1e-9)
	assert.Len(t, scores, 2)
}

func TestAggregateSkipsVariantsWithoutScore(t *testing.T) {
	aggregator := NewPathwayAggregator(testLogger())

	unscored := scoredVariant("BRCA1", 0)
	unscored.Score = nil

	scores := aggregator.Aggregate([]domain.ScoredVariant{unscored, scoredVariant("KRAS", 3.0)}, testTables())

	assert.InDelta(t, 3.0, scores.Get("mapk_signaling"), 1e-9)
	assert.Zero(t, scores.Get("dna_damage_repair"))
}

func TestAggregateZeroVariantsReturnsEmptyMap(t *testing.T) {
	aggregator := NewPathwayAggregator(testLogger())

	scores := aggregator.Aggregate(nil, testTables())

	assert.Empty(t, scores)
	// Missing keys read as zero, never panic.
	assert.Zero(t, scores.Get("dna_damage_repair"))
}

func TestAggregateScoresAreNonNegative(t *testing.T) {
	aggregator := NewPathwayAggregator(testLogger())

	scores := aggregator.Aggregate([]domain.ScoredVariant{
		scoredVariant("BRCA1", 2.5),
		scoredVariant("KRAS", 0),
	}, testTables())

	for pathway, score := range scores {
		assert.GreaterOrEqual(t, score, 0.0, "pathway %s", pathway)
	}
}
