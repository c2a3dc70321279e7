// Package service implements the efficacy scoring pipeline: pathway
// aggregation, per-drug signal fusion, confidence computation, evidence tier
// classification, gating and run orchestration.
package service

import (
	"github.com/sirupsen/logrus"

	"github.com/onco-efficacy-engine/internal/domain"
	"github.com/onco-efficacy-engine/internal/registry"
)

// PathwayAggregator rolls per-variant sequence disruption into per-pathway
// scores using the gene→pathway weight table.
type PathwayAggregator struct {
	log *logrus.Logger
}

// NewPathwayAggregator creates a pathway aggregator.
func NewPathwayAggregator(logger *logrus.Logger) *PathwayAggregator {
	return &PathwayAggregator{log: logger}
}

// Aggregate computes the per-pathway score map for one request. Each pathway
// score is the arithmetic mean of disruption×weight across the variants that
// contribute to it — a mean, not a sum, so multiple variants hitting the same
// pathway do not inflate the score proportionally to variant count.
//
// Genes absent from the weight table contribute to no pathway and are skipped
// silently. Zero variants produce an empty map; consumers read missing keys
// as 0.0.
func (a *PathwayAggregator) Aggregate(variants []domain.ScoredVariant, tables *registry.ScoringTables) domain.PathwayScores {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, sv := range variants {
		if sv.Score == nil {
			continue
		}
		weights := tables.PathwaysForGene(sv.Variant.Gene)
		if weights == nil {
			a.log.WithField("gene", sv.Variant.Gene).Debug("Gene has no pathway mapping, skipping")
			continue
		}
		for pathway, weight := range weights {
			sums[pathway] += sv.Score.Disruption * weight
			counts[pathway]++
		}
	}

	scores := make(domain.PathwayScores, len(sums))
	for pathway, sum := range sums {
		scores[pathway] = sum / float64(counts[pathway])
	}

	a.log.WithFields(logrus.Fields{
		"variants": len(variants),
		"pathways": len(scores),
	}).Debug("Aggregated pathway scores")

	return scores
}
