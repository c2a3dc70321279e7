package service

import (
	"github.com/sirupsen/logrus"

	"github.com/onco-efficacy-engine/internal/domain"
	"github.com/onco-efficacy-engine/internal/registry"
)

// TierClassifier assigns the evidence tier and badge set for one drug. Tiers
// are terminal and mutually exclusive; every request computes them fresh.
type TierClassifier struct {
	log *logrus.Logger
}

// NewTierClassifier creates a tier classifier.
func NewTierClassifier(logger *logrus.Logger) *TierClassifier {
	return &TierClassifier{log: logger}
}

// TierInputs are the signals the classifier reads for one drug.
type TierInputs struct {
	Evidence *domain.EvidenceResult
	Prior    *domain.ClinicalPrior
	PathPct  float64
}

// Classify assigns the tier in priority order and assembles the badge set in
// canonical order. A failed evidence fetch floors the tier at insufficient
// but the badge set still reflects prior and pathway signals.
func (c *TierClassifier) Classify(in TierInputs, thresholds registry.TierThresholds) (domain.EvidenceTier, []string) {
	badges := c.assembleBadges(in, thresholds)

	if in.Evidence != nil && in.Evidence.Failed {
		return domain.TierInsufficient, badges
	}

	var strength float64
	if in.Evidence != nil {
		strength = in.Evidence.Strength
	}

	aligned := in.PathPct >= thresholds.Alignment

	if strength >= thresholds.Strong {
		return domain.TierSupported, badges
	}
	if hasBadge(badges, domain.BadgeStrongClinicalDB) && aligned {
		return domain.TierSupported, badges
	}
	if strength >= thresholds.Moderate {
		return domain.TierConsider, badges
	}
	if hasStrongSource(badges) && aligned {
		return domain.TierConsider, badges
	}
	return domain.TierInsufficient, badges
}

// assembleBadges builds the badge set in the canonical order: trial and
// guideline badges from the evidence provider, the clinical-database badge
// from the pathogenicity prior, the alignment badge from pathway signal.
func (c *TierClassifier) assembleBadges(in TierInputs, thresholds registry.TierThresholds) []string {
	badges := make([]string, 0, 4)

	if in.Evidence != nil && !in.Evidence.Failed {
		if containsString(in.Evidence.Badges, domain.BadgeRandomizedTrial) {
			badges = append(badges, domain.BadgeRandomizedTrial)
		}
		if containsString(in.Evidence.Badges, domain.BadgeGuidelineListed) {
			badges = append(badges, domain.BadgeGuidelineListed)
		}
	}
	if in.Prior.IsStrongClassification() {
		badges = append(badges, domain.BadgeStrongClinicalDB)
	}
	if in.PathPct >= thresholds.Alignment {
		badges = append(badges, domain.BadgePathwayAligned)
	}

	return badges
}

// hasStrongSource reports whether the badge set carries at least one strong
// evidence source (a randomized trial or a guideline listing).
func hasStrongSource(badges []string) bool {
	return hasBadge(badges, domain.BadgeRandomizedTrial) || hasBadge(badges, domain.BadgeGuidelineListed)
}

func hasBadge(badges []string, badge string) bool {
	return containsString(badges, badge)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
