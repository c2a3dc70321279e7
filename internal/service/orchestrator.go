package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/onco-efficacy-engine/internal/domain"
	"github.com/onco-efficacy-engine/internal/registry"
)

// defaultFanoutTimeout bounds the join of all concurrent evidence and
// per-variant enrichment sub-calls for one request.
const defaultFanoutTimeout = 30 * time.Second

// Stage provenance markers.
const (
	stageCompleted       = "completed"
	stageDegraded        = "degraded"
	stageAblated         = "ablated"
	stageSkippedFastMode = "skipped_fast_mode"
)

// Collaborators are the external providers the orchestrator fans out to.
// Enhanced may be nil; Baseline is required.
type Collaborators struct {
	Baseline domain.SequenceScorer
	Enhanced domain.SequenceScorer
	Evidence domain.EvidenceProvider
	Clinical domain.ClinicalVariantLookup
	Insights domain.InsightsProvider
}

// Orchestrator coordinates one scoring run: validation, sequence scoring,
// pathway aggregation, concurrent signal gathering, per-drug fusion, gating
// and ranking. A single coordinating goroutine owns all per-request state;
// fanned-out sub-calls communicate results back over channels only.
type Orchestrator struct {
	registry      *registry.Registry
	collaborators Collaborators

	aggregator *PathwayAggregator
	scorer     *DrugScorer
	confidence *ConfidenceEngine
	tiers      *TierClassifier

	coverageGate *CoverageGate
	evidenceGate EvidenceGate
	contextGate  DiseaseContextGate

	fanoutTimeout time.Duration
	log           *logrus.Logger
}

// NewOrchestrator wires the pipeline together.
func NewOrchestrator(
	reg *registry.Registry,
	collaborators Collaborators,
	confidence *ConfidenceEngine,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:      reg,
		collaborators: collaborators,
		aggregator:    NewPathwayAggregator(logger),
		scorer:        NewDrugScorer(logger),
		confidence:    confidence,
		tiers:         NewTierClassifier(logger),
		coverageGate:  NewCoverageGate(),
		fanoutTimeout: defaultFanoutTimeout,
		log:           logger,
	}
}

// SetFanoutTimeout overrides the sub-call join timeout. Zero or negative
// values are ignored.
func (o *Orchestrator) SetFanoutTimeout(d time.Duration) {
	if d > 0 {
		o.fanoutTimeout = d
	}
}

// Score runs the full pipeline for one request. Upstream failures degrade to
// documented defaults and surface as provenance annotations; the only error
// returns are request validation failures. An empty applicable panel yields
// an explicit empty result, not an error.
func (o *Orchestrator) Score(ctx context.Context, req *domain.ScoreRequest) (*domain.ScoreResponse, error) {
	if err := req.Options.Validate(); err != nil {
		return nil, domain.NewValidationError("options", err.Error())
	}
	if len(req.Mutations) == 0 {
		return nil, domain.NewValidationError("mutations", domain.ErrNoVariants.Error())
	}

	tables := o.registry.Current()

	prov := domain.RunProvenance{
		RunID:         uuid.NewString(),
		Disease:       req.Disease,
		Profile:       req.Profile,
		TablesVersion: tables.Version,
		Flags: map[string]string{
			"fast_mode":     fmt.Sprintf("%t", req.Options.FastMode),
			"ablation_mode": string(req.Options.AblationMode),
		},
		Stages:        make(map[string]string),
		SchemaVersion: domain.SchemaVersion,
		StartedAt:     time.Now().UTC(),
	}

	panel := tables.PanelForDisease(req.Disease)
	if len(panel) == 0 {
		prov.Warnings = append(prov.Warnings, fmt.Sprintf("no applicable drugs in panel for disease %q", req.Disease))
		o.log.WithField("disease", req.Disease).Warn("Empty applicable drug panel")
		return &domain.ScoreResponse{
			Drugs:         []domain.DrugScoreResult{},
			SchemaVersion: domain.SchemaVersion,
			Provenance:    prov,
		}, nil
	}

	// Malformed variants are excluded with a warning; the request proceeds
	// with the remainder.
	valid := make([]domain.Variant, 0, len(req.Mutations))
	for i := range req.Mutations {
		v := req.Mutations[i]
		if err := v.Validate(); err != nil {
			prov.Warnings = append(prov.Warnings, fmt.Sprintf("variant %s excluded: %v", v.Key(), err))
			continue
		}
		valid = append(valid, v)
	}

	scored := o.scoreSequences(ctx, valid, req.Options, &prov)

	pathScores := domain.PathwayScores{}
	if req.Options.AblationMode == domain.AblationNoPathway {
		prov.Stages["pathway"] = stageAblated
	} else {
		pathScores = o.aggregator.Aggregate(scored, tables)
		prov.Stages["pathway"] = stageCompleted
	}

	primary := primaryVariant(scored)

	evidence := o.gatherEvidence(ctx, panel, primary, req.Options, &prov)
	o.enrichVariants(ctx, scored, req.Options, &prov)

	prior := strongestPrior(scored)
	var insights *domain.InsightsBundle
	if primary != nil {
		insights = primary.Insights
	}

	effectiveContext := o.resolveContext(req, tables)
	thresholds := tables.ThresholdsForDisease(req.Disease)

	var (
		primaryScore *domain.SequenceScore
		primaryGene  string
	)
	if primary != nil {
		primaryScore = primary.Score
		primaryGene = primary.Variant.Gene
	}

	diseaseGateFired := false
	results := make([]domain.DrugScoreResult, 0, len(panel))
	for i := range panel {
		drug := &panel[i]
		signals := o.scorer.Signals(pathScores, drug, primaryScore, tables)

		ev := evidence[i]
		var strength float64
		if ev != nil && !ev.Failed {
			strength = ev.Strength
		}

		tier, badges := o.tiers.Classify(TierInputs{
			Evidence: ev,
			Prior:    prior,
			PathPct:  signals.PathPct,
		}, thresholds)

		conf, breakdown := o.confidence.Base(ctx, ConfidenceInputs{
			Gene:             primaryGene,
			SeqPct:           signals.SeqPct,
			PathPct:          signals.PathPct,
			EvidenceStrength: strength,
			Insights:         insights,
			SkipCalibration:  req.Options.FastMode,
		})
		breakdown.PathRaw = signals.PathRaw

		conf, breakdown.GateAdjustment = o.evidenceGate.Apply(conf, tier)
		conf, breakdown.PriorBoost = ApplyPrior(conf, prior)

		var fired bool
		conf, fired = o.contextGate.Apply(conf, effectiveContext)
		diseaseGateFired = diseaseGateFired || fired

		conf = Round2(Sanitize(conf))

		results = append(results, domain.DrugScoreResult{
			Drug:          drug.Name,
			Mechanism:     drug.Mechanism,
			EfficacyScore: EfficacyScore(breakdown.SeqPct, breakdown.PathPct, breakdown.EvidenceStrength),
			Confidence:    conf,
			EvidenceTier:  tier,
			Badges:        badges,
			Rationale:     breakdown,
			Insights:      insights,
		})
	}

	prov.GatesFired = append(prov.GatesFired, GateEvidence)
	if diseaseGateFired {
		prov.GatesFired = append(prov.GatesFired, GateDiseaseContext)
	}

	o.scorer.Rank(results, o.directTargetFunc(panel, scored))

	if limit := req.Options.PanelLimit; limit > 0 && limit < len(results) {
		results = results[:limit]
	}

	o.log.WithFields(logrus.Fields{
		"run_id":   prov.RunID,
		"disease":  req.Disease,
		"variants": len(valid),
		"drugs":    len(results),
	}).Info("Scoring run completed")

	return &domain.ScoreResponse{
		Drugs:         results,
		SchemaVersion: domain.SchemaVersion,
		Provenance:    prov,
	}, nil
}

// scoreSequences runs the sequence scorer across variants in parallel. The
// enhanced scorer is used only when the coverage gate allows it; enhanced
// failures fall back to the baseline, baseline failures degrade the single
// variant with a warning.
func (o *Orchestrator) scoreSequences(ctx context.Context, variants []domain.Variant, opts domain.ScoreOptions, prov *domain.RunProvenance) []domain.ScoredVariant {
	scored := make([]domain.ScoredVariant, len(variants))
	for i := range variants {
		scored[i].Variant = variants[i]
	}

	if opts.AblationMode == domain.AblationNoSequence {
		for i := range scored {
			scored[i].Score = &domain.SequenceScore{Mode: "ablated"}
		}
		prov.Stages["sequence"] = stageAblated
		return scored
	}

	type seqResult struct {
		idx         int
		score       *domain.SequenceScore
		coverageHit bool
		err         error
	}

	fanCtx, cancel := context.WithTimeout(ctx, o.fanoutTimeout)
	defer cancel()

	ch := make(chan seqResult, len(variants))
	for i := range variants {
		go func(idx int, v domain.Variant) {
			res := seqResult{idx: idx}
			if o.collaborators.Enhanced != nil {
				if o.coverageGate.Allows(&v) {
					if score, err := o.collaborators.Enhanced.ScoreVariant(fanCtx, &v); err == nil {
						res.score = score
						ch <- res
						return
					}
				} else {
					res.coverageHit = true
				}
			}
			res.score, res.err = o.collaborators.Baseline.ScoreVariant(fanCtx, &v)
			ch <- res
		}(i, variants[i])
	}

	degraded := false
	coverageFired := false
	remaining := len(variants)
collect:
	for remaining > 0 {
		select {
		case res := <-ch:
			remaining--
			coverageFired = coverageFired || res.coverageHit
			if res.err != nil {
				degraded = true
				prov.Warnings = append(prov.Warnings, fmt.Sprintf("sequence scoring failed for %s: %v", scored[res.idx].Variant.Key(), res.err))
				continue
			}
			scored[res.idx].Score = res.score
		case <-fanCtx.Done():
			degraded = true
			prov.Warnings = append(prov.Warnings, fmt.Sprintf("sequence scoring timed out for %d variant(s)", remaining))
			break collect
		}
	}

	if coverageFired {
		prov.GatesFired = append(prov.GatesFired, GateCoverage)
	}
	if degraded {
		prov.Stages["sequence"] = stageDegraded
	} else {
		prov.Stages["sequence"] = stageCompleted
	}
	return scored
}

// gatherEvidence fans out one evidence call per drug and joins them under the
// request's fan-out timeout. A timed-out or failed call degrades that drug to
// the documented default: zero strength, empty citations, tier floored at
// insufficient.
func (o *Orchestrator) gatherEvidence(ctx context.Context, panel []domain.DrugCandidate, primary *domain.ScoredVariant, opts domain.ScoreOptions, prov *domain.RunProvenance) []*domain.EvidenceResult {
	results := make([]*domain.EvidenceResult, len(panel))

	if opts.FastMode {
		prov.Stages["evidence"] = stageSkippedFastMode
		return results
	}
	if opts.AblationMode == domain.AblationNoEvidence {
		prov.Stages["evidence"] = stageAblated
		return results
	}
	if primary == nil {
		prov.Stages["evidence"] = stageDegraded
		prov.Warnings = append(prov.Warnings, "evidence gathering skipped: no scorable variant")
		return results
	}

	gene := primary.Variant.Gene
	proteinChange := primary.Variant.ProteinChange

	type evResult struct {
		idx      int
		evidence *domain.EvidenceResult
		err      error
	}

	fanCtx, cancel := context.WithTimeout(ctx, o.fanoutTimeout)
	defer cancel()

	ch := make(chan evResult, len(panel))
	for i := range panel {
		go func(idx int, drug domain.DrugCandidate) {
			ev, err := o.collaborators.Evidence.GatherEvidence(fanCtx, gene, proteinChange, drug.Name, drug.Mechanism)
			ch <- evResult{idx: idx, evidence: ev, err: err}
		}(i, panel[i])
	}

	degraded := false
	remaining := len(panel)
collect:
	for remaining > 0 {
		select {
		case res := <-ch:
			remaining--
			if res.err != nil || res.evidence == nil {
				degraded = true
				results[res.idx] = &domain.EvidenceResult{Citations: []string{}, Failed: true}
				prov.Warnings = append(prov.Warnings, fmt.Sprintf("evidence unavailable for %s: degraded to defaults", panel[res.idx].Name))
				continue
			}
			results[res.idx] = res.evidence
		case <-fanCtx.Done():
			degraded = true
			prov.Warnings = append(prov.Warnings, fmt.Sprintf("evidence gathering timed out for %d drug(s)", remaining))
			break collect
		}
	}

	// Drugs whose calls never returned get the same degraded default.
	for i := range results {
		if results[i] == nil {
			results[i] = &domain.EvidenceResult{Citations: []string{}, Failed: true}
		}
	}

	if degraded {
		prov.Stages["evidence"] = stageDegraded
	} else {
		prov.Stages["evidence"] = stageCompleted
	}
	return results
}

// enrichVariants fans out the clinical-prior lookup and insights call per
// variant. Failures leave the corresponding fields nil and degrade the
// matching stage with a warning; the confidence pipeline treats nil as
// "signal absent".
func (o *Orchestrator) enrichVariants(ctx context.Context, scored []domain.ScoredVariant, opts domain.ScoreOptions, prov *domain.RunProvenance) {
	if len(scored) == 0 {
		return
	}

	includeInsights := !opts.FastMode
	if !includeInsights {
		prov.Stages["insights"] = stageSkippedFastMode
	}

	type enrichResult struct {
		idx             int
		prior           *domain.ClinicalPrior
		insights        *domain.InsightsBundle
		priorWarning    string
		insightsWarning string
	}

	fanCtx, cancel := context.WithTimeout(ctx, o.fanoutTimeout)
	defer cancel()

	ch := make(chan enrichResult, len(scored))
	for i := range scored {
		go func(idx int, v domain.Variant) {
			res := enrichResult{idx: idx}
			prior, err := o.collaborators.Clinical.LookupPrior(fanCtx, &v)
			if err != nil {
				res.priorWarning = fmt.Sprintf("clinical prior unavailable for %s: %v", v.Key(), err)
			} else {
				res.prior = prior
			}
			if includeInsights {
				ins, err := o.collaborators.Insights.VariantInsights(fanCtx, &v)
				if err != nil {
					res.insightsWarning = fmt.Sprintf("insights unavailable for %s: %v", v.Key(), err)
				} else {
					res.insights = ins
				}
			}
			ch <- res
		}(i, scored[i].Variant)
	}

	priorDegraded := false
	insightsDegraded := false
	remaining := len(scored)
collect:
	for remaining > 0 {
		select {
		case res := <-ch:
			remaining--
			scored[res.idx].Prior = res.prior
			scored[res.idx].Insights = res.insights
			if res.priorWarning != "" {
				prov.Warnings = append(prov.Warnings, res.priorWarning)
				priorDegraded = true
			}
			if res.insightsWarning != "" {
				prov.Warnings = append(prov.Warnings, res.insightsWarning)
				insightsDegraded = true
			}
		case <-fanCtx.Done():
			prov.Warnings = append(prov.Warnings, fmt.Sprintf("variant enrichment timed out for %d variant(s)", remaining))
			priorDegraded = true
			insightsDegraded = includeInsights
			break collect
		}
	}

	if priorDegraded {
		prov.Stages["clinical_prior"] = stageDegraded
	} else {
		prov.Stages["clinical_prior"] = stageCompleted
	}
	if includeInsights {
		if insightsDegraded {
			prov.Stages["insights"] = stageDegraded
		} else {
			prov.Stages["insights"] = stageCompleted
		}
	}
}

// resolveContext picks the effective disease context: an explicit request
// context always wins, even when empty, so that present-but-empty triggers
// the conservative cap. Absent context falls back to the profile default.
func (o *Orchestrator) resolveContext(req *domain.ScoreRequest, tables *registry.ScoringTables) *domain.DiseaseContext {
	if req.Context != nil {
		return req.Context
	}
	return tables.ContextDefaultForProfile(req.Profile)
}

// directTargetFunc builds the tie-break predicate: does the named drug's
// mechanism directly target any mutated gene's product.
func (o *Orchestrator) directTargetFunc(panel []domain.DrugCandidate, scored []domain.ScoredVariant) func(drug string) bool {
	genes := make(map[string]bool, len(scored))
	for i := range scored {
		genes[scored[i].Variant.Gene] = true
	}
	byName := make(map[string]*domain.DrugCandidate, len(panel))
	for i := range panel {
		byName[panel[i].Name] = &panel[i]
	}
	return func(drug string) bool {
		d, ok := byName[drug]
		if !ok {
			return false
		}
		for gene := range genes {
			if d.TargetsGene(gene) {
				return true
			}
		}
		return false
	}
}

// primaryVariant selects the variant whose disruption drives the sequence
// signal: the highest disruption value, with request order breaking ties.
func primaryVariant(scored []domain.ScoredVariant) *domain.ScoredVariant {
	var best *domain.ScoredVariant
	for i := range scored {
		if scored[i].Score == nil {
			continue
		}
		if best == nil || scored[i].Score.Disruption > best.Score.Disruption {
			best = &scored[i]
		}
	}
	return best
}

// strongestPrior selects the highest pathogenicity prior across variants,
// with request order breaking ties.
func strongestPrior(scored []domain.ScoredVariant) *domain.ClinicalPrior {
	var best *domain.ClinicalPrior
	for i := range scored {
		p := scored[i].Prior
		if p == nil {
			continue
		}
		if best == nil || p.Prior > best.Prior {
			best = p
		}
	}
	return best
}
