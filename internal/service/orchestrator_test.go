package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-efficacy-engine/internal/domain"
	"github.com/onco-efficacy-engine/internal/registry"
)

type stubScorer struct {
	fn func(v *domain.Variant) (*domain.SequenceScore, error)
}

func (s *stubScorer) ScoreVariant(_ context.Context, v *domain.Variant) (*domain.SequenceScore, error) {
	return s.fn(v)
}

type stubEvidence struct {
	fn func(ctx context.Context, gene, proteinChange, drug, mechanism string) (*domain.EvidenceResult, error)
}

func (s *stubEvidence) GatherEvidence(ctx context.Context, gene, proteinChange, drug, mechanism string) (*domain.EvidenceResult, error) {
	return s.fn(ctx, gene, proteinChange, drug, mechanism)
}

type stubClinical struct {
	fn func(v *domain.Variant) (*domain.ClinicalPrior, error)
}

func (s *stubClinical) LookupPrior(_ context.Context, v *domain.Variant) (*domain.ClinicalPrior, error) {
	return s.fn(v)
}

type stubInsights struct {
	fn func(v *domain.Variant) (*domain.InsightsBundle, error)
}

func (s *stubInsights) VariantInsights(_ context.Context, v *domain.Variant) (*domain.InsightsBundle, error) {
	return s.fn(v)
}

func orchestratorTables() *registry.ScoringTables {
	return &registry.ScoringTables{
		GenePathways: map[string]map[string]float64{
			"G1": {"P1": 1.0},
		},
		Panel: []domain.DrugCandidate{
			{Name: "d1-inhibitor", Mechanism: "targeted inhibitor", Targets: []string{"G1"}, PathwayWeights: map[string]float64{"P1": 1.0}},
			{Name: "d2-chemo", Mechanism: "chemotherapy"},
		},
		Default:             registry.TierThresholds{Strong: 0.70, Moderate: 0.40, Alignment: 0.25},
		PathwayEmpiricalMax: 12.0,
		ContextDefaults: map[string]domain.DiseaseContext{
			"germline_panel": {GermlineStatus: "confirmed_germline"},
		},
	}
}

func happyCollaborators() Collaborators {
	return Collaborators{
		Baseline: &stubScorer{fn: func(v *domain.Variant) (*domain.SequenceScore, error) {
			return &domain.SequenceScore{Disruption: 6.0, Percentile: floatPtr(0.7), Mode: "baseline"}, nil
		}},
		Evidence: &stubEvidence{fn: func(_ context.Context, _, _, _, _ string) (*domain.EvidenceResult, error) {
			return &domain.EvidenceResult{Strength: 0.5, Citations: []string{"PMID:1"}}, nil
		}},
		Clinical: &stubClinical{fn: func(v *domain.Variant) (*domain.ClinicalPrior, error) {
			return &domain.ClinicalPrior{}, nil
		}},
		Insights: &stubInsights{fn: func(v *domain.Variant) (*domain.InsightsBundle, error) {
			return &domain.InsightsBundle{}, nil
		}},
	}
}

func newTestOrchestrator(collaborators Collaborators) *Orchestrator {
	reg := registry.New(orchestratorTables(), testLogger())
	return NewOrchestrator(reg, collaborators, NewConfidenceEngine(nil, testLogger()), testLogger())
}

func validRequest() *domain.ScoreRequest {
	return &domain.ScoreRequest{
		Mutations: []domain.Variant{{
			Gene:        "G1",
			Chromosome:  "7",
			Position:    55191822,
			Reference:   "T",
			Alternate:   "G",
			Build:       domain.BuildGRCh38,
			Consequence: domain.ConsequenceMissense,
		}},
		Context: &domain.DiseaseContext{GermlineStatus: "somatic_confirmed"},
	}
}

func TestScoreRanksAlignedDrugFirst(t *testing.T) {
	orchestrator := newTestOrchestrator(happyCollaborators())

	resp, err := orchestrator.Score(context.Background(), validRequest())
	require.NoError(t, err)
	require.Len(t, resp.Drugs, 2)

	d1 := resp.Drugs[0]
	d2 := resp.Drugs[1]
	assert.Equal(t, "d1-inhibitor", d1.Drug)
	assert.Equal(t, "d2-chemo", d2.Drug)
	assert.Greater(t, d1.Rationale.PathPct, 0.0)
	assert.Zero(t, d2.Rationale.PathPct)
	assert.Greater(t, d1.Confidence, d2.Confidence)

	assert.Equal(t, domain.SchemaVersion, resp.SchemaVersion)
	assert.NotEmpty(t, resp.Provenance.RunID)
	assert.NotEmpty(t, resp.Provenance.TablesVersion)
	assert.Equal(t, stageCompleted, resp.Provenance.Stages["evidence"])
}

func TestScoreIsDeterministic(t *testing.T) {
	orchestrator := newTestOrchestrator(happyCollaborators())

	first, err := orchestrator.Score(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := orchestrator.Score(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, first.Drugs, second.Drugs)
}

func TestScoreDegradesWhenEvidenceFails(t *testing.T) {
	collaborators := happyCollaborators()
	collaborators.Evidence = &stubEvidence{fn: func(_ context.Context, _, _, _, _ string) (*domain.EvidenceResult, error) {
		return nil, errors.New("provider down")
	}}
	orchestrator := newTestOrchestrator(collaborators)

	resp, err := orchestrator.Score(context.Background(), validRequest())
	require.NoError(t, err, "evidence failure must never fail the request")
	require.Len(t, resp.Drugs, 2)

	for _, drug := range resp.Drugs {
		assert.Equal(t, domain.TierInsufficient, drug.EvidenceTier)
		assert.Zero(t, drug.Rationale.EvidenceStrength)
	}
	assert.Equal(t, stageDegraded, resp.Provenance.Stages["evidence"])
	assert.NotEmpty(t, resp.Provenance.Warnings)
}

func TestScoreDegradesWhenEvidenceTimesOut(t *testing.T) {
	collaborators := happyCollaborators()
	collaborators.Evidence = &stubEvidence{fn: func(ctx context.Context, _, _, _, _ string) (*domain.EvidenceResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	orchestrator := newTestOrchestrator(collaborators)
	orchestrator.SetFanoutTimeout(50 * time.Millisecond)

	resp, err := orchestrator.Score(context.Background(), validRequest())
	require.NoError(t, err)
	require.Len(t, resp.Drugs, 2)

	for _, drug := range resp.Drugs {
		assert.Equal(t, domain.TierInsufficient, drug.EvidenceTier)
	}
	assert.Equal(t, stageDegraded, resp.Provenance.Stages["evidence"])
}

func TestScoreDegradesWhenInsightsFail(t *testing.T) {
	collaborators := happyCollaborators()
	collaborators.Insights = &stubInsights{fn: func(v *domain.Variant) (*domain.InsightsBundle, error) {
		return nil, errors.New("provider down")
	}}
	orchestrator := newTestOrchestrator(collaborators)

	resp, err := orchestrator.Score(context.Background(), validRequest())
	require.NoError(t, err, "insights failure must never fail the request")
	require.Len(t, resp.Drugs, 2)

	assert.Equal(t, stageDegraded, resp.Provenance.Stages["insights"])
	assert.Equal(t, stageCompleted, resp.Provenance.Stages["clinical_prior"])
	require.NotEmpty(t, resp.Provenance.Warnings)
	assert.Contains(t, resp.Provenance.Warnings[0], "insights unavailable")
	for _, drug := range resp.Drugs {
		assert.Nil(t, drug.Insights)
	}
}

func TestScoreExcludesMalformedVariantWithWarning(t *testing.T) {
	orchestrator := newTestOrchestrator(happyCollaborators())

	req := validRequest()
	req.Mutations = append(req.Mutations, domain.Variant{Gene: "G1"})

	resp, err := orchestrator.Score(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Drugs, 2)
	require.NotEmpty(t, resp.Provenance.Warnings)
	assert.Contains(t, resp.Provenance.Warnings[0], "excluded")
}

func TestScoreEmptyMutationsIsValidationError(t *testing.T) {
	orchestrator := newTestOrchestrator(happyCollaborators())

	_, err := orchestrator.Score(context.Background(), &domain.ScoreRequest{})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mutations", verr.Field)
}

func TestScoreInvalidAblationModeIsValidationError(t *testing.T) {
	orchestrator := newTestOrchestrator(happyCollaborators())

	req := validRequest()
	req.Options.AblationMode = "no_everything"

	_, err := orchestrator.Score(context.Background(), req)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestScoreEmptyPanelReturnsExplicitEmptyResult(t *testing.T) {
	tables := orchestratorTables()
	for i := range tables.Panel {
		tables.Panel[i].Diseases = []string{"breast_cancer"}
	}
	reg := registry.New(tables, testLogger())
	orchestrator := NewOrchestrator(reg, happyCollaborators(), NewConfidenceEngine(nil, testLogger()), testLogger())

	req := validRequest()
	req.Disease = "melanoma"

	resp, err := orchestrator.Score(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, resp.Drugs)
	assert.NotEmpty(t, resp.Provenance.Warnings)
}

func TestScoreFastModeSkipsStages(t *testing.T) {
	orchestrator := newTestOrchestrator(happyCollaborators())

	req := validRequest()
	req.Options.FastMode = true

	resp, err := orchestrator.Score(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, stageSkippedFastMode, resp.Provenance.Stages["evidence"])
	assert.Equal(t, stageSkippedFastMode, resp.Provenance.Stages["insights"])
	for _, drug := range resp.Drugs {
		assert.Equal(t, domain.CalibrationSkipped, drug.Rationale.Calibration)
		assert.Zero(t, drug.Rationale.EvidenceStrength)
	}
}

func TestScoreAblationModes(t *testing.T) {
	t.Run("no_sequence", func(t *testing.T) {
		orchestrator := newTestOrchestrator(happyCollaborators())
		req := validRequest()
		req.Options.AblationMode = domain.AblationNoSequence

		resp, err := orchestrator.Score(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, stageAblated, resp.Provenance.Stages["sequence"])
		for _, drug := range resp.Drugs {
			assert.Zero(t, drug.Rationale.SeqPct)
		}
	})

	t.Run("no_pathway", func(t *testing.T) {
		orchestrator := newTestOrchestrator(happyCollaborators())
		req := validRequest()
		req.Options.AblationMode = domain.AblationNoPathway

		resp, err := orchestrator.Score(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, stageAblated, resp.Provenance.Stages["pathway"])
		for _, drug := range resp.Drugs {
			assert.Zero(t, drug.Rationale.PathPct)
		}
	})

	t.Run("no_evidence", func(t *testing.T) {
		orchestrator := newTestOrchestrator(happyCollaborators())
		req := validRequest()
		req.Options.AblationMode = domain.AblationNoEvidence

		resp, err := orchestrator.Score(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, stageAblated, resp.Provenance.Stages["evidence"])
		for _, drug := range resp.Drugs {
			assert.Zero(t, drug.Rationale.EvidenceStrength)
		}
	})
}

func TestScoreDiseaseGateConditionality(t *testing.T) {
	t.Run("present but empty context triggers the cap", func(t *testing.T) {
		orchestrator := newTestOrchestrator(happyCollaborators())
		req := validRequest()
		req.Context = &domain.DiseaseContext{}

		resp, err := orchestrator.Score(context.Background(), req)
		require.NoError(t, err)

		for _, drug := range resp.Drugs {
			assert.LessOrEqual(t, drug.Confidence, 0.4)
		}
		assert.Contains(t, resp.Provenance.GatesFired, GateDiseaseContext)
	})

	t.Run("absent context with non-empty profile default does not trigger", func(t *testing.T) {
		orchestrator := newTestOrchestrator(happyCollaborators())
		req := validRequest()
		req.Context = nil
		req.Profile = "germline_panel"

		resp, err := orchestrator.Score(context.Background(), req)
		require.NoError(t, err)

		assert.NotContains(t, resp.Provenance.GatesFired, GateDiseaseContext)
		assert.Greater(t, resp.Drugs[0].Confidence, 0.4)
	})
}

func TestScorePanelLimitTruncatesAfterRanking(t *testing.T) {
	orchestrator := newTestOrchestrator(happyCollaborators())

	req := validRequest()
	req.Options.PanelLimit = 1

	resp, err := orchestrator.Score(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Drugs, 1)
	assert.Equal(t, "d1-inhibitor", resp.Drugs[0].Drug)
}

func TestScorePrimaryVariantDrivesSequenceSignal(t *testing.T) {
	collaborators := happyCollaborators()
	collaborators.Baseline = &stubScorer{fn: func(v *domain.Variant) (*domain.SequenceScore, error) {
		// The second variant disrupts more and must become primary.
		if v.Position == 2 {
			return &domain.SequenceScore{Disruption: 9.0, Percentile: floatPtr(0.9)}, nil
		}
		return &domain.SequenceScore{Disruption: 1.0, Percentile: floatPtr(0.1)}, nil
	}}
	orchestrator := newTestOrchestrator(collaborators)

	req := validRequest()
	req.Mutations = []domain.Variant{
		{Gene: "G1", Chromosome: "1", Position: 1, Reference: "A", Alternate: "C"},
		{Gene: "G1", Chromosome: "1", Position: 2, Reference: "A", Alternate: "G"},
	}

	resp, err := orchestrator.Score(context.Background(), req)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, resp.Drugs[0].Rationale.SeqPct, 1e-9)
}

func TestScoreEnhancedScorerGatedByCoverage(t *testing.T) {
	enhancedCalls := 0
	collaborators := happyCollaborators()
	collaborators.Enhanced = &stubScorer{fn: func(v *domain.Variant) (*domain.SequenceScore, error) {
		enhancedCalls++
		return &domain.SequenceScore{Disruption: 6.0, Percentile: floatPtr(0.95), Mode: "enhanced"}, nil
	}}
	orchestrator := newTestOrchestrator(collaborators)

	t.Run("covered variant uses enhanced scorer", func(t *testing.T) {
		resp, err := orchestrator.Score(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Equal(t, 1, enhancedCalls)
		assert.InDelta(t, 0.95, resp.Drugs[0].Rationale.SeqPct, 1e-9)
	})

	t.Run("uncovered variant falls back to baseline", func(t *testing.T) {
		enhancedCalls = 0
		req := validRequest()
		req.Mutations[0].Build = domain.BuildGRCh37

		resp, err := orchestrator.Score(context.Background(), req)
		require.NoError(t, err)
		assert.Zero(t, enhancedCalls)
		assert.InDelta(t, 0.7, resp.Drugs[0].Rationale.SeqPct, 1e-9)
		assert.Contains(t, resp.Provenance.GatesFired, GateCoverage)
	})
}
