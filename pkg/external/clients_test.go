package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-efficacy-engine/internal/domain"
)

func TestSequenceScorerClientScoreVariant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/score", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req scoreVariantRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "BRCA1", req.Gene)
		assert.Equal(t, "GRCh38", req.Build)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"disruption_value":      6.2,
			"calibrated_percentile": 0.81,
			"mode":                  "baseline",
		})
	}))
	defer server.Close()

	client := NewSequenceScorerClient(domain.SequenceScorerConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})

	score, err := client.ScoreVariant(context.Background(), &domain.Variant{
		Gene:       "BRCA1",
		Chromosome: "17",
		Position:   43045000,
		Reference:  "A",
		Alternate:  "T",
		Build:      domain.BuildGRCh38,
	})
	require.NoError(t, err)
	assert.InDelta(t, 6.2, score.Disruption, 1e-9)
	require.NotNil(t, score.Percentile)
	assert.InDelta(t, 0.81, *score.Percentile, 1e-9)
	assert.Equal(t, "baseline", score.Mode)
}

func TestSequenceScorerClientNullPercentile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"disruption_value": 3.1, "calibrated_percentile": null, "mode": "baseline"}`))
	}))
	defer server.Close()

	client := NewSequenceScorerClient(domain.SequenceScorerConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	score, err := client.ScoreVariant(context.Background(), &domain.Variant{Gene: "KRAS"})
	require.NoError(t, err)
	assert.Nil(t, score.Percentile, "null percentile means not computable, not zero")
}

func TestSequenceScorerClientUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewSequenceScorerClient(domain.SequenceScorerConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	_, err := client.ScoreVariant(context.Background(), &domain.Variant{Gene: "KRAS"})
	assert.ErrorContains(t, err, "status 502")
}

func TestEvidenceClientGatherEvidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/evidence", r.URL.Path)
		assert.Equal(t, "EGFR", r.URL.Query().Get("gene"))
		assert.Equal(t, "osimertinib", r.URL.Query().Get("drug"))
		assert.Equal(t, "p.L858R", r.URL.Query().Get("protein_change"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"strength": 1.7, "badges": ["randomized_trial"]}`))
	}))
	defer server.Close()

	client := NewEvidenceClient(domain.EvidenceConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	result, err := client.GatherEvidence(context.Background(), "EGFR", "p.L858R", "osimertinib", "tki")
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Strength, "strength above 1 is clamped")
	assert.Equal(t, []string{}, result.Citations, "missing citations come back empty, not nil")
	assert.Equal(t, []string{"randomized_trial"}, result.Badges)
}

func TestClinicalVariantClientLookupPrior(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/prior", r.URL.Path)
		assert.Equal(t, "BRCA1", r.URL.Query().Get("gene"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"prior": 0.9, "classification": "Likely pathogenic", "review_status": "Expert panel"}`))
	}))
	defer server.Close()

	client := NewClinicalVariantClient(domain.ClinicalDBConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	prior, err := client.LookupPrior(context.Background(), &domain.Variant{Gene: "BRCA1", Chromosome: "17", Position: 43045000, Reference: "A", Alternate: "T"})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, prior.Prior, 1e-9)
	assert.Equal(t, "likely_pathogenic", prior.Classification)
	assert.Equal(t, "expert_panel", prior.ReviewStatus)
	assert.True(t, prior.IsStrongClassification())
}

func TestClinicalVariantClientUnknownVariant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClinicalVariantClient(domain.ClinicalDBConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	prior, err := client.LookupPrior(context.Background(), &domain.Variant{Gene: "NOVEL1"})
	require.NoError(t, err, "an unknown variant is a zero prior, not an error")
	assert.Zero(t, prior.Prior)
	assert.Empty(t, prior.Classification)
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "likely_pathogenic", normalizeLabel("  Likely Pathogenic "))
	assert.Equal(t, "practice_guideline", normalizeLabel("practice_guideline"))
	assert.Equal(t, "", normalizeLabel(""))
}
