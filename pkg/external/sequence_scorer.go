// Package external contains the HTTP clients for the engine's collaborator
// services: the sequence scorers, the evidence provider, the clinical-variant
// database and the insights provider, plus the cache and circuit-breaker
// wrapping that makes them resilient.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/onco-efficacy-engine/internal/domain"
)

// SequenceScorerClient calls a sequence scoring service over HTTP. The same
// client type serves the baseline and the enhanced scorer; they differ only
// in endpoint and coverage.
type SequenceScorerClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSequenceScorerClient creates a sequence scorer client.
func NewSequenceScorerClient(config domain.SequenceScorerConfig) *SequenceScorerClient {
	rps := config.RateLimit
	if rps <= 0 {
		rps = 10
	}
	return &SequenceScorerClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type scoreVariantRequest struct {
	Gene          string `json:"gene"`
	ProteinChange string `json:"protein_change,omitempty"`
	Chromosome    string `json:"chromosome"`
	Position      int64  `json:"position"`
	Reference     string `json:"reference"`
	Alternate     string `json:"alternate"`
	Build         string `json:"build"`
}

type scoreVariantResponse struct {
	DisruptionValue      float64           `json:"disruption_value"`
	CalibratedPercentile *float64          `json:"calibrated_percentile"`
	Mode                 string            `json:"mode"`
	Metadata             map[string]string `json:"metadata"`
}

// ScoreVariant scores one variant. A scorer response with a null percentile
// means "not computable" and is passed through, not treated as an error.
func (c *SequenceScorerClient) ScoreVariant(ctx context.Context, variant *domain.Variant) (*domain.SequenceScore, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(scoreVariantRequest{
		Gene:          variant.Gene,
		ProteinChange: variant.ProteinChange,
		Chromosome:    variant.Chromosome,
		Position:      variant.Position,
		Reference:     variant.Reference,
		Alternate:     variant.Alternate,
		Build:         string(variant.Build),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode score request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/score", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sequence scorer returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read score response: %w", err)
	}

	var parsed scoreVariantResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse score response: %w", err)
	}

	return &domain.SequenceScore{
		Disruption: parsed.DisruptionValue,
		Percentile: parsed.CalibratedPercentile,
		Mode:       parsed.Mode,
		Metadata:   parsed.Metadata,
	}, nil
}
