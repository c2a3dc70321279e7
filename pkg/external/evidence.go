package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/onco-efficacy-engine/internal/domain"
)

// EvidenceClient queries the literature/clinical evidence provider for one
// (gene, variant, drug) triple.
type EvidenceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewEvidenceClient creates an evidence provider client.
func NewEvidenceClient(config domain.EvidenceConfig) *EvidenceClient {
	rps := config.RateLimit
	if rps <= 0 {
		rps = 5
	}
	return &EvidenceClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type evidenceResponse struct {
	Strength  float64  `json:"strength"`
	Citations []string `json:"citations"`
	Badges    []string `json:"badges"`
}

// GatherEvidence fetches evidence for a gene+variant+drug triple. Strength is
// clamped to [0,1] on the way in; the provider's badge vocabulary is passed
// through unfiltered and interpreted by the tier classifier.
func (c *EvidenceClient) GatherEvidence(ctx context.Context, gene, proteinChange, drug, mechanism string) (*domain.EvidenceResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"gene":      {gene},
		"drug":      {drug},
		"mechanism": {mechanism},
	}
	if proteinChange != "" {
		params.Set("protein_change", proteinChange)
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	fullURL := fmt.Sprintf("%s/v1/evidence?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create evidence request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute evidence request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("evidence provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence response: %w", err)
	}

	var parsed evidenceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse evidence response: %w", err)
	}

	strength := parsed.Strength
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}
	citations := parsed.Citations
	if citations == nil {
		citations = []string{}
	}

	return &domain.EvidenceResult{
		Strength:  strength,
		Citations: citations,
		Badges:    parsed.Badges,
	}, nil
}
