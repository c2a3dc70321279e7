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

// InsightsClient queries the auxiliary insights provider for the four
// per-variant scores.
type InsightsClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewInsightsClient creates an insights provider client.
func NewInsightsClient(config domain.InsightsConfig) *InsightsClient {
	rps := config.RateLimit
	if rps <= 0 {
		rps = 5
	}
	return &InsightsClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// VariantInsights fetches the insights bundle for a variant. Each score the
// provider could not compute comes back null and stays nil in the bundle.
func (c *InsightsClient) VariantInsights(ctx context.Context, variant *domain.Variant) (*domain.InsightsBundle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"gene":       {variant.Gene},
		"chromosome": {variant.Chromosome},
		"position":   {fmt.Sprintf("%d", variant.Position)},
	}
	if variant.ProteinChange != "" {
		params.Set("protein_change", variant.ProteinChange)
	}

	fullURL := fmt.Sprintf("%s/v1/insights?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create insights request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute insights request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("insights provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read insights response: %w", err)
	}

	var bundle domain.InsightsBundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse insights response: %w", err)
	}

	return &bundle, nil
}
