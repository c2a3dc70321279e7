package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/onco-efficacy-engine/internal/domain"
)

// ClinicalVariantClient queries the clinical-variant database for a
// pathogenicity prior.
type ClinicalVariantClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClinicalVariantClient creates a clinical-variant database client.
func NewClinicalVariantClient(config domain.ClinicalDBConfig) *ClinicalVariantClient {
	rps := config.RateLimit
	if rps <= 0 {
		rps = 3
	}
	return &ClinicalVariantClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type clinicalPriorResponse struct {
	Prior          float64 `json:"prior"`
	Classification string  `json:"classification"`
	ReviewStatus   string  `json:"review_status"`
}

// LookupPrior fetches the pathogenicity prior for a variant. An unknown
// variant returns a zero prior, not an error. Classification and review
// status are normalized to the lowercase underscore vocabulary the tier
// classifier matches on.
func (c *ClinicalVariantClient) LookupPrior(ctx context.Context, variant *domain.Variant) (*domain.ClinicalPrior, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"gene":       {variant.Gene},
		"chromosome": {variant.Chromosome},
		"position":   {fmt.Sprintf("%d", variant.Position)},
		"reference":  {variant.Reference},
		"alternate":  {variant.Alternate},
		"build":      {string(variant.Build)},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	fullURL := fmt.Sprintf("%s/v1/prior?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create prior request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute prior request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &domain.ClinicalPrior{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clinical-variant database returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read prior response: %w", err)
	}

	var parsed clinicalPriorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse prior response: %w", err)
	}

	prior := parsed.Prior
	if prior < 0 {
		prior = 0
	}
	if prior > 1 {
		prior = 1
	}

	return &domain.ClinicalPrior{
		Prior:          prior,
		Classification: normalizeLabel(parsed.Classification),
		ReviewStatus:   normalizeLabel(parsed.ReviewStatus),
	}, nil
}

// normalizeLabel lowercases a classification label and replaces spaces with
// underscores ("Likely pathogenic" becomes "likely_pathogenic").
func normalizeLabel(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
