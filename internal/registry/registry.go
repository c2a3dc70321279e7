// Package registry holds the static scoring configuration: gene→pathway
// weight tables, the drug panel, per-disease tier thresholds and the
// empirical normalization constant. Tables are immutable and versioned; a
// reload swaps the whole object atomically and is visible to new requests
// only.
package registry

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/onco-efficacy-engine/internal/domain"
)

// TierThresholds are the evidence-tier cut points for one disease context.
// All three live on the normalized [0,1] pathway/evidence scale — the same
// scale the drug scorer's path_pct uses — so a change to the empirical
// normalization constant moves both together.
type TierThresholds struct {
	Strong    float64 `yaml:"strong"`
	Moderate  float64 `yaml:"moderate"`
	Alignment float64 `yaml:"alignment"`
}

// ScoringTables is one immutable, versioned snapshot of all scoring
// configuration. Never mutate a published snapshot; build a new one and swap.
type ScoringTables struct {
	Version string `yaml:"-"`

	// GenePathways maps gene symbol → pathway → weight. Genes absent from the
	// table contribute to no pathway.
	GenePathways map[string]map[string]float64 `yaml:"gene_pathways"`

	// Panel is the full drug panel; filter per request with PanelForDisease.
	Panel []domain.DrugCandidate `yaml:"panel"`

	// Thresholds keyed by disease identifier, with Default as the fallback.
	Thresholds map[string]TierThresholds `yaml:"thresholds"`
	Default    TierThresholds            `yaml:"default_thresholds"`

	// PathwayEmpiricalMax scales raw pathway-alignment values to [0,1]. It is
	// derived from observed score distributions across the reference cohort,
	// NOT from the scorer's theoretical ceiling: observed s_path for a single
	// strong driver variant against a fully aligned drug sits around 6, so 12
	// keeps such a case mid-range and reserves saturation for multi-variant,
	// multi-pathway disruption.
	PathwayEmpiricalMax float64 `yaml:"pathway_empirical_max"`

	// ContextDefaults are per-profile disease-context defaults applied when
	// the request omits the context block entirely.
	ContextDefaults map[string]domain.DiseaseContext `yaml:"context_defaults"`
}

// PanelForDisease returns the drugs applicable to the given disease,
// preserving panel order. The returned slice is freshly allocated.
func (t *ScoringTables) PanelForDisease(disease string) []domain.DrugCandidate {
	out := make([]domain.DrugCandidate, 0, len(t.Panel))
	for _, d := range t.Panel {
		if d.AppliesTo(disease) {
			out = append(out, d)
		}
	}
	return out
}

// ThresholdsForDisease returns the tier thresholds for a disease, falling
// back to the default table when the disease has no entry.
func (t *ScoringTables) ThresholdsForDisease(disease string) TierThresholds {
	if th, ok := t.Thresholds[disease]; ok {
		return th
	}
	return t.Default
}

// PathwaysForGene returns the pathway weight entries for a gene, nil when the
// gene is unmapped.
func (t *ScoringTables) PathwaysForGene(gene string) map[string]float64 {
	return t.GenePathways[gene]
}

// ContextDefaultForProfile returns the configured context defaults for a
// profile, nil when none exist.
func (t *ScoringTables) ContextDefaultForProfile(profile string) *domain.DiseaseContext {
	if ctx, ok := t.ContextDefaults[profile]; ok {
		c := ctx
		return &c
	}
	return nil
}

// Registry publishes the current ScoringTables snapshot. Reads are lock-free;
// Reload is the single entry point that swaps the whole snapshot.
type Registry struct {
	tables atomic.Pointer[ScoringTables]
	log    *logrus.Logger
}

// New creates a registry publishing the given initial tables.
func New(tables *ScoringTables, logger *logrus.Logger) *Registry {
	r := &Registry{log: logger}
	r.tables.Store(stamp(tables))
	return r
}

// Current returns the currently published snapshot. Callers must treat it as
// read-only and hold on to it for the duration of one request so the view
// never tears mid-request.
func (r *Registry) Current() *ScoringTables {
	return r.tables.Load()
}

// Reload builds a new snapshot with the given loader and swaps it in
// atomically. On loader failure the previous snapshot stays published.
func (r *Registry) Reload(load func() (*ScoringTables, error)) error {
	tables, err := load()
	if err != nil {
		return fmt.Errorf("reloading scoring tables: %w", err)
	}
	stamped := stamp(tables)
	r.tables.Store(stamped)
	r.log.WithFields(logrus.Fields{
		"version":    stamped.Version,
		"panel_size": len(stamped.Panel),
		"genes":      len(stamped.GenePathways),
	}).Info("Scoring tables reloaded")
	return nil
}

// stamp assigns a fresh version identifier and fills required defaults.
func stamp(t *ScoringTables) *ScoringTables {
	if t.Version == "" {
		t.Version = uuid.NewString()
	}
	if t.PathwayEmpiricalMax <= 0 {
		t.PathwayEmpiricalMax = defaultPathwayEmpiricalMax
	}
	if t.Default == (TierThresholds{}) {
		t.Default = defaultThresholds
	}
	return t
}

// LoadFile parses a ScoringTables snapshot from a YAML file.
func LoadFile(path string) (*ScoringTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scoring tables file: %w", err)
	}
	tables := &ScoringTables{}
	if err := yaml.Unmarshal(data, tables); err != nil {
		return nil, fmt.Errorf("parsing scoring tables file: %w", err)
	}
	if len(tables.Panel) == 0 {
		return nil, fmt.Errorf("scoring tables file %s declares an empty drug panel", path)
	}
	return tables, nil
}
