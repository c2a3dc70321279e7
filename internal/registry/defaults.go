package registry

import "github.com/onco-efficacy-engine/internal/domain"

// defaultPathwayEmpiricalMax is the calibrated scale for raw pathway
// alignment. Re-derive it whenever the reference cohort or the upstream
// scorer changes; see the saturation regression test before trusting a new
// value.
const defaultPathwayEmpiricalMax = 12.0

// defaultThresholds are tuned against the normalized path_pct range produced
// by defaultPathwayEmpiricalMax.
var defaultThresholds = TierThresholds{
	Strong:    0.70,
	Moderate:  0.40,
	Alignment: 0.25,
}

// DefaultTables returns the built-in reference panel and weight tables used
// when no tables file is configured. The panel is intentionally small; real
// deployments load a curated file.
func DefaultTables() *ScoringTables {
	return &ScoringTables{
		GenePathways: map[string]map[string]float64{
			"BRCA1": {"dna_damage_repair": 1.0, "homologous_recombination": 0.9},
			"BRCA2": {"dna_damage_repair": 1.0, "homologous_recombination": 0.9},
			"ATM":   {"dna_damage_repair": 0.8, "cell_cycle_checkpoint": 0.6},
			"TP53":  {"cell_cycle_checkpoint": 1.0, "apoptosis": 0.8},
			"KRAS":  {"mapk_signaling": 1.0, "pi3k_signaling": 0.4},
			"BRAF":  {"mapk_signaling": 1.0},
			"EGFR":  {"rtk_signaling": 1.0, "mapk_signaling": 0.6},
			"PIK3CA": {"pi3k_signaling": 1.0},
			"PTEN":  {"pi3k_signaling": 0.9, "apoptosis": 0.4},
		},
		Panel: []domain.DrugCandidate{
			{
				Name:      "olaparib",
				Mechanism: "PARP inhibitor",
				Targets:   []string{"BRCA1", "BRCA2"},
				PathwayWeights: map[string]float64{
					"dna_damage_repair":        1.0,
					"homologous_recombination": 0.9,
				},
				Diseases: []string{"breast_cancer", "ovarian_cancer", "prostate_cancer", "pancreatic_cancer"},
			},
			{
				Name:      "niraparib",
				Mechanism: "PARP inhibitor",
				PathwayWeights: map[string]float64{
					"dna_damage_repair":        0.9,
					"homologous_recombination": 0.9,
				},
				Diseases: []string{"ovarian_cancer"},
			},
			{
				Name:      "trametinib",
				Mechanism: "MEK inhibitor",
				Targets:   []string{"BRAF", "KRAS"},
				PathwayWeights: map[string]float64{
					"mapk_signaling": 1.0,
				},
			},
			{
				Name:      "erlotinib",
				Mechanism: "EGFR tyrosine kinase inhibitor",
				Targets:   []string{"EGFR"},
				PathwayWeights: map[string]float64{
					"rtk_signaling":  1.0,
					"mapk_signaling": 0.3,
				},
			},
			{
				Name:      "alpelisib",
				Mechanism: "PI3K inhibitor",
				Targets:   []string{"PIK3CA"},
				PathwayWeights: map[string]float64{
					"pi3k_signaling": 1.0,
				},
				Diseases: []string{"breast_cancer"},
			},
			{
				Name:      "carboplatin",
				Mechanism: "platinum chemotherapy",
				PathwayWeights: map[string]float64{
					"dna_damage_repair": 0.6,
				},
			},
		},
		Thresholds: map[string]TierThresholds{
			// Ovarian cohorts show a tighter evidence distribution; the strong
			// cut sits lower than the global default.
			"ovarian_cancer": {Strong: 0.65, Moderate: 0.35, Alignment: 0.25},
		},
		Default:             defaultThresholds,
		PathwayEmpiricalMax: defaultPathwayEmpiricalMax,
		ContextDefaults: map[string]domain.DiseaseContext{
			"germline_panel": {GermlineStatus: "confirmed_germline", TumorContext: "primary"},
		},
	}
}
