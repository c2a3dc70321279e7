// Package calibration provides gene-keyed calibration snapshots: precomputed
// percentile-to-confidence mappings built offline from a reference
// population. The engine consumes snapshots read-only; the store backends
// exist so deployments can share snapshots across replicas.
package calibration

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Snapshot maps raw sequence percentiles to calibrated percentiles for one
// gene via piecewise-linear breakpoints. Breakpoints are sorted ascending and
// Raw/Calibrated have equal length.
type Snapshot struct {
	Gene       string    `json:"gene"`
	Raw        []float64 `json:"raw"`
	Calibrated []float64 `json:"calibrated"`
	BuiltAt    time.Time `json:"built_at"`
}

// Validate checks breakpoint integrity before a snapshot is stored or served.
func (s *Snapshot) Validate() error {
	if s.Gene == "" {
		return fmt.Errorf("snapshot validation: gene is required")
	}
	if len(s.Raw) < 2 || len(s.Raw) != len(s.Calibrated) {
		return fmt.Errorf("snapshot validation: need >=2 paired breakpoints, got %d/%d", len(s.Raw), len(s.Calibrated))
	}
	if !sort.Float64sAreSorted(s.Raw) {
		return fmt.Errorf("snapshot validation: raw breakpoints must be sorted ascending")
	}
	return nil
}

// Apply maps a raw percentile to the calibrated percentile by linear
// interpolation between breakpoints, clamping outside the breakpoint range.
func (s *Snapshot) Apply(raw float64) float64 {
	n := len(s.Raw)
	if raw <= s.Raw[0] {
		return s.Calibrated[0]
	}
	if raw >= s.Raw[n-1] {
		return s.Calibrated[n-1]
	}
	i := sort.SearchFloat64s(s.Raw, raw)
	lo, hi := i-1, i
	span := s.Raw[hi] - s.Raw[lo]
	if span == 0 {
		return s.Calibrated[lo]
	}
	frac := (raw - s.Raw[lo]) / span
	return s.Calibrated[lo] + frac*(s.Calibrated[hi]-s.Calibrated[lo])
}

// Store persists calibration snapshots. Get returns domain.ErrNotFound when
// no snapshot exists for the gene.
type Store interface {
	Get(ctx context.Context, gene string) (*Snapshot, error)
	Put(ctx context.Context, snapshot *Snapshot) error
	Close() error
}
