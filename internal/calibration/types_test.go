package calibration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSnapshot() *Snapshot {
	return &Snapshot{
		Gene:       "BRCA1",
		Raw:        []float64{0.0, 0.5, 1.0},
		Calibrated: []float64{0.0, 0.3, 0.9},
		BuiltAt:    time.Now().UTC(),
	}
}

func TestSnapshotValidate(t *testing.T) {
	assert.NoError(t, validSnapshot().Validate())

	missing := validSnapshot()
	missing.Gene = ""
	assert.Error(t, missing.Validate())

	short := validSnapshot()
	short.Raw = []float64{0.5}
	short.Calibrated = []float64{0.5}
	assert.Error(t, short.Validate())

	mismatched := validSnapshot()
	mismatched.Calibrated = []float64{0.0, 0.3}
	assert.Error(t, mismatched.Validate())

	unsorted := validSnapshot()
	unsorted.Raw = []float64{0.5, 0.0, 1.0}
	assert.Error(t, unsorted.Validate())
}

func TestSnapshotApplyInterpolates(t *testing.T) {
	snapshot := validSnapshot()

	tests := []struct {
		name     string
		raw      float64
		expected float64
	}{
		{"exact first breakpoint", 0.0, 0.0},
		{"exact middle breakpoint", 0.5, 0.3},
		{"exact last breakpoint", 1.0, 0.9},
		{"interpolated lower segment", 0.25, 0.15},
		{"interpolated upper segment", 0.75, 0.6},
		{"clamped below range", -0.5, 0.0},
		{"clamped above range", 1.5, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, snapshot.Apply(tt.raw), 1e-9)
		})
	}
}

func TestSnapshotApplyDuplicateBreakpoint(t *testing.T) {
	snapshot := &Snapshot{
		Gene:       "TP53",
		Raw:        []float64{0.0, 0.5, 0.5, 1.0},
		Calibrated: []float64{0.0, 0.2, 0.4, 1.0},
	}

	// A zero-width segment must not divide by zero.
	got := snapshot.Apply(0.5)
	assert.False(t, got != got, "result must not be NaN")
	assert.GreaterOrEqual(t, got, 0.2)
	assert.LessOrEqual(t, got, 0.4)
}
