package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.evalmesh.dev/engine/pkg/eval"
)

func TestAggregateAllDimensions(t *testing.T) {
	weights := eval.DefaultWeights()
	scores := map[eval.Dimension]float64{
		eval.DimensionInstruction:   0.9,
		eval.DimensionHallucination: 0.8,
		eval.DimensionAssumption:    0.7,
		eval.DimensionCoherence:     1.0,
		eval.DimensionAccuracy:      0.6,
	}
	final, scored := aggregate(weights, scores)
	assert.True(t, scored)
	want := 0.20*0.9 + 0.25*0.8 + 0.20*0.7 + 0.15*1.0 + 0.20*0.6
	assert.InDelta(t, want, final, 1e-9)
}

func TestAggregateRenormalizesOverPartialSet(t *testing.T) {
	weights := eval.DefaultWeights()
	// Only two of five dimensions reported; the other three errored out or
	// never arrived. The result renormalises over just instruction+accuracy.
	scores := map[eval.Dimension]float64{
		eval.DimensionInstruction: 1.0,
		eval.DimensionAccuracy:    0.5,
	}
	final, scored := aggregate(weights, scores)
	assert.True(t, scored)
	want := (0.20*1.0 + 0.20*0.5) / (0.20 + 0.20)
	assert.InDelta(t, want, final, 1e-9)
}

func TestAggregateEmptySetIsUnscored(t *testing.T) {
	final, scored := aggregate(eval.DefaultWeights(), map[eval.Dimension]float64{})
	assert.False(t, scored)
	assert.Zero(t, final)
}
