package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeightsValid(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
}

func TestWeightsValidateSum(t *testing.T) {
	w := Weights{
		DimensionInstruction:   0.5,
		DimensionHallucination: 0.5,
		DimensionAssumption:    0.5,
		DimensionCoherence:     0.5,
		DimensionAccuracy:      0.5,
	}
	err := w.Validate()
	assert.Error(t, err)
}

func TestWeightsValidateMissing(t *testing.T) {
	w := Weights{
		DimensionInstruction: 1.0,
	}
	err := w.Validate()
	assert.Error(t, err)
}

func TestWeightsValidateNegative(t *testing.T) {
	w := DefaultWeights()
	w[DimensionAccuracy] = -0.1
	w[DimensionInstruction] = 0.50
	err := w.Validate()
	assert.Error(t, err)
}

func TestLoadWeightsFileEmptyPath(t *testing.T) {
	w, err := LoadWeightsFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), w)
}
