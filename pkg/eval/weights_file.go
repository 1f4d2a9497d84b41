package eval

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// weightsFile is the on-disk shape of a weights TOML file, e.g.:
//
//	instruction   = 0.20
//	hallucination = 0.25
//	assumption    = 0.20
//	coherence     = 0.15
//	accuracy      = 0.20
type weightsFile struct {
	Instruction   float64 `toml:"instruction"`
	Hallucination float64 `toml:"hallucination"`
	Assumption    float64 `toml:"assumption"`
	Coherence     float64 `toml:"coherence"`
	Accuracy      float64 `toml:"accuracy"`
}

// LoadWeightsFile reads dimension weights from a TOML file and validates
// that they sum to 1. An empty path returns DefaultWeights.
func LoadWeightsFile(path string) (Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eval: failed to open weights file: %w", err)
	}
	defer f.Close()
	var wf weightsFile
	dec := toml.NewDecoder(f)
	if err := dec.Decode(&wf); err != nil {
		return nil, fmt.Errorf("eval: failed to decode weights file: %w", err)
	}
	w := Weights{
		DimensionInstruction:   wf.Instruction,
		DimensionHallucination: wf.Hallucination,
		DimensionAssumption:    wf.Assumption,
		DimensionCoherence:     wf.Coherence,
		DimensionAccuracy:      wf.Accuracy,
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}
