package eval

import "fmt"

func errMissingWeight(dim Dimension) error {
	return fmt.Errorf("eval: missing weight for dimension %q", dim)
}

func errNegativeWeight(dim Dimension) error {
	return fmt.Errorf("eval: negative weight for dimension %q", dim)
}

func errWeightSum(sum float64) error {
	return fmt.Errorf("eval: weights must sum to 1.0, got %f", sum)
}
