package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// LogisticRegression is a binary linear classifier fitted by deterministic
// batch gradient descent on the full supplied dataset. Weights start at zero
// so repeated fits on the same data produce identical models.
type LogisticRegression struct {
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	LearningRate float64   `json:"learning_rate"`
	Epochs       int       `json:"epochs"`
}

// NewLogisticRegression returns an unfitted classifier with default
// optimizer settings.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		LearningRate: 0.5,
		Epochs:       500,
	}
}

// Train fits weights and bias by maximizing the likelihood of the binary
// labels. Labels must be 0 or 1.
func (m *LogisticRegression) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	if width == 0 {
		return errors.New("features have no columns")
	}
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrDimensionMismatch, i, len(row), width)
		}
	}
	for i, label := range labels {
		if label != 0 && label != 1 {
			return fmt.Errorf("label %d at row %d is not binary", label, i)
		}
	}

	if m.LearningRate <= 0 {
		m.LearningRate = 0.5
	}
	if m.Epochs <= 0 {
		m.Epochs = 500
	}

	weights := make([]float64, width)
	bias := 0.0
	n := float64(len(features))
	gradW := make([]float64, width)

	for epoch := 0; epoch < m.Epochs; epoch++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0
		for i, row := range features {
			diff := sigmoid(dot(weights, row)+bias) - float64(labels[i])
			for j, x := range row {
				gradW[j] += diff * x
			}
			gradB += diff
		}
		for j := range weights {
			weights[j] -= m.LearningRate * gradW[j] / n
		}
		bias -= m.LearningRate * gradB / n
	}

	m.Weights = weights
	m.Bias = bias
	return nil
}

// PredictProba returns the probability of the positive (churn) class, always
// within [0,1].
func (m *LogisticRegression) PredictProba(features []float64) (float64, error) {
	if len(m.Weights) == 0 {
		return 0, ErrNotFitted
	}
	if len(features) != len(m.Weights) {
		return 0, fmt.Errorf("%w: got %d values, want %d", ErrDimensionMismatch, len(features), len(m.Weights))
	}
	return sigmoid(dot(m.Weights, features) + m.Bias), nil
}

// Predict returns the class label via a 0.5 threshold on the positive-class
// probability, along with that probability.
func (m *LogisticRegression) Predict(features []float64) (int, float64, error) {
	probability, err := m.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	if probability >= 0.5 {
		return 1, probability, nil
	}
	return 0, probability, nil
}

// Save persists the fitted classifier as JSON.
func (m *LogisticRegression) Save(path string) error {
	if len(m.Weights) == 0 {
		return ErrNotFitted
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load restores a fitted classifier from JSON.
func (m *LogisticRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded LogisticRegression
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.Weights) == 0 {
		return errors.New("invalid classifier artifact")
	}
	*m = loaded
	return nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
