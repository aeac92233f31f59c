package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// minStd floors the fitted standard deviation so zero-variance columns
// transform to zero instead of dividing by zero.
const minStd = 1e-8

// StandardScaler standardizes numeric vectors to zero mean and unit
// variance using moments learned once from the training table.
type StandardScaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// Fit computes per-column mean and standard deviation over the given rows.
// Every row must have the same width.
func (s *StandardScaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return errors.New("rows is empty")
	}
	width := len(rows[0])
	if width == 0 {
		return errors.New("rows have no columns")
	}
	for i, row := range rows {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrDimensionMismatch, i, len(row), width)
		}
	}

	means := make([]float64, width)
	for _, row := range rows {
		for j, v := range row {
			means[j] += v
		}
	}
	n := float64(len(rows))
	for j := range means {
		means[j] /= n
	}

	stds := make([]float64, width)
	for _, row := range rows {
		for j, v := range row {
			diff := v - means[j]
			stds[j] += diff * diff
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
		if stds[j] < minStd {
			stds[j] = minStd
		}
	}

	s.Means = means
	s.Stds = stds
	return nil
}

// Transform returns (x-mean)/std per column using the fitted moments. The
// moments are never recomputed here.
func (s *StandardScaler) Transform(vector []float64) ([]float64, error) {
	if len(s.Means) == 0 {
		return nil, ErrNotFitted
	}
	if len(vector) != len(s.Means) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrDimensionMismatch, len(vector), len(s.Means))
	}
	scaled := make([]float64, len(vector))
	for i, v := range vector {
		scaled[i] = (v - s.Means[i]) / s.Stds[i]
	}
	return scaled, nil
}

// Save persists the fitted moments as JSON.
func (s *StandardScaler) Save(path string) error {
	if len(s.Means) == 0 {
		return ErrNotFitted
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load restores fitted moments from JSON.
func (s *StandardScaler) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded StandardScaler
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.Means) == 0 || len(loaded.Means) != len(loaded.Stds) {
		return errors.New("invalid scaler artifact")
	}
	*s = loaded
	return nil
}
