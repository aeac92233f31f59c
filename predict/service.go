// Package predict applies the fitted artifact bundle to single customer
// records.
package predict

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"churnsight/ml"
)

// ErrModelUnavailable is returned while the service runs in degraded mode,
// meaning the artifact bundle was missing or unreadable at startup.
var ErrModelUnavailable = errors.New("model artifacts not loaded")

// Class labels for the binary outcome.
const (
	LabelChurn    = "Churn"
	LabelRetained = "Retained"
)

const predictionCacheSize = 512

// CustomerInput carries the caller-supplied fields for one prediction.
// avg_purchase_value and sentiment_score are deliberately absent: the
// service fixes them to the training-time constants.
type CustomerInput struct {
	ReviewText        string
	Age               float64
	TenureDays        float64
	UsageFrequency    float64
	NumPurchases      float64
	SatisfactionScore float64
	NumSupportTickets float64
}

// Result is one churn prediction.
type Result struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Service holds the process-scoped artifact bundle. The bundle is loaded
// once before the service is constructed and never mutated afterwards, so
// concurrent Predict calls need no locking. A service constructed without
// artifacts stays degraded for its lifetime.
type Service struct {
	artifacts *ml.ModelArtifacts
	cache     *lru.Cache[string, Result]
}

// NewService wraps an artifact bundle. Pass nil to run degraded; aggregation
// elsewhere keeps working, only Predict refuses.
func NewService(artifacts *ml.ModelArtifacts) *Service {
	cache, _ := lru.New[string, Result](predictionCacheSize)
	return &Service{artifacts: artifacts, cache: cache}
}

// Ready reports whether the artifact bundle loaded successfully.
func (s *Service) Ready() bool {
	return s.artifacts != nil
}

// Predict scores one customer record: scale the numeric vector, vectorize
// the review text, assemble in training order, classify. Results are
// memoized per input; the artifacts are immutable so cached entries never
// go stale.
func (s *Service) Predict(input CustomerInput) (Result, error) {
	if !s.Ready() {
		return Result{}, ErrModelUnavailable
	}

	key := cacheKey(input)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	features := ml.CustomerFeatures{
		Age:               input.Age,
		UsageFrequency:    input.UsageFrequency,
		NumPurchases:      input.NumPurchases,
		AvgPurchaseValue:  ml.DefaultAvgPurchaseValue,
		SentimentScore:    ml.DefaultSentimentScore,
		SatisfactionScore: input.SatisfactionScore,
		NumSupportTickets: input.NumSupportTickets,
		TenureDays:        input.TenureDays,
	}

	scaled, err := s.artifacts.Scaler.Transform(ml.NumericVector(features))
	if err != nil {
		return Result{}, err
	}
	textVector, err := s.artifacts.Vectorizer.Transform(input.ReviewText)
	if err != nil {
		return Result{}, err
	}
	label, probability, err := s.artifacts.Classifier.Predict(ml.Assemble(textVector, scaled))
	if err != nil {
		return Result{}, err
	}

	result := Result{Label: LabelRetained, Probability: probability}
	if label == 1 {
		result.Label = LabelChurn
	}
	s.cache.Add(key, result)
	return result, nil
}

func cacheKey(input CustomerInput) string {
	return fmt.Sprintf("%g|%g|%g|%g|%g|%g|%s",
		input.Age, input.TenureDays, input.UsageFrequency,
		input.NumPurchases, input.SatisfactionScore, input.NumSupportTickets,
		input.ReviewText)
}
