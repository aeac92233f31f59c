// Package pipeline orchestrates the offline fitting run that produces the
// model artifact bundle consumed by the inference service.
package pipeline

import (
	"errors"
	"fmt"
	"os"

	"churnsight/analytics"
	"churnsight/ml"
)

// TrainingConfig controls one offline fitting run.
type TrainingConfig struct {
	DatasetPath  string
	ModelDir     string
	VocabSize    int
	LearningRate float64
	Epochs       int
}

// TrainingSummary reports what a fitting run produced. TrainAccuracy is
// measured on the training set itself; the pipeline fits on 100% of the
// supplied data, so this is a fit diagnostic, not a generalization estimate.
type TrainingSummary struct {
	Rows           int
	VocabularySize int
	TrainAccuracy  float64
}

// Train runs the full fitting pipeline in its required order: vectorizer on
// all texts, scaler on all numeric columns, every row through assembly, then
// the classifier on the assembled matrix. The three artifacts are persisted
// as one unit or not at all.
func Train(config TrainingConfig) (*TrainingSummary, error) {
	if config.DatasetPath == "" {
		return nil, errors.New("dataset path is required")
	}
	if config.ModelDir == "" {
		return nil, errors.New("model dir is required")
	}

	file, err := os.Open(config.DatasetPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	table, err := analytics.ParseTable(file)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	texts := make([]string, len(table.Records))
	numericRows := make([][]float64, len(table.Records))
	labels := make([]int, len(table.Records))
	for i, record := range table.Records {
		texts[i] = record.ReviewText
		numericRows[i] = ml.NumericVector(trainingFeatures(record))
		labels[i] = record.Churn
	}

	vectorizer := ml.NewTFIDFVectorizer(config.VocabSize)
	if err := vectorizer.Fit(texts); err != nil {
		return nil, fmt.Errorf("fit vectorizer: %w", err)
	}
	scaler := &ml.StandardScaler{}
	if err := scaler.Fit(numericRows); err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}

	assembled := make([][]float64, len(table.Records))
	for i := range table.Records {
		textVector, err := vectorizer.Transform(texts[i])
		if err != nil {
			return nil, fmt.Errorf("transform row %d: %w", i, err)
		}
		scaled, err := scaler.Transform(numericRows[i])
		if err != nil {
			return nil, fmt.Errorf("scale row %d: %w", i, err)
		}
		assembled[i] = ml.Assemble(textVector, scaled)
	}

	classifier := ml.NewLogisticRegression()
	if config.LearningRate > 0 {
		classifier.LearningRate = config.LearningRate
	}
	if config.Epochs > 0 {
		classifier.Epochs = config.Epochs
	}
	if err := classifier.Train(assembled, labels); err != nil {
		return nil, fmt.Errorf("fit classifier: %w", err)
	}

	artifacts := &ml.ModelArtifacts{
		Vectorizer: vectorizer,
		Scaler:     scaler,
		Classifier: classifier,
	}
	if err := ml.SaveArtifacts(config.ModelDir, artifacts); err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}

	return &TrainingSummary{
		Rows:           len(table.Records),
		VocabularySize: vectorizer.Width(),
		TrainAccuracy:  trainingAccuracy(classifier, assembled, labels),
	}, nil
}

// trainingFeatures builds the numeric vector for one dataset row, forcing
// the same constants the inference service applies.
func trainingFeatures(record analytics.CustomerRecord) ml.CustomerFeatures {
	return ml.CustomerFeatures{
		Age:               record.Age,
		UsageFrequency:    record.UsageFrequency,
		NumPurchases:      record.NumPurchases,
		AvgPurchaseValue:  ml.DefaultAvgPurchaseValue,
		SentimentScore:    ml.DefaultSentimentScore,
		SatisfactionScore: record.SatisfactionScore,
		NumSupportTickets: record.NumSupportTickets,
		TenureDays:        record.TenureDays,
	}
}

func trainingAccuracy(classifier *ml.LogisticRegression, features [][]float64, labels []int) float64 {
	if len(features) == 0 {
		return 0
	}
	correct := 0
	for i, row := range features {
		label, _, err := classifier.Predict(row)
		if err != nil {
			continue
		}
		if label == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(features))
}
