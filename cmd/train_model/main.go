package main

import (
	"flag"
	"fmt"
	"log"

	"churnsight/pipeline"
)

func main() {
	csvPath := flag.String("csv", "", "labeled training dataset csv")
	modelDir := flag.String("model_dir", "./model_artifacts", "artifact output directory")
	vocabSize := flag.Int("vocab_size", 100, "max vocabulary size")
	learningRate := flag.Float64("learning_rate", 0.5, "gradient descent learning rate")
	epochs := flag.Int("epochs", 500, "gradient descent epochs")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("csv is required")
	}

	summary, err := pipeline.Train(pipeline.TrainingConfig{
		DatasetPath:  *csvPath,
		ModelDir:     *modelDir,
		VocabSize:    *vocabSize,
		LearningRate: *learningRate,
		Epochs:       *epochs,
	})
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	// Accuracy here is measured on the training set itself; the pipeline
	// fits on all supplied rows with no held-out split.
	log.Printf("rows=%d vocabulary=%d train_accuracy=%.3f",
		summary.Rows, summary.VocabularySize, summary.TrainAccuracy)
	fmt.Printf("artifacts saved to %s\n", *modelDir)
}
