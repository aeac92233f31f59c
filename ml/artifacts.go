package ml

import (
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names, one per fitted component. All three are produced by a
// single training run and must be loaded together; mixing files from
// different runs is undefined behavior.
const (
	ClassifierFile = "churn_model.json"
	VectorizerFile = "tfidf.json"
	ScalerFile     = "scaler.json"
)

// ModelArtifacts bundles the three fitted components. The bundle is
// immutable after loading: it is built once by the training pipeline and
// consumed read-only for the lifetime of the process.
type ModelArtifacts struct {
	Vectorizer *TFIDFVectorizer
	Scaler     *StandardScaler
	Classifier *LogisticRegression
}

// SaveArtifacts persists the bundle with all-or-nothing semantics: every
// file is written to a temporary sibling first and renamed into place only
// after all three writes succeed, so a failed run never leaves a partial
// bundle behind.
func SaveArtifacts(dir string, artifacts *ModelArtifacts) error {
	if artifacts == nil || artifacts.Vectorizer == nil || artifacts.Scaler == nil || artifacts.Classifier == nil {
		return fmt.Errorf("incomplete artifact bundle: %w", ErrNotFitted)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	files := []struct {
		name string
		save func(path string) error
	}{
		{VectorizerFile, artifacts.Vectorizer.Save},
		{ScalerFile, artifacts.Scaler.Save},
		{ClassifierFile, artifacts.Classifier.Save},
	}

	tmpPaths := make([]string, len(files))
	for i, file := range files {
		tmp := filepath.Join(dir, file.name+".tmp")
		if err := file.save(tmp); err != nil {
			for _, written := range tmpPaths[:i] {
				os.Remove(written)
			}
			return fmt.Errorf("write %s: %w", file.name, err)
		}
		tmpPaths[i] = tmp
	}
	for i, file := range files {
		if err := os.Rename(tmpPaths[i], filepath.Join(dir, file.name)); err != nil {
			return fmt.Errorf("commit %s: %w", file.name, err)
		}
	}
	return nil
}

// LoadArtifacts reads the three artifact files from dir and verifies that
// they belong together: the classifier's width must equal the vectorizer
// width plus the numeric feature count.
func LoadArtifacts(dir string) (*ModelArtifacts, error) {
	vectorizer := &TFIDFVectorizer{}
	if err := vectorizer.Load(filepath.Join(dir, VectorizerFile)); err != nil {
		return nil, fmt.Errorf("load vectorizer: %w", err)
	}
	scaler := &StandardScaler{}
	if err := scaler.Load(filepath.Join(dir, ScalerFile)); err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}
	classifier := &LogisticRegression{}
	if err := classifier.Load(filepath.Join(dir, ClassifierFile)); err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}

	if len(scaler.Means) != NumericFeatureCount {
		return nil, fmt.Errorf("scaler fitted for %d columns, want %d", len(scaler.Means), NumericFeatureCount)
	}
	want := vectorizer.Width() + NumericFeatureCount
	if len(classifier.Weights) != want {
		return nil, fmt.Errorf("classifier width %d does not match vectorizer+numeric width %d", len(classifier.Weights), want)
	}

	return &ModelArtifacts{
		Vectorizer: vectorizer,
		Scaler:     scaler,
		Classifier: classifier,
	}, nil
}
