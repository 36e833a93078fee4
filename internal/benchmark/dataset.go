package benchmark

import (
	"context"
	"fmt"
	"strings"
)

// DefaultDataDir is where dataset files are looked up unless overridden.
const DefaultDataDir = "data/benchmark"

// Dataset loads a benchmark's raw rows and renders them into prompts
// ready for batch submission.
type Dataset interface {
	Name() string
	Description() string
	Load(ctx context.Context) ([]Question, error)
}

// Question is one rendered prompt with its reference answer. CorrectAnswer
// keeps the raw target text; grading extracts whatever it needs from it.
type Question struct {
	Category      string
	Query         string
	CorrectAnswer string
}

// Options tune how a dataset is loaded.
type Options struct {
	DataDir    string // directory holding dataset files, DefaultDataDir if empty
	SampleSize int    // cap on questions per category, 0 loads everything
}

func (o Options) dataDir() string {
	if dir := strings.TrimSpace(o.DataDir); dir != "" {
		return dir
	}
	return DefaultDataDir
}

// ForName returns the dataset for a benchmark name.
func ForName(name string, opts Options) (Dataset, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mmlu":
		return &MMLUDataset{Options: opts}, nil
	case "gsm8k":
		return &GSM8KDataset{Options: opts}, nil
	case "bbh":
		return &BBHDataset{Options: opts}, nil
	default:
		return nil, fmt.Errorf("benchmark: unknown dataset %q", name)
	}
}

// Names lists the supported benchmark datasets.
func Names() []string {
	return []string{"bbh", "gsm8k", "mmlu"}
}
