package benchmark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BBH (BIG-Bench Hard) ships as JSONL with one task input and its target
// per line, tagged with the task name as category.
type BBHDataset struct {
	Options
}

const bbhQueryTemplate = "Q: %s\nA: Let's think step by step, and provide the final answer at the end in format '#### ANSWER':"

type bbhRow struct {
	Category string `json:"category,omitempty"`
	Task     string `json:"task,omitempty"`
	Input    string `json:"input"`
	Target   string `json:"target"`
}

func (d *BBHDataset) Name() string { return "bbh" }

func (d *BBHDataset) Description() string {
	return "BBH (BIG-Bench Hard) multi-step reasoning tasks"
}

func (d *BBHDataset) Load(ctx context.Context) ([]Question, error) {
	if ctx == nil {
		return nil, errors.New("bbh: nil context")
	}

	path := filepath.Join(d.dataDir(), "bbh.jsonl")
	rows, err := readJSONL[bbhRow](ctx, path)
	if err != nil {
		if os.IsNotExist(err) {
			return takeFirstN(bbhSample(), d.SampleSize), nil
		}
		return nil, fmt.Errorf("bbh: load %q: %w", path, err)
	}

	perCategory := make(map[string]int)
	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		input := strings.TrimSpace(row.Input)
		target := strings.TrimSpace(row.Target)
		if input == "" || target == "" {
			continue
		}

		category := strings.TrimSpace(row.Category)
		if category == "" {
			category = strings.TrimSpace(row.Task)
		}
		if category == "" {
			category = "general"
		}

		if d.SampleSize > 0 && perCategory[category] >= d.SampleSize {
			continue
		}
		perCategory[category]++

		out = append(out, Question{
			Category:      category,
			Query:         fmt.Sprintf(bbhQueryTemplate, input),
			CorrectAnswer: target,
		})
	}

	if len(out) == 0 {
		return takeFirstN(bbhSample(), d.SampleSize), nil
	}
	return out, nil
}

func bbhSample() []Question {
	rows := []bbhRow{
		{
			Category: "boolean_expressions",
			Input:    "not ( True ) and ( True ) is",
			Target:   "False",
		},
		{
			Category: "tracking_shuffled_objects",
			Input: "Alice, Bob, and Claire each start with one book and swap twice: " +
				"first Alice and Bob, then Bob and Claire. Who ends up with Alice's book?\n" +
				"Options:\n(A) Alice\n(B) Bob\n(C) Claire",
			Target: "(C)",
		},
		{
			Category: "date_understanding",
			Input: "Today is the first day of 2024. What is the date one week from today?\n" +
				"Options:\n(A) 01/08/2024\n(B) 01/07/2024\n(C) 12/25/2023",
			Target: "(A)",
		},
	}

	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		out = append(out, Question{
			Category:      row.Category,
			Query:         fmt.Sprintf(bbhQueryTemplate, row.Input),
			CorrectAnswer: row.Target,
		})
	}
	return out
}
