package benchmark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GSM8K ships as JSONL with question text and a worked solution ending
// in "#### <number>". The full solution is kept as the reference answer;
// grading extracts the numeric suffix.
type GSM8KDataset struct {
	Options
}

const gsm8kQueryTemplate = "Question: %s\nLet's solve this step by step, with \"#### answer\" in numeric format at the end:"

type gsm8kRow struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (d *GSM8KDataset) Name() string { return "gsm8k" }

func (d *GSM8KDataset) Description() string {
	return "GSM8K grade-school math word problems"
}

func (d *GSM8KDataset) Load(ctx context.Context) ([]Question, error) {
	if ctx == nil {
		return nil, errors.New("gsm8k: nil context")
	}

	path := filepath.Join(d.dataDir(), "gsm8k.jsonl")
	rows, err := readJSONL[gsm8kRow](ctx, path)
	if err != nil {
		if os.IsNotExist(err) {
			return takeFirstN(gsm8kSample(), d.SampleSize), nil
		}
		return nil, fmt.Errorf("gsm8k: load %q: %w", path, err)
	}

	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		question := strings.TrimSpace(row.Question)
		answer := strings.TrimSpace(row.Answer)
		if question == "" || answer == "" {
			continue
		}
		out = append(out, Question{
			Category:      "math",
			Query:         fmt.Sprintf(gsm8kQueryTemplate, question),
			CorrectAnswer: answer,
		})
	}

	out = takeFirstN(out, d.SampleSize)
	if len(out) == 0 {
		return takeFirstN(gsm8kSample(), d.SampleSize), nil
	}
	return out, nil
}

func gsm8kSample() []Question {
	rows := []gsm8kRow{
		{
			Question: "If you have 3 apples and buy 2 more, how many apples do you have?",
			Answer:   "3 + 2 = 5\n#### 5",
		},
		{
			Question: "A box has 12 candies. You eat 5. How many are left?",
			Answer:   "12 - 5 = 7\n#### 7",
		},
		{
			Question: "John has $10 and buys 3 items that each cost $2. How much money does he have left?",
			Answer:   "10 - 3 * 2 = 4\n#### 4",
		},
	}

	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		out = append(out, Question{
			Category:      "math",
			Query:         fmt.Sprintf(gsm8kQueryTemplate, row.Question),
			CorrectAnswer: row.Answer,
		})
	}
	return out
}
