package benchmark

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// MMLU ships as one headerless CSV per subject with columns
// question, A, B, C, D, answer.
type MMLUDataset struct {
	Options
}

const mmluQueryTemplate = "Question: %s\nOptions: A. %s, B. %s, C. %s, D. %s\nAnswer with just the letter of the correct option (A, B, C, or D)."

func (d *MMLUDataset) Name() string { return "mmlu" }

func (d *MMLUDataset) Description() string {
	return "MMLU (Massive Multitask Language Understanding) multiple-choice benchmark"
}

func (d *MMLUDataset) Load(ctx context.Context) ([]Question, error) {
	if ctx == nil {
		return nil, errors.New("mmlu: nil context")
	}

	dir := filepath.Join(d.dataDir(), "mmlu")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return takeFirstN(mmluSample(), d.SampleSize), nil
		}
		return nil, fmt.Errorf("mmlu: read %q: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	var out []Question
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		qs, err := d.loadSubject(p)
		if err != nil {
			return nil, err
		}
		out = append(out, takeFirstN(qs, d.SampleSize)...)
	}

	if len(out) == 0 {
		return takeFirstN(mmluSample(), d.SampleSize), nil
	}
	return out, nil
}

func (d *MMLUDataset) loadSubject(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmlu: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("mmlu: parse %q: %w", path, err)
	}

	category := subjectFromFilename(path)
	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		question := strings.TrimSpace(row[0])
		answer, err := answerLetter(strings.TrimSpace(row[5]))
		if question == "" || err != nil {
			continue
		}
		out = append(out, Question{
			Category:      category,
			Query:         fmt.Sprintf(mmluQueryTemplate, question, row[1], row[2], row[3], row[4]),
			CorrectAnswer: answer,
		})
	}
	return out, nil
}

// answerLetter normalizes a reference answer to a single letter A-D. The
// published data uses letters, some mirrors use 0-based choice indexes.
func answerLetter(s string) (string, error) {
	if len(s) == 1 && s[0] >= 'a' && s[0] <= 'd' {
		return strings.ToUpper(s), nil
	}
	if len(s) == 1 && s[0] >= 'A' && s[0] <= 'D' {
		return s, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 3 {
		return string(rune('A' + n)), nil
	}
	return "", fmt.Errorf("mmlu: unsupported answer %q", s)
}

func subjectFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.TrimSuffix(name, "_test")
	name = strings.TrimSuffix(name, "_val")
	return strings.TrimSpace(name)
}

// mmluSample keeps prepare usable without the published data files.
func mmluSample() []Question {
	rows := [][6]string{
		{"Which planet is known as the Red Planet?", "Earth", "Mars", "Jupiter", "Venus", "B"},
		{"What is 7 * 6?", "36", "40", "42", "48", "C"},
		{"Water boils at what temperature at sea level (Celsius)?", "50", "75", "100", "125", "C"},
	}

	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		out = append(out, Question{
			Category:      "sample",
			Query:         fmt.Sprintf(mmluQueryTemplate, row[0], row[1], row[2], row[3], row[4]),
			CorrectAnswer: row[5],
		})
	}
	return out
}
