package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// writeRequestArtifact saves one sub-batch's requests as JSONL under
// batch/<session>/<benchmark>/ so a failed submission can be diagnosed by
// hand. Debugging aid only; callers treat failures as non-fatal.
func writeRequestArtifact(dir string, sessionID int64, benchmark, model string, part int, reqs []RequestItem) error {
	if strings.TrimSpace(dir) == "" || len(reqs) == 0 {
		return nil
	}

	name := fmt.Sprintf("%s_batch_requests_%d.jsonl", sanitizeFileName(model), part)
	path := filepath.Join(dir, strconv.FormatInt(sessionID, 10), sanitizeFileName(benchmark), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("batch: create artifact dir: %w", err)
	}

	var sb strings.Builder
	for _, req := range reqs {
		b, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("batch: marshal artifact line: %w", err)
		}
		sb.Write(b)
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("batch: write artifact: %w", err)
	}
	return nil
}

func sanitizeFileName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, string(filepath.Separator), "-")
	if s == "" {
		s = "unknown"
	}
	return s
}
