package batch

import (
	"strings"
	"testing"
)

func TestMapOpenAIStatus(t *testing.T) {
	tests := []struct {
		status string
		want   PollStatus
	}{
		{"completed", StatusCompleted},
		{"Completed", StatusCompleted},
		{"failed", StatusFailed},
		{"expired", StatusFailed},
		{"cancelling", StatusFailed},
		{"cancelled", StatusFailed},
		{"validating", StatusPending},
		{"in_progress", StatusPending},
		{"finalizing", StatusPending},
		{"", StatusPending},
	}
	for _, tt := range tests {
		if got := mapOpenAIStatus(tt.status); got != tt.want {
			t.Errorf("mapOpenAIStatus(%q) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestParseOpenAIResults(t *testing.T) {
	raw := strings.Join([]string{
		`{"custom_id":"1","response":{"status_code":200,"body":{"choices":[{"message":{"content":"B"}}],"usage":{"prompt_tokens":12,"completion_tokens":1}}}}`,
		``,
		`{"custom_id":"2","error":{"code":"server_error","message":"boom"}}`,
		`{"custom_id":"3","response":{"status_code":429,"body":{}}}`,
	}, "\n")

	items, err := parseOpenAIResults(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parseOpenAIResults: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("parsed %d items, want 3", len(items))
	}

	if items[0].Status != ItemSuccess || items[0].Response != "B" {
		t.Errorf("item 1 = %+v", items[0])
	}
	if items[0].Usage == nil || items[0].Usage.PromptTokens != 12 || items[0].Usage.CompletionTokens != 1 {
		t.Errorf("item 1 usage = %+v", items[0].Usage)
	}

	for _, item := range items[1:] {
		if item.Status == ItemSuccess {
			t.Errorf("item %s parsed as success", item.CustomID)
		}
		if item.Usage != nil {
			t.Errorf("item %s has usage %+v, want nil", item.CustomID, item.Usage)
		}
	}
}

func TestParseOpenAIResults_BadLine(t *testing.T) {
	if _, err := parseOpenAIResults(strings.NewReader("not json\n")); err == nil {
		t.Fatal("expected parse error")
	}
}
