package stream

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNDJSON(t *testing.T) {
	in := strings.NewReader("{\"a\":1}\n{\"a\":2}\n\n{\"a\":3}\n")
	ctx := context.Background()
	result := Collect(ctx, NDJSON[map[string]int](ctx, in, func(err error) {
		t.Errorf("unexpected error: %v", err)
	}))
	if len(result) != 3 || result[2]["a"] != 3 {
		t.Errorf("Expected 3 records, got %v", result)
	}
}

func TestNDJSON_StopsAtGarbage(t *testing.T) {
	in := strings.NewReader("{\"a\":1}\nnot json\n{\"a\":2}\n")
	ctx := context.Background()
	var errs []error
	result := Collect(ctx, NDJSON[json.RawMessage](ctx, in, func(err error) {
		errs = append(errs, err)
	}))
	if len(result) != 1 {
		t.Errorf("Expected 1 record before garbage, got %d", len(result))
	}
	if len(errs) != 1 {
		t.Errorf("Expected 1 error, got %v", errs)
	}
}

func TestNDJSON_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := strings.NewReader(strings.Repeat("{\"a\":1}\n", 100))
	result := Collect(ctx, NDJSON[map[string]int](ctx, in, nil))
	if len(result) != 0 {
		t.Errorf("Expected nothing after cancel, got %d", len(result))
	}
}
