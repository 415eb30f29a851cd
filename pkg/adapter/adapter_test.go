package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMockAdapterScriptedResponses(t *testing.T) {
	mock := NewMockAdapter()
	mock.SetResponse("m1", "scripted")
	mock.SetError("m2", errors.New("boom"))

	resp, err := mock.Generate(context.Background(), "m1", "prompt", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "scripted" {
		t.Fatalf("unexpected text: %s", resp.Text)
	}

	if _, err := mock.Generate(context.Background(), "m2", "prompt", Options{}); err == nil {
		t.Fatal("expected scripted error")
	}

	resp, err = mock.Generate(context.Background(), "m3", "prompt", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Text, "prompt") {
		t.Fatalf("default response should echo the prompt: %s", resp.Text)
	}

	calls := mock.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 recorded calls, got %d", len(calls))
	}
	if calls[0].Model != "m1" || calls[1].Model != "m2" || calls[2].Model != "m3" {
		t.Fatalf("call order not preserved: %+v", calls)
	}
}

func TestConstructorsRequireAPIKey(t *testing.T) {
	if _, err := NewAnthropicAdapter(""); err == nil {
		t.Fatal("expected error for empty anthropic key")
	}
	if _, err := NewOpenAIAdapter(""); err == nil {
		t.Fatal("expected error for empty openai key")
	}
	if _, err := NewGoogleAdapter(""); err == nil {
		t.Fatal("expected error for empty google key")
	}
}

func TestSystemWithFormatHint(t *testing.T) {
	if got := systemWithFormatHint(Options{System: "be terse"}); got != "be terse" {
		t.Fatalf("non-json format must not alter the system prompt: %q", got)
	}

	got := systemWithFormatHint(Options{OutputFormat: "json"})
	if !strings.Contains(got, "JSON") {
		t.Fatalf("expected JSON hint, got %q", got)
	}

	got = systemWithFormatHint(Options{System: "be terse", OutputFormat: "json"})
	if !strings.Contains(got, "be terse") || !strings.Contains(got, "JSON") {
		t.Fatalf("expected system prompt plus hint, got %q", got)
	}
}
