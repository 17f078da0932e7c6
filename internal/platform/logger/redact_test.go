package logger

import (
	"strings"
	"testing"
)

func TestScrubRedactsSecretsAndHashesIdentifiers(t *testing.T) {
	got := scrub([]interface{}{
		"openai_api_key", "sk-abcdefghijklmnopqrstuvwxyz",
		"user_id", "7d3c9f5e",
		"stage", "knowledge_extraction",
	})
	if len(got) != 6 {
		t.Fatalf("expected 6 kv entries, got %d", len(got))
	}
	if got[1] != redacted {
		t.Fatalf("api key not redacted: %v", got[1])
	}
	hashed, _ := got[3].(string)
	if !strings.HasPrefix(hashed, "hash:") || strings.Contains(hashed, "7d3c9f5e") {
		t.Fatalf("user_id not hashed: %q", hashed)
	}
	if got[5] != "knowledge_extraction" {
		t.Fatalf("plain value changed: %v", got[5])
	}
}

func TestScrubKeepsDanglingKey(t *testing.T) {
	got := scrub([]interface{}{"stage", "x", "orphan"})
	if len(got) != 3 || got[2] != "orphan" {
		t.Fatalf("unexpected scrub output: %#v", got)
	}
}

func TestScrubNestedMap(t *testing.T) {
	got := scrub([]interface{}{"payload", map[string]interface{}{"password": "hunter2", "title": "ok"}})
	m, ok := got[1].(map[string]interface{})
	if !ok {
		t.Fatalf("expected map, got %T", got[1])
	}
	if m["password"] != redacted || m["title"] != "ok" {
		t.Fatalf("unexpected nested scrub: %#v", m)
	}
}
