// Package payload holds the append-only context carried between stages.
package payload

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Reserved keys written by the orchestrator.
const (
	KeyPipelineID   = "pipelineId"
	KeyPipelineType = "pipelineType"
	KeyRoute        = "route"
)

// Payload is a stage's input. Treat it as immutable: Advance returns a new
// value instead of modifying its receiver.
type Payload map[string]any

// Fields is what a stage produces.
type Fields map[string]any

// Advance merges produced into current. The result's key set is the union of
// both; on a collision the produced value wins. Neither input is modified.
func Advance(current Payload, produced Fields) Payload {
	next := make(Payload, len(current)+len(produced))
	for k, v := range current {
		next[k] = v
	}
	for k, v := range produced {
		next[k] = v
	}
	return next
}

func Decode(raw []byte) (Payload, error) {
	p := Payload{}
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Has reports whether key is present with a non-nil value. An empty string
// or list is present: a stage may legitimately produce nothing.
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// Missing returns the required keys p lacks, sorted.
func (p Payload) Missing(required []string) []string {
	var out []string
	for _, k := range required {
		if !p.Has(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func (p Payload) UUID(key string) (uuid.UUID, error) {
	s := p.String(key)
	if s == "" {
		return uuid.Nil, fmt.Errorf("missing %s", key)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}

func (p Payload) Int(key string, def int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

func (p Payload) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, el := range v {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Route is the stage sequence resolved when the run was triggered.
func (p Payload) Route() []string {
	return p.Strings(KeyRoute)
}

// Into re-decodes the value under key into dst. Values produced in-process
// are Go structs; after a round trip through the store they are generic JSON.
// Into handles both.
func (p Payload) Into(key string, dst any) error {
	v, ok := p[key]
	if !ok {
		return fmt.Errorf("missing %s", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
