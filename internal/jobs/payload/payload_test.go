package payload

import (
	"reflect"
	"testing"
)

func TestAdvanceIsUnionAndNonMutating(t *testing.T) {
	current := Payload{"agentId": "a", "layout": "tutorial"}
	produced := Fields{"draft": "text", "layout": "tutorial"}

	next := Advance(current, produced)

	for k := range current {
		if _, ok := next[k]; !ok {
			t.Fatalf("input key %q dropped", k)
		}
	}
	for k := range produced {
		if _, ok := next[k]; !ok {
			t.Fatalf("produced key %q missing", k)
		}
	}
	if len(next) != 3 {
		t.Fatalf("want 3 keys got %d", len(next))
	}
	if _, ok := current["draft"]; ok {
		t.Fatalf("Advance mutated its input")
	}
}

func TestAdvanceProducedWinsOnCollision(t *testing.T) {
	next := Advance(Payload{"x": 1}, Fields{"x": 2})
	if next["x"] != 2 {
		t.Fatalf("produced value should win, got %v", next["x"])
	}
}

func TestAdvanceAssociative(t *testing.T) {
	p := Payload{"a": 1}
	f1 := Fields{"b": 2}
	f2 := Fields{"c": 3}

	left := Advance(Advance(p, f1), f2)
	merged := Fields{}
	for k, v := range f1 {
		merged[k] = v
	}
	for k, v := range f2 {
		merged[k] = v
	}
	right := Advance(p, merged)
	if !reflect.DeepEqual(left, right) {
		t.Fatalf("not associative: %v vs %v", left, right)
	}
}

func TestMissing(t *testing.T) {
	p := Payload{"agentId": "x", "extractedText": "", "count": 0.0, "outline": nil}
	got := p.Missing([]string{"layout", "agentId", "extractedText", "count", "outline"})
	want := []string{"layout", "outline"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v got %v", want, got)
	}
}

func TestEncodeDecodeKeepsRoute(t *testing.T) {
	p := Payload{KeyRoute: []string{"a", "b"}}
	raw, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(back.Route(), []string{"a", "b"}) {
		t.Fatalf("route lost: %v", back.Route())
	}
}

func TestInto(t *testing.T) {
	type item struct {
		Title string `json:"title"`
	}
	p := Payload{"items": []item{{Title: "x"}}}
	var out []item
	if err := p.Into("items", &out); err != nil {
		t.Fatalf("Into: %v", err)
	}
	if len(out) != 1 || out[0].Title != "x" {
		t.Fatalf("unexpected: %+v", out)
	}
}
