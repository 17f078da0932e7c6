package structured

import (
	"errors"
	"testing"

	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

func TestParseKnowledgePointsRoundTrip(t *testing.T) {
	raw := `[{"content":"a","summary":"b","source":"uploaded_file"}]`
	points, dropped, err := ParseKnowledgePoints(raw, "document", "handbook.pdf")
	if err != nil {
		t.Fatalf("ParseKnowledgePoints: %v", err)
	}
	if len(points) != 1 || dropped != 0 {
		t.Fatalf("want 1 point 0 dropped, got %d/%d", len(points), dropped)
	}
	p := points[0]
	if p.Content != "a" || p.Summary != "b" || p.Source != "uploaded_file" {
		t.Fatalf("unexpected point: %+v", p)
	}
	if p.SourceType != "document" || p.SourceIdentifier != "handbook.pdf" {
		t.Fatalf("run source fields not applied: %+v", p)
	}
	if p.Category != nil {
		t.Fatalf("category should be absent, got %v", *p.Category)
	}
}

func TestParseSingleObjectIsWrapped(t *testing.T) {
	points, _, err := ParseKnowledgePoints(`{"content":"a","summary":"b"}`, "text", "x")
	if err != nil {
		t.Fatalf("single object should parse: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("want 1 point got %d", len(points))
	}
}

func TestParseTrailingCommaRepaired(t *testing.T) {
	points, _, err := ParseKnowledgePoints(`[{"content":"a","summary":"b"},]`, "text", "x")
	if err != nil {
		t.Fatalf("trailing comma should be repaired: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("want 1 point got %d", len(points))
	}
}

func TestParseDropsIncompleteCandidates(t *testing.T) {
	raw := `[{"summary":"only summary"},{"content":"only content"},{"content":"c","summary":"s"}]`
	points, dropped, err := ParseKnowledgePoints(raw, "text", "x")
	if err != nil {
		t.Fatalf("ParseKnowledgePoints: %v", err)
	}
	if len(points) != 1 || dropped != 2 {
		t.Fatalf("want 1 kept 2 dropped, got %d/%d", len(points), dropped)
	}
	if points[0].Content != "c" {
		t.Fatalf("wrong survivor: %+v", points[0])
	}
}

func TestParseEmptyArrayIsNotAnError(t *testing.T) {
	points, dropped, err := ParseKnowledgePoints(`[]`, "text", "x")
	if err != nil || len(points) != 0 || dropped != 0 {
		t.Fatalf("want empty result, got %v %d %v", points, dropped, err)
	}
}

func TestParseKeywordsAndCategory(t *testing.T) {
	raw := `[{"content":"c","summary":"s","category":"Product","keywords":"pricing, plans ,pricing"},
	         {"content":"c2","summary":"s2","category":"bogus","keywords":["a","b"]}]`
	points, _, err := ParseKnowledgePoints(raw, "text", "x")
	if err != nil {
		t.Fatalf("ParseKnowledgePoints: %v", err)
	}
	if points[0].Category == nil || string(*points[0].Category) != "product" {
		t.Fatalf("category not parsed: %+v", points[0].Category)
	}
	if len(points[0].Keywords) != 2 || points[0].Keywords[1] != "plans" {
		t.Fatalf("comma keywords not split/deduped: %v", points[0].Keywords)
	}
	if points[1].Category != nil {
		t.Fatalf("invalid category should be absent")
	}
	if len(points[1].Keywords) != 2 {
		t.Fatalf("array keywords lost: %v", points[1].Keywords)
	}
}

func TestRepairProseFencesAndQuotes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"leading prose", "Sure! Here are the points:\n[{\"content\":\"a\",\"summary\":\"b\"}]\nHope that helps."},
		{"code fence", "```json\n[{\"content\":\"a\",\"summary\":\"b\"}]\n```"},
		{"single quotes", "[{'content':'a','summary':'b'}]"},
		{"single quotes with apostrophe", "[{'content':'it's a','summary':'b'}]"},
	}
	for _, tc := range cases {
		points, _, err := ParseKnowledgePoints(tc.raw, "text", "x")
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(points) != 1 || points[0].Summary != "b" {
			t.Fatalf("%s: unexpected points %+v", tc.name, points)
		}
	}
}

func TestRepairLeavesApostrophesInDoubleQuotes(t *testing.T) {
	got := normalizeQuotes(`{"content":"don't stop"}`)
	if got != `{"content":"don't stop"}` {
		t.Fatalf("apostrophe rewritten: %s", got)
	}
}

func TestDropTrailingCommasKeepsStrings(t *testing.T) {
	got := dropTrailingCommas(`{"a":"x, ]","b":[1,2,],}`)
	want := `{"a":"x, ]","b":[1,2]}`
	if got != want {
		t.Fatalf("want %s got %s", want, got)
	}
}

func TestUnrepairableIsMalformed(t *testing.T) {
	_, _, err := ParseKnowledgePoints("I could not find any knowledge points.", "text", "x")
	if !errors.Is(err, perrors.ErrMalformedOutput) {
		t.Fatalf("want ErrMalformedOutput got %v", err)
	}
	if perrors.Classify(err) != perrors.Fatal {
		t.Fatalf("malformed output must not be retried")
	}
}

func TestParseIdeasWrappedObject(t *testing.T) {
	ideas, err := ParseIdeas(`{"ideas":[{"title":"A","description":"d","keywords":["x"]},{"title":"a"},{"description":"no title"}]}`)
	if err != nil {
		t.Fatalf("ParseIdeas: %v", err)
	}
	if len(ideas) != 1 || ideas[0].Title != "A" {
		t.Fatalf("unexpected ideas: %+v", ideas)
	}
}

func TestParseReview(t *testing.T) {
	r, err := ParseReview("```json\n{\"title\":\"T\",\"body\":\"B\",\"tags\":\"go, queues\"}\n```")
	if err != nil {
		t.Fatalf("ParseReview: %v", err)
	}
	if r.Title != "T" || r.Body != "B" || len(r.Tags) != 2 {
		t.Fatalf("unexpected review: %+v", r)
	}
	if _, err := ParseReview(`{"title":"T"}`); !errors.Is(err, perrors.ErrMalformedOutput) {
		t.Fatalf("missing body should be malformed, got %v", err)
	}
}
