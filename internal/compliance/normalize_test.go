package compliance

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Empty", "", ""},
		{"CollapseSeparators", "  Hello,   WORLD!! ", "hello world"},
		{"Hyphen", "Opt-In", "opt in"},
		{"FullWidth", "ＤＳＡＲ", "dsar"},
		{"Digits", "within 72-hours.", "within 72 hours"},
		{"Punctuation", "...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize(tt.in).text; got != tt.want {
				t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFindTokenBoundaries(t *testing.T) {
	doc := normalize("We never preview data, but we review it.")

	if _, _, ok := doc.find("view"); ok {
		t.Error("Expected no match inside a longer word")
	}
	start, end, ok := doc.find("review")
	if !ok {
		t.Fatal("Expected review to match")
	}
	span := doc.span(start, end)
	if got := "We never preview data, but we review it."[span.Start:span.End]; got != "review" {
		t.Errorf("Expected span to cover review, got %q", got)
	}
}

func TestEarliestPatternWins(t *testing.T) {
	compiled := []compiledIndicator{{
		patterns: []compiledPattern{
			{raw: "opt out", normalized: normalizePattern("opt out")},
			{raw: "withdraw consent", normalized: normalizePattern("withdraw consent")},
		},
	}}

	results := matchIndicators("You may Withdraw Consent or opt-out at any time.", compiled)
	if len(results) != 1 || !results[0].Found {
		t.Fatalf("Expected a single found result, got %+v", results)
	}
	if results[0].Pattern != "withdraw consent" {
		t.Errorf("Expected the earliest occurrence to win, got %q", results[0].Pattern)
	}
	if results[0].Span.Start != 8 {
		t.Errorf("Expected span to start at byte 8, got %d", results[0].Span.Start)
	}
}
