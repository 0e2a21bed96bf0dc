package extract

import (
	"reflect"
	"testing"
)

func TestTerms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"The Dow Jones closed above 30,000.", []string{"dow", "jones", "closed", "above", "30000"}},
		{"Rates rose by 0.75 points", []string{"rates", "rose", "0.75", "points"}},
		{"Inflation hit 9.1% in June", []string{"inflation", "hit", "9.1%", "june"}},
		{"a I 5", []string{"5"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Terms(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Terms(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSentenceMatcher_Match(t *testing.T) {
	page := `
	<html>
	<head><script>var closed = "Dow Jones closed above 30,000";</script></head>
	<body>
		<nav>Dow Jones closed above 30,000 navigation link text.</nav>
		<p>On Tuesday the Dow Jones closed above 30,000 for the first time in history.</p>
		<p>Analysts said the weather was pleasant across the region all week.</p>
		<p>The Dow Jones closed above 30,000 again later that month.</p>
	</body>
	</html>`

	matches, err := NewSentenceMatcher().Match(page, "The Dow Jones closed above 30,000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}
	for _, m := range matches {
		if m.Overlap != 1 {
			t.Errorf("expected full overlap, got %v for %q", m.Overlap, m.Text)
		}
		if m.Negated {
			t.Errorf("unexpected negation for %q", m.Text)
		}
	}
	if matches[0].Index > matches[1].Index {
		t.Error("equal overlaps must keep page order")
	}
}

func TestSentenceMatcher_Negation(t *testing.T) {
	page := `<p>Contrary to rumors, the Federal Reserve did not raise rates by 0.75 points in June.</p>`

	matches, err := NewSentenceMatcher().Match(page, "The Federal Reserve raised rates by 0.75 points")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if !matches[0].Negated {
		t.Error("expected sentence to be marked negated")
	}
}

func TestSentenceMatcher_Limit(t *testing.T) {
	page := `<p>Bitcoin price passed 50,000 dollars today.</p>
	<p>Bitcoin price passed 50,000 dollars last year too.</p>
	<p>Bitcoin price passed 50,000 dollars in several markets.</p>`

	m := &SentenceMatcher{MinOverlap: 0.5, Limit: 2}
	matches, err := m.Match(page, "Bitcoin price passed 50,000 dollars")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected limit of 2, got %d", len(matches))
	}
}

func TestSplitSentences(t *testing.T) {
	text := "Short one. This sentence is long enough to keep! Rates rose 0.75 points in total? tail"
	got := splitSentences(text)
	want := []string{"This sentence is long enough to keep!", "Rates rose 0.75 points in total?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitSentences = %q, want %q", got, want)
	}
}
