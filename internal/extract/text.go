package extract

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Sentence is a page sentence that overlaps a statement
type Sentence struct {
	Text    string
	Index   int     // Position in the page
	Overlap float64 // Fraction of statement terms present in the sentence
	Negated bool    // Carries a negation cue the statement does not
}

// SentenceMatcher picks the page sentences that talk about a statement
type SentenceMatcher struct {
	MinOverlap float64
	Limit      int
}

// NewSentenceMatcher creates a matcher with default thresholds
func NewSentenceMatcher() *SentenceMatcher {
	return &SentenceMatcher{MinOverlap: 0.5, Limit: 5}
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "have": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "this": true, "to": true, "was": true,
	"were": true, "will": true, "with": true,
}

var negationCues = []string{"not", "no", "never", "false", "denied", "incorrect", "myth", "untrue"}

// Match returns the best matching sentences of htmlContent, highest overlap first
func (m *SentenceMatcher) Match(htmlContent, statement string) ([]Sentence, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	want := termSet(statement)
	if len(want) == 0 {
		return nil, nil
	}
	statementNegated := hasNegation(want)

	seen := make(map[string]bool)
	var matches []Sentence
	for i, sentence := range splitSentences(extractVisibleText(doc)) {
		key := strings.ToLower(sentence)
		if seen[key] {
			continue
		}
		seen[key] = true

		have := termSet(sentence)
		shared := 0
		for term := range want {
			if have[term] {
				shared++
			}
		}
		overlap := float64(shared) / float64(len(want))
		if overlap < m.MinOverlap {
			continue
		}
		matches = append(matches, Sentence{
			Text:    sentence,
			Index:   i,
			Overlap: overlap,
			Negated: hasNegation(have) != statementNegated,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Overlap > matches[j].Overlap
	})
	if m.Limit > 0 && len(matches) > m.Limit {
		matches = matches[:m.Limit]
	}
	return matches, nil
}

// Terms returns the lowercased content words of text. Thousands separators
// are dropped so "30,000" and "30000" match.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != ',' && r != '%'
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,")
		f = strings.ReplaceAll(f, ",", "")
		if f == "" || stopwords[f] {
			continue
		}
		if len([]rune(f)) < 2 && !unicode.IsDigit([]rune(f)[0]) {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

func termSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Terms(text) {
		set[t] = true
	}
	for _, cue := range negationCues {
		if containsWord(text, cue) {
			set[cue] = true
		}
	}
	return set
}

func hasNegation(terms map[string]bool) bool {
	for _, cue := range negationCues {
		if terms[cue] {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}) {
		if f == word || (word == "not" && strings.HasSuffix(f, "n't")) {
			return true
		}
	}
	return false
}

// extractVisibleText extracts text nodes from HTML, skipping scripts and styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "footer":
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}

// splitSentences splits text on terminators followed by whitespace.
// Fragments shorter than 20 or longer than 500 bytes are dropped.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")

	var sentences []string
	keep := func(s string) {
		s = strings.TrimSpace(s)
		if len(s) >= 20 && len(s) <= 500 {
			sentences = append(sentences, s)
		}
	}

	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && text[i+1] == ' ' {
				keep(text[start : i+1])
				start = i + 1
			}
		}
	}
	if start < len(text) {
		keep(text[start:])
	}
	return sentences
}

