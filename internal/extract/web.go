package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
)

// ErrNoEvidence is returned when no reference page mentions the statement
var ErrNoEvidence = errors.New("no reference page matched the statement")

const maxCitationsPerPage = 2

// WebCapability verifies statements against reference pages. Each reference
// is a URL template; a %s verb is replaced with the escaped statement text.
type WebCapability struct {
	fetcher    *Fetcher
	matcher    *SentenceMatcher
	references []string
	logger     *slog.Logger
}

// NewWebCapability creates a web capability
func NewWebCapability(fetcher *Fetcher, references []string, logger *slog.Logger) *WebCapability {
	return &WebCapability{
		fetcher:    fetcher,
		matcher:    NewSentenceMatcher(),
		references: references,
		logger:     logging.Subsystem(logger, logging.SubsystemMiner).With("capability", "web"),
	}
}

type pageMatch struct {
	url       string
	sentences []Sentence
	citations []Link
}

// Verify fetches every reference and judges the statement from the matching
// passages. Supporting passages outvoting negated ones mean true.
func (w *WebCapability) Verify(ctx context.Context, stmt model.Statement) (model.Claim, error) {
	pages := make([]*pageMatch, len(w.references))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range w.references {
		g.Go(func() error {
			page, err := w.visit(gctx, referenceURL(ref, stmt.Text), stmt.Text)
			if err != nil {
				w.logger.Debug("reference skipped", "reference", ref, "error", err)
				return nil
			}
			pages[i] = page
			return nil
		})
	}
	_ = g.Wait()

	var (
		evidence          []model.Evidence
		support, contrary int
		best              float64
		visited           []string
	)
	for _, page := range pages {
		if page == nil || len(page.sentences) == 0 {
			continue
		}
		visited = append(visited, page.url)
		for _, s := range page.sentences {
			evidence = append(evidence, model.Evidence{Source: page.url, Snippet: s.Text})
			if s.Negated {
				contrary++
			} else {
				support++
			}
			best = math.Max(best, s.Overlap)
		}
		for _, c := range page.citations {
			evidence = append(evidence, model.Evidence{Source: c.URL, Snippet: c.Text})
		}
	}

	if support+contrary == 0 {
		return model.Claim{}, ErrNoEvidence
	}

	margin := math.Abs(float64(support-contrary)) / float64(support+contrary)
	explanation := fmt.Sprintf("Found %d passages on %d reference pages that discuss the statement; %d support it and %d contradict it. Closest passage: %q",
		support+contrary, len(visited), support, contrary, evidence[0].Snippet)
	methodology := fmt.Sprintf("Fetched reference pages (%s) honoring robots.txt, ranked page sentences by term overlap with the statement and compared negation cues.",
		strings.Join(visited, ", "))

	return model.Claim{
		IsTrue:      support >= contrary,
		Confidence:  0.5 + 0.45*margin*best,
		Evidence:    evidence,
		Explanation: explanation,
		Methodology: methodology,
	}, nil
}

func (w *WebCapability) visit(ctx context.Context, rawURL, statement string) (*pageMatch, error) {
	page, err := w.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	sentences, err := w.matcher.Match(page.HTML, statement)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", page.FinalURL, err)
	}

	citations, err := Citations(page.HTML, page.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("links %s: %w", page.FinalURL, err)
	}
	if len(citations) > maxCitationsPerPage {
		citations = citations[:maxCitationsPerPage]
	}

	return &pageMatch{url: page.FinalURL, sentences: sentences, citations: citations}, nil
}

func referenceURL(template, statement string) string {
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, url.QueryEscape(statement))
	}
	return template
}
