package extract

import "testing"

func TestLinks(t *testing.T) {
	page := `
	<html><body>
		<a href="/wiki/Other">internal</a>
		<a href="#cite_note-1">anchor</a>
		<a href="mailto:x@example.com">mail</a>
		<a href="https://news.example.org/story">plain external</a>
		<a href="https://news.example.org/story#top">duplicate</a>
		<ol class="references">
			<li><a href="https://www.federalreserve.gov/newsevents/pressreleases.htm">Press <b>release</b></a></li>
		</ol>
		<a class="external text" href="https://www.bls.gov/cpi/">CPI</a>
	</body></html>`

	links, err := Links(page, "https://en.wikipedia.org/wiki/Inflation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 3 {
		t.Fatalf("expected 3 off-site links, got %d: %+v", len(links), links)
	}

	if links[0].Kind != LinkExternal || links[0].URL != "https://news.example.org/story" {
		t.Errorf("unexpected first link: %+v", links[0])
	}
	if links[1].Kind != LinkCitation || links[1].Text != "Press release" {
		t.Errorf("expected citation from reference list, got %+v", links[1])
	}
	if links[2].Kind != LinkCitation || links[2].Host != "www.bls.gov" {
		t.Errorf("expected external-class citation, got %+v", links[2])
	}

	citations, err := Citations(page, "https://en.wikipedia.org/wiki/Inflation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(citations) != 2 {
		t.Errorf("expected 2 citations, got %d", len(citations))
	}
}

func TestLinks_BadBase(t *testing.T) {
	if _, err := Links("<a href='x'>x</a>", "://bad"); err == nil {
		t.Error("expected error for invalid base URL")
	}
}
