package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// LinkKind classifies an outbound link
type LinkKind string

const (
	LinkCitation LinkKind = "citation"
	LinkExternal LinkKind = "external"
)

// Link is an outbound link of a reference page
type Link struct {
	URL  string
	Host string
	Text string
	Kind LinkKind
}

// Citations returns the off-site citation links of a page, in page order.
// Same-host navigation and plain external links are skipped.
func Citations(htmlContent, sourceURL string) ([]Link, error) {
	links, err := Links(htmlContent, sourceURL)
	if err != nil {
		return nil, err
	}

	var out []Link
	for _, l := range links {
		if l.Kind == LinkCitation {
			out = append(out, l)
		}
	}
	return out, nil
}

// Links returns the distinct off-site http(s) links of a page
func Links(htmlContent, sourceURL string) ([]Link, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(sourceURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []Link

	var walk func(n *html.Node, inCitation bool)
	walk = func(n *html.Node, inCitation bool) {
		if n.Type == html.ElementNode {
			inCitation = inCitation || isCitationContainer(n)

			if n.Data == "a" {
				if l, ok := linkOf(n, baseURL, inCitation); ok && !seen[l.URL] {
					seen[l.URL] = true
					links = append(links, l)
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inCitation)
		}
	}

	walk(doc, false)
	return links, nil
}

func linkOf(n *html.Node, base *url.URL, inCitation bool) (Link, bool) {
	resolved := resolveURL(base, attr(n, "href"))
	if resolved == nil || strings.EqualFold(resolved.Host, base.Host) {
		return Link{}, false
	}

	kind := LinkExternal
	if inCitation || strings.Contains(attr(n, "class"), "external") || strings.Contains(attr(n, "rel"), "cite") {
		kind = LinkCitation
	}

	return Link{
		URL:  resolved.String(),
		Host: resolved.Host,
		Text: strings.TrimSpace(textOf(n)),
		Kind: kind,
	}, true
}

// isCitationContainer matches reference lists and cite elements
func isCitationContainer(n *html.Node) bool {
	if n.Data == "cite" || n.Data == "blockquote" {
		return true
	}
	class := strings.ToLower(attr(n, "class") + " " + attr(n, "id"))
	return strings.Contains(class, "reference") || strings.Contains(class, "citation") || strings.Contains(class, "footnote")
}

// resolveURL resolves href against base, keeping only http(s) targets
func resolveURL(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return nil
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return nil
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil
	}
	resolved.Fragment = ""
	return resolved
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}
