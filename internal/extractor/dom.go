package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

/*
Responsibilities
- Parse documents (HTML primarily, markdown and plain text as well)
- Isolate the main content, removing site chrome and noise
- Enumerate candidate knowledge spans with their structural role
- Discover outbound links
- Estimate language and complexity as metadata

Extraction Strategy
- Priority order:
	- Semantic containers (main, article, [role="main"])
	- Heuristic fallback (body after explicit chrome removal)
Removal Rules
- Strip:
	- Scripts, styles, comments
	- Navigation menus
	- Headers and footers
	- Sidebars
	- Cookie banners

Only content relevant to the document body may pass through.
*/

type Extractor interface {
	Extract(sourceUrl url.URL, body []byte, contentType string) (ExtractionResult, failure.ClassifiedError)
}

type DomExtractor struct {
	log zerolog.Logger
}

func NewDomExtractor(log zerolog.Logger) *DomExtractor {
	return &DomExtractor{log: log}
}

func (d *DomExtractor) Extract(
	sourceUrl url.URL,
	body []byte,
	contentType string,
) (ExtractionResult, failure.ClassifiedError) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "markdown"):
		return d.extractMarkdown(body)
	case strings.Contains(ct, "text/plain"):
		return d.extractPlainText(body)
	default:
		return d.extractHTML(sourceUrl, body)
	}
}

func (d *DomExtractor) extractHTML(sourceUrl url.URL, body []byte) (ExtractionResult, failure.ClassifiedError) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ExtractionResult{}, &ExtractionError{
			Message:   fmt.Sprintf("failed to parse HTML: %v", err),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	if !isValidHTML(doc) {
		return ExtractionResult{}, &ExtractionError{
			Message:   "input is not a valid HTML document",
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	gq := goquery.NewDocumentFromNode(doc)
	title := strings.TrimSpace(gq.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(gq.Find("h1").First().Text())
	}

	// Strip noise in place before any text is read.
	removeNonContent(doc)

	contentNode := findContentNode(gq, doc)
	if contentNode == nil {
		return ExtractionResult{}, &ExtractionError{
			Message:   "no meaningful content container found",
			Retryable: false,
			Cause:     ErrCauseNoContent,
		}
	}

	content := goquery.NewDocumentFromNode(contentNode)
	candidates := enumerateCandidates(content)
	links := discoverLinks(gq, sourceUrl)

	fullText := collectText(contentNode)
	language, certainty := DetectLanguage(fullText)

	markdown, mdErr := renderMarkdown(contentNode)
	if mdErr != nil {
		// Markdown rendition is archival; a failure degrades, not aborts.
		d.log.Debug().Str("url", sourceUrl.String()).Err(mdErr).Msg("markdown rendition failed")
	}

	return ExtractionResult{
		Title:             title,
		Language:          language,
		LanguageCertainty: certainty,
		Complexity:        EstimateComplexity(fullText),
		Candidates:        candidates,
		Links:             links,
		Markdown:          markdown,
	}, nil
}

func (d *DomExtractor) extractPlainText(body []byte) (ExtractionResult, failure.ClassifiedError) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ExtractionResult{}, &ExtractionError{
			Message:   "empty plain-text document",
			Retryable: false,
			Cause:     ErrCauseNoContent,
		}
	}

	var candidates []Candidate
	position := 0
	for _, para := range strings.Split(text, "\n\n") {
		para = normalizeWhitespace(para)
		if len(para) < minCandidateChars {
			continue
		}
		candidates = append(candidates, Candidate{
			RawText:  para,
			Context:  clampContext(text),
			Role:     RoleParagraph,
			Position: position,
		})
		position++
	}

	language, certainty := DetectLanguage(text)
	return ExtractionResult{
		Language:          language,
		LanguageCertainty: certainty,
		Complexity:        EstimateComplexity(text),
		Candidates:        candidates,
	}, nil
}

// isValidHTML checks if the parsed document has a proper HTML structure
func isValidHTML(doc *html.Node) bool {
	var findHTML func(*html.Node) bool
	findHTML = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "html" {
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if findHTML(c) {
				return true
			}
		}
		return false
	}
	return findHTML(doc)
}

// findContentNode applies the layered content heuristics:
// semantic containers first, then the body stripped of chrome.
func findContentNode(gq *goquery.Document, doc *html.Node) *html.Node {
	for _, selector := range []string{"main", "article", "[role='main']"} {
		if sel := gq.Find(selector).First(); sel.Length() > 0 {
			if node := sel.Nodes[0]; hasSubstance(node) {
				return node
			}
		}
	}

	if body := gq.Find("body").First(); body.Length() > 0 {
		if node := body.Nodes[0]; hasSubstance(node) {
			return node
		}
	}
	return nil
}

// chromeElementNames contains element names that are always chrome
var chromeElementNames = map[string]bool{
	"nav":    true,
	"header": true,
	"footer": true,
	"aside":  true,
	"script": true,
	"style":  true,
	"iframe": true,
}

// chromeAttributeKeywords contains keywords that indicate chrome when found in class/id
var chromeAttributeKeywords = []string{
	"nav", "sidebar", "menu", "breadcrumb",
	"footer", "header", "cookie", "consent",
	"banner", "advert",
}

// removeNonContent strips scripts, styles, comments, chrome elements,
// and elements whose class or id names mark them as chrome.
func removeNonContent(root *html.Node) {
	var nodesToRemove []*html.Node

	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n == nil {
			return
		}
		switch {
		case n.Type == html.CommentNode:
			nodesToRemove = append(nodesToRemove, n)
		case n.Type == html.ElementNode && chromeElementNames[n.Data]:
			nodesToRemove = append(nodesToRemove, n)
		case n.Type == html.ElementNode && hasChromeAttribute(n):
			nodesToRemove = append(nodesToRemove, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(root)

	for _, node := range nodesToRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// hasChromeAttribute checks if an element has class or id containing chrome keywords
func hasChromeAttribute(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" || attr.Key == "id" {
			lowerValue := strings.ToLower(attr.Val)
			for _, keyword := range chromeAttributeKeywords {
				if strings.Contains(lowerValue, keyword) {
					return true
				}
			}
		}
	}
	return false
}

// hasSubstance checks if a node contains meaningful content: substantive
// text, headings, paragraphs, or code blocks. It rejects nodes holding
// only navigation links.
func hasSubstance(node *html.Node) bool {
	if node == nil {
		return false
	}

	var stats struct {
		nonWhitespace  int
		textLength     int
		headings       int
		paragraphs     int
		codeBlocks     int
		listItems      int
		links          int
		linkTextLength int
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}

		switch n.Type {
		case html.TextNode:
			text := n.Data
			stats.textLength += len(text)
			for _, r := range text {
				if !isSpace(r) {
					stats.nonWhitespace++
				}
			}

		case html.ElementNode:
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				stats.headings++
			case "p":
				stats.paragraphs++
			case "pre", "code":
				stats.codeBlocks++
			case "li", "dt", "blockquote":
				stats.listItems++
			case "a":
				stats.links++
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.TextNode {
						stats.linkTextLength += len(strings.TrimSpace(c.Data))
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)

	const minNonWhitespace = 20
	const maxLinkDensity = 0.8

	if stats.nonWhitespace < minNonWhitespace {
		return false
	}

	if stats.textLength > 0 {
		linkDensity := float64(stats.linkTextLength) / float64(stats.textLength)
		if linkDensity > maxLinkDensity && stats.links > 2 {
			return false
		}
	}

	return stats.paragraphs > 0 || stats.codeBlocks > 0 ||
		stats.headings > 0 || stats.listItems > 0
}

// collectText concatenates all text under a node, whitespace-normalized.
func collectText(node *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return normalizeWhitespace(b.String())
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// normalizeWhitespace collapses runs of whitespace into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clampContext(s string) string {
	s = normalizeWhitespace(s)
	if len(s) <= contextLimit {
		return s
	}
	return s[:contextLimit]
}
