package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// tutorialHeading marks headings whose lists read as procedure steps.
var tutorialHeading = regexp.MustCompile(`(?i)\b(steps?|how to|tutorial|getting started|installation|setup|guide)\b`)

/*
Candidate enumeration walks the content node in document order and emits
one candidate per knowledge-bearing span:

  - heading + following paragraphs (one candidate per paragraph)
  - list items (ordered lists under a procedure-like heading become
    tutorial steps)
  - fenced/indented code blocks (pre)
  - definition lists (one candidate per dt/dd pair)
  - blockquotes

Each candidate carries its governing heading and a bounded context
string that is stored with the learning bit; classification reads only
the span and its role.
*/
func enumerateCandidates(content *goquery.Document) []Candidate {
	var candidates []Candidate
	position := 0
	currentHeading := ""
	headingIsTutorial := false

	emit := func(raw string, role StructuralRole, context string) {
		raw = normalizeWhitespace(raw)
		if role != RoleCodeBlock && len(raw) < minCandidateChars {
			return
		}
		if role == RoleCodeBlock && strings.TrimSpace(raw) == "" {
			return
		}
		candidates = append(candidates, Candidate{
			RawText:  raw,
			Context:  clampContext(context),
			Role:     role,
			Position: position,
			Heading:  currentHeading,
		})
		position++
	}

	content.Find("h1, h2, h3, h4, h5, h6, p, li, pre, dt, blockquote").
		Each(func(i int, sel *goquery.Selection) {
			switch goquery.NodeName(sel) {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				currentHeading = normalizeWhitespace(sel.Text())
				headingIsTutorial = tutorialHeading.MatchString(currentHeading)

			case "p":
				// Paragraphs inside list items or blockquotes are covered
				// by their containers.
				if sel.ParentsFiltered("li, blockquote").Length() > 0 {
					return
				}
				role := RoleParagraph
				if currentHeading != "" {
					role = RoleHeadingParagraph
				}
				emit(sel.Text(), role, currentHeading+" "+sel.Text())

			case "li":
				// Nested lists emit leaves only.
				if sel.ChildrenFiltered("ul, ol").Length() > 0 {
					return
				}
				role := RoleListItem
				if headingIsTutorial && sel.ParentsFiltered("ol").Length() > 0 {
					role = RoleTutorialStep
				}
				emit(sel.Text(), role, currentHeading+" "+sel.Text())

			case "pre":
				// Keep code verbatim: no whitespace normalization beyond trim.
				code := strings.TrimSpace(sel.Text())
				if code == "" {
					return
				}
				candidates = append(candidates, Candidate{
					RawText:  code,
					Context:  clampContext(currentHeading),
					Role:     RoleCodeBlock,
					Position: position,
					Heading:  currentHeading,
				})
				position++

			case "dt":
				term := normalizeWhitespace(sel.Text())
				definition := normalizeWhitespace(sel.NextFiltered("dd").Text())
				if term == "" || definition == "" {
					return
				}
				emit(term+": "+definition, RoleDefinition, currentHeading+" "+term)

			case "blockquote":
				emit(sel.Text(), RoleBlockquote, currentHeading+" "+sel.Text())
			}
		})

	return candidates
}
