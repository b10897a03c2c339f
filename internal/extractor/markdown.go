package extractor

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

// renderMarkdown converts the content node into a markdown rendition for
// the page archive. Semantic fidelity over visual fidelity: headings map
// directly, code blocks are preserved verbatim, tables convert to GFM.
func renderMarkdown(contentNode *html.Node) (string, error) {
	if contentNode == nil {
		return "", fmt.Errorf("cannot convert nil HTML node")
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)

	md, err := conv.ConvertNode(contentNode)
	if err != nil {
		return "", err
	}
	return string(md), nil
}

// extractMarkdown handles documents served as text/markdown: the body is
// parsed into an AST and walked into the same candidate model as HTML.
func (d *DomExtractor) extractMarkdown(body []byte) (ExtractionResult, failure.ClassifiedError) {
	p := parser.New()
	doc := markdown.Parse(body, p)
	if doc == nil {
		return ExtractionResult{}, &ExtractionError{
			Message:   "failed to parse markdown document",
			Retryable: false,
			Cause:     ErrCauseUnsupported,
		}
	}

	var candidates []Candidate
	var title string
	position := 0
	currentHeading := ""
	headingIsTutorial := false

	emit := func(raw string, role StructuralRole) {
		raw = normalizeWhitespace(raw)
		if role != RoleCodeBlock && len(raw) < minCandidateChars {
			return
		}
		candidates = append(candidates, Candidate{
			RawText:  raw,
			Context:  clampContext(currentHeading + " " + raw),
			Role:     role,
			Position: position,
			Heading:  currentHeading,
		})
		position++
	}

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Heading:
			text := nodeText(n)
			if title == "" && n.Level == 1 {
				title = text
			}
			currentHeading = text
			headingIsTutorial = tutorialHeading.MatchString(text)

		case *ast.CodeBlock:
			code := strings.TrimSpace(string(n.Literal))
			if code != "" {
				candidates = append(candidates, Candidate{
					RawText:  code,
					Context:  clampContext(currentHeading),
					Role:     RoleCodeBlock,
					Position: position,
					Heading:  currentHeading,
				})
				position++
			}
			return ast.SkipChildren

		case *ast.ListItem:
			role := RoleListItem
			if headingIsTutorial && n.ListFlags&ast.ListTypeOrdered != 0 {
				role = RoleTutorialStep
			}
			emit(nodeText(n), role)
			return ast.SkipChildren

		case *ast.BlockQuote:
			emit(nodeText(n), RoleBlockquote)
			return ast.SkipChildren

		case *ast.Paragraph:
			role := RoleParagraph
			if currentHeading != "" {
				role = RoleHeadingParagraph
			}
			emit(nodeText(n), role)
			return ast.SkipChildren
		}
		return ast.GoToNext
	})

	text := string(body)
	language, certainty := DetectLanguage(text)
	return ExtractionResult{
		Title:             title,
		Language:          language,
		LanguageCertainty: certainty,
		Complexity:        EstimateComplexity(text),
		Candidates:        candidates,
		Markdown:          text,
	}, nil
}

// nodeText concatenates the literal text under a markdown AST node.
func nodeText(node ast.Node) string {
	var b strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if leaf := n.AsLeaf(); leaf != nil {
			b.Write(leaf.Literal)
			b.WriteByte(' ')
		}
		return ast.GoToNext
	})
	return normalizeWhitespace(b.String())
}
