package extractor

import "net/url"

// StructuralRole names where in the document a candidate span came from.
// The role drives the content-type assignment downstream.
type StructuralRole string

const (
	RoleHeadingParagraph StructuralRole = "heading-paragraph"
	RoleParagraph        StructuralRole = "paragraph"
	RoleListItem         StructuralRole = "list-item"
	RoleTutorialStep     StructuralRole = "tutorial-step"
	RoleCodeBlock        StructuralRole = "code-block"
	RoleDefinition       StructuralRole = "definition"
	RoleBlockquote       StructuralRole = "blockquote"
)

// Candidate is one span of text that may become a learning bit.
type Candidate struct {
	// The span itself, whitespace-normalized.
	RawText string
	// Bounded context text, clamped to contextLimit: usually the governing
	// heading followed by the span's own text; a definition gets the heading
	// and its term, a code block the heading alone.
	Context string
	// Where the span sat structurally.
	Role StructuralRole
	// Running index in document order.
	Position int
	// Nearest governing heading, empty at document top.
	Heading string
}

// ExtractionResult carries everything one document yields.
type ExtractionResult struct {
	Title             string
	Language          string
	LanguageCertainty float64
	Complexity        ComplexityBucket
	Candidates        []Candidate
	Links             []url.URL
	// Markdown rendition of the content node, archived with the page.
	Markdown string
}

// ComplexityBucket is the coarse document-level complexity estimate.
type ComplexityBucket string

const (
	ComplexitySimple      ComplexityBucket = "simple"
	ComplexityModerate    ComplexityBucket = "moderate"
	ComplexityComplex     ComplexityBucket = "complex"
	ComplexityVeryComplex ComplexityBucket = "very-complex"
)

// contextLimit bounds the surrounding-context length stored per candidate.
const contextLimit = 300

// minCandidateChars rejects spans too short to stand alone as knowledge.
const minCandidateChars = 20
