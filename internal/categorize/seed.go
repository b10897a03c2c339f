package categorize

import "time"

// seedTime stamps the built-in rules older than anything user-created,
// so ties on priority resolve toward the defaults.
var seedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultRules is the rule set a fresh installation starts with. Users
// extend or override it through the rule surface; the defaults stay at
// mid priorities so user rules can slot in on either side.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "python-keyword", Type: RuleKeyword, Pattern: "python", Category: "programming", Subcategory: "python", ConfidenceBoost: 0.1, Priority: 5, CreatedAt: seedTime},
		{Name: "go-keyword", Type: RuleKeyword, Pattern: "golang", Category: "programming", Subcategory: "go", ConfidenceBoost: 0.1, Priority: 5, CreatedAt: seedTime},
		{Name: "javascript-keyword", Type: RuleKeyword, Pattern: "javascript", Category: "programming", Subcategory: "javascript", ConfidenceBoost: 0.1, Priority: 5, CreatedAt: seedTime},
		{Name: "rust-keyword", Type: RuleKeyword, Pattern: "rust", Category: "programming", Subcategory: "rust", ConfidenceBoost: 0.05, Priority: 6, CreatedAt: seedTime},
		{Name: "function-signature", Type: RuleRegex, Pattern: `(?i)\b(func|function|def)\s+\w+\s*\(`, Category: "programming", Subcategory: "code", ConfidenceBoost: 0.15, Priority: 4, CreatedAt: seedTime},
		{Name: "code-structure", Type: RuleStructure, Pattern: "code-block", Category: "programming", Subcategory: "code", ConfidenceBoost: 0.2, Priority: 3, CreatedAt: seedTime},
		{Name: "definition-structure", Type: RuleStructure, Pattern: "definition", Category: "reference", Subcategory: "glossary", ConfidenceBoost: 0.15, Priority: 4, CreatedAt: seedTime},
		{Name: "web-cluster", Type: RuleSemantic, Pattern: "web-development", Category: "web-development", ConfidenceBoost: 0.1, Priority: 7, CreatedAt: seedTime},
		{Name: "data-cluster", Type: RuleSemantic, Pattern: "data-science", Category: "data-science", ConfidenceBoost: 0.1, Priority: 7, CreatedAt: seedTime},
		{Name: "database-cluster", Type: RuleSemantic, Pattern: "databases", Category: "databases", ConfidenceBoost: 0.1, Priority: 7, CreatedAt: seedTime},
		{Name: "devops-cluster", Type: RuleSemantic, Pattern: "devops", Category: "devops", ConfidenceBoost: 0.1, Priority: 7, CreatedAt: seedTime},
		{Name: "security-cluster", Type: RuleSemantic, Pattern: "security", Category: "security", ConfidenceBoost: 0.1, Priority: 7, CreatedAt: seedTime},
	}
}
