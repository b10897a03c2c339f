package categorize

import "strings"

// clusters maps a cluster name to the keywords that evoke it. Semantic
// rules carry a cluster name as their pattern; a candidate matches when
// any keyword of that cluster appears in its text. No model involved,
// just a curated table.
var clusters = map[string][]string{
	"web-development": {
		"http", "html", "css", "frontend", "backend", "rest", "api",
		"browser", "dom", "javascript", "typescript",
	},
	"data-science": {
		"dataset", "pandas", "numpy", "statistics", "regression",
		"dataframe", "visualization", "machine learning", "model",
	},
	"databases": {
		"sql", "query", "index", "transaction", "schema", "postgres",
		"sqlite", "mongodb", "redis", "migration",
	},
	"devops": {
		"docker", "kubernetes", "container", "deploy", "pipeline",
		"terraform", "ansible", "monitoring", "ci/cd",
	},
	"programming-concepts": {
		"function", "variable", "loop", "recursion", "interface",
		"inheritance", "algorithm", "data structure", "pointer",
	},
	"security": {
		"encryption", "authentication", "authorization", "vulnerability",
		"tls", "certificate", "token", "exploit",
	},
}

// matchCluster reports whether the candidate text hits the named cluster.
// Unknown cluster names never match.
func matchCluster(clusterName, text string) bool {
	keywords, ok := clusters[strings.ToLower(clusterName)]
	if !ok {
		return false
	}
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// ClusterNames lists the known clusters, for rule validation surfaces.
func ClusterNames() []string {
	names := make([]string, 0, len(clusters))
	for name := range clusters {
		names = append(names, name)
	}
	return names
}
