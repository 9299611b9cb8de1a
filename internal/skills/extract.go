package skills

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultLexicon lists skills recognized in reference job descriptions.
var DefaultLexicon = []string{
	"python", "java", "go", "rust", "scala", "kotlin", "swift", "c++", "c#", "ruby", "php",
	"javascript", "typescript", "react", "vue", "angular", "node.js",
	"sql", "postgresql", "mysql", "mongodb", "redis", "kafka", "spark", "hadoop", "airflow", "dbt",
	"snowflake", "bigquery", "databricks", "tableau", "power bi", "excel",
	"aws", "azure", "google cloud", "kubernetes", "docker", "terraform", "linux",
	"machine learning", "deep learning", "nlp", "computer vision", "pytorch", "tensorflow",
	"statistics", "data modeling", "etl", "data warehousing", "microservices", "distributed systems",
	"ci/cd", "security", "networking", "product management", "project management", "agile",
	"financial modeling", "accounting", "gaap", "ifrs", "auditing", "budgeting", "forecasting",
	"salesforce", "sap", "negotiation", "recruiting", "compensation", "payroll",
}

// minAliasLength keeps short aliases such as "ts" from matching ordinary prose.
const minAliasLength = 3

// Extract returns the normalized vocabulary skills that occur in text as whole words, sorted.
// Aliases of vocabulary skills are recognized too.
func Extract(text string, vocabulary []string) []string {
	haystack := strings.ToLower(text)
	if strings.TrimSpace(haystack) == "" {
		return []string{}
	}

	wanted := make(map[string]struct{}, len(vocabulary))
	for _, v := range vocabulary {
		if n := Normalize(v); n != "" {
			wanted[n] = struct{}{}
		}
	}

	terms := make(map[string]string, len(wanted))
	for n := range wanted {
		terms[n] = n
	}
	for alias, canonical := range aliases {
		if _, ok := wanted[canonical]; ok && len(alias) >= minAliasLength {
			terms[alias] = canonical
		}
	}

	found := make(map[string]struct{})
	for term, canonical := range terms {
		if _, done := found[canonical]; done {
			continue
		}
		if containsWord(haystack, term) {
			found[canonical] = struct{}{}
		}
	}

	out := make([]string, 0, len(found))
	for s := range found {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// containsWord reports whether term occurs in s with no letter or digit directly before or after it.
func containsWord(s, term string) bool {
	if term == "" {
		return false
	}
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], term)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(term)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
