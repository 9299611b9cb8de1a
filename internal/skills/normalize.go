// Package skills normalizes skill names and finds known skills in free text.
package skills

import (
	"sort"
	"strings"
)

// aliases maps common skill name variants to canonical names
var aliases = map[string]string{
	"golang":              "go",
	"go lang":             "go",
	"js":                  "javascript",
	"ts":                  "typescript",
	"k8s":                 "kubernetes",
	"react.js":            "react",
	"reactjs":             "react",
	"vue.js":              "vue",
	"vuejs":               "vue",
	"nodejs":              "node.js",
	"node":                "node.js",
	"postgres":            "postgresql",
	"psql":                "postgresql",
	"ml":                  "machine learning",
	"amazon web services": "aws",
	"gcp":                 "google cloud",
	"py":                  "python",
	"tf":                  "terraform",
}

// Normalize returns the canonical lower-case form of a skill name.
func Normalize(name string) string {
	n := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if n == "" {
		return ""
	}
	if canonical, ok := aliases[n]; ok {
		return canonical
	}
	return n
}

// NormalizeAll normalizes, deduplicates and sorts names. Empty names are dropped.
func NormalizeAll(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		n := Normalize(name)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b| over normalized names, or 0 when both are empty.
func Jaccard(a, b []string) float64 {
	setA := NormalizeAll(a)
	setB := NormalizeAll(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	inA := make(map[string]struct{}, len(setA))
	for _, s := range setA {
		inA[s] = struct{}{}
	}
	intersection := 0
	for _, s := range setB {
		if _, ok := inA[s]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}
