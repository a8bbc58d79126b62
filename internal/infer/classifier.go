// Package infer derives coordination metadata (required skills, estimated
// complexity, priority) from work-item text and labels. The classification
// is keyword-based and advisory: downstream consumers treat its output as a
// hint, not a guarantee.
package infer

import "strings"

// Classifier maps item text and labels to required skills and an estimated
// complexity on the 1..5 scale. It is an interface so the allocator can be
// tested with a fixed classification.
type Classifier interface {
	Classify(text string, labels []string) (skills []string, complexity int)
}

// cluster is a skill tag with the keywords that evoke it.
type cluster struct {
	skill    string
	keywords []string
}

// Cluster order is fixed so the derived skill list is deterministic.
var defaultClusters = []cluster{
	{"string-processing", []string{"string", "text", "character", "unicode"}},
	{"mathematical-operations", []string{"math", "calculation", "number", "numeric", "arithmetic"}},
	{"file-operations", []string{"file", "io", "read", "write", "data"}},
	{"testing", []string{"test", "testing", "validation", "coverage"}},
	{"documentation", []string{"doc", "readme", "documentation", "tutorial"}},
}

// KeywordClassifier is the stock classifier. The zero value is usable.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the default keyword-cluster classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify tests each keyword cluster against the lowercased text; every
// cluster with a hit contributes its skill tag. Complexity comes from label
// precedence: a complexity signal forces 5 and wins every conflict, trivial
// labels force 1, bug forces 2, enhancement forces 4, default 3.
func (kc *KeywordClassifier) Classify(text string, labels []string) ([]string, int) {
	lower := strings.ToLower(text)

	var skills []string
	for _, c := range defaultClusters {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				skills = append(skills, c.skill)
				break
			}
		}
	}

	return skills, complexityFor(lower, labels)
}

func complexityFor(lowerText string, labels []string) int {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[strings.ToLower(l)] = true
	}

	switch {
	case set["help wanted"] || set["complex"] || strings.Contains(lowerText, "complex"):
		return 5
	case set["good first issue"] || set["trivial"]:
		return 1
	case set["bug"]:
		return 2
	case set["enhancement"] || set["feature"]:
		return 4
	default:
		return 3
	}
}

// Priority buckets items by explicit priority labels; used in assignment
// notifications only, never in allocation decisions.
func Priority(labels []string) string {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[strings.ToLower(l)] = true
	}

	switch {
	case set["high-priority"] || set["urgent"]:
		return "HIGH"
	case set["low-priority"]:
		return "LOW"
	default:
		return "MEDIUM"
	}
}
