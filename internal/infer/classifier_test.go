package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySkills(t *testing.T) {
	kc := NewKeywordClassifier()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"string work",
			"Add string padding and trimming functions",
			[]string{"string-processing"},
		},
		{
			"math work",
			"Implement number formatting with precision control",
			[]string{"mathematical-operations"},
		},
		{
			"multiple clusters",
			"Read test data files and validate string output",
			[]string{"string-processing", "file-operations", "testing"},
		},
		{
			"case insensitive",
			"UNICODE normalization support",
			[]string{"string-processing"},
		},
		{
			"no hits",
			"Improve build performance",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skills, _ := kc.Classify(tt.text, nil)
			assert.Equal(t, tt.want, skills)
		})
	}
}

func TestClassifyComplexityPrecedence(t *testing.T) {
	kc := NewKeywordClassifier()

	tests := []struct {
		name   string
		text   string
		labels []string
		want   int
	}{
		{"trivial beats bug and enhancement", "x", []string{"bug", "enhancement", "good first issue"}, 1},
		{"help wanted forces 5", "x", []string{"bug", "help wanted"}, 5},
		{"help wanted beats good first issue", "x", []string{"good first issue", "help wanted"}, 5},
		{"complex in text forces 5", "a complex refactor", []string{"enhancement"}, 5},
		{"complex in text beats trivial label", "a complex edge case", []string{"good first issue"}, 5},
		{"bug beats enhancement", "x", []string{"enhancement", "bug"}, 2},
		{"enhancement forces 4", "x", []string{"enhancement"}, 4},
		{"feature forces 4", "x", []string{"feature"}, 4},
		{"default is 3", "x", nil, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, complexity := kc.Classify(tt.text, tt.labels)
			assert.Equal(t, tt.want, complexity)
		})
	}
}

func TestPriority(t *testing.T) {
	assert.Equal(t, "HIGH", Priority([]string{"urgent"}))
	assert.Equal(t, "HIGH", Priority([]string{"High-Priority"}))
	assert.Equal(t, "LOW", Priority([]string{"low-priority"}))
	assert.Equal(t, "MEDIUM", Priority([]string{"bug"}))
	assert.Equal(t, "MEDIUM", Priority(nil))
}
