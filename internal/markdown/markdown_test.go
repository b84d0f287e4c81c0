package markdown

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flashdeck/internal/collection"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []collection.NewCard
	}{
		{
			name:     "Simple Q&A",
			input:    "Q: What is the capital of France?\nA: Paris",
			expected: []collection.NewCard{{Front: "What is the capital of France?", Back: "Paris"}},
		},
		{
			name:  "Language hints",
			input: "Q: hola\nA: hello\nL: es/en",
			expected: []collection.NewCard{
				{Front: "hola", Back: "hello", FrontLanguage: "es", BackLanguage: "en"},
			},
		},
		{
			name:  "Front language only",
			input: "L: ja\nQ: ねこ\nA: cat",
			expected: []collection.NewCard{
				{Front: "ねこ", Back: "cat", FrontLanguage: "ja"},
			},
		},
		{
			name: "Multiline Answer",
			input: `
Q: What are the primary colors?
A: Red
Blue
Yellow
`,
			expected: []collection.NewCard{{Front: "What are the primary colors?", Back: "Red\nBlue\nYellow"}},
		},
		{
			name: "Two Cards",
			input: `
Q: First question
A: First answer

Q: Second question
A: Second answer
`,
			expected: []collection.NewCard{
				{Front: "First question", Back: "First answer"},
				{Front: "Second question", Back: "Second answer"},
			},
		},
		{
			name:     "Separator ends a card",
			input:    "Q: one\nA: 1\n---\nstray text\nQ: two\nA: 2",
			expected: []collection.NewCard{{Front: "one", Back: "1"}, {Front: "two", Back: "2"}},
		},
		{
			name:     "Question without answer is dropped",
			input:    "Q: lonely\nQ: paired\nA: yes",
			expected: []collection.NewCard{{Front: "paired", Back: "yes"}},
		},
		{
			name:     "No cards, just text",
			input:    "This is a file with no questions.",
			expected: nil,
		},
		{
			name:     "Prefixes with no space",
			input:    "Q:Question\nA:Answer",
			expected: []collection.NewCard{{Front: "Question", Back: "Answer"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cards, err := Parse(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, cards)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.md")
	require.NoError(t, os.WriteFile(path, []byte("Q: a\nA: b\n"), 0o644))

	cards, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []collection.NewCard{{Front: "a", Back: "b"}}, cards)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}
