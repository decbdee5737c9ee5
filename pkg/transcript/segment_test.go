package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []Node
		expected [][]Node
	}{
		{
			name:     "empty block",
			nodes:    nil,
			expected: [][]Node{},
		},
		{
			name:     "single run",
			nodes:    []Node{Text("hello")},
			expected: [][]Node{{Text("hello")}},
		},
		{
			name:  "explicit breaks",
			nodes: []Node{Reference("A", ""), Text(": one"), LineBreak(), Reference("B", ""), Text(": two")},
			expected: [][]Node{
				{Reference("A", ""), Text(": one")},
				{Reference("B", ""), Text(": two")},
			},
		},
		{
			name:  "embedded newlines split the run",
			nodes: []Node{Text("one\ntwo"), Element("em", "x"), Text("\nthree")},
			expected: [][]Node{
				{Text("one")},
				{Text("two"), Element("em", "x")},
				{Text("three")},
			},
		},
		{
			name:     "empty lines are dropped",
			nodes:    []Node{Text("a\n\n\nb"), LineBreak(), LineBreak()},
			expected: [][]Node{{Text("a")}, {Text("b")}},
		},
		{
			name:     "only breaks",
			nodes:    []Node{LineBreak(), Text("\n")},
			expected: [][]Node{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SplitLines(tc.nodes))
		})
	}
}

func TestNodeTextContent(t *testing.T) {
	assert.Equal(t, "hi", Text("hi").TextContent())
	assert.Equal(t, "Gandalf", Reference("people/gandalf", "Gandalf").TextContent())
	assert.Equal(t, "target", Reference("target", "").TextContent())
	assert.Equal(t, "bold", Element("strong", "bold").TextContent())
	assert.Equal(t, "", LineBreak().TextContent())
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "john smith", NormalizeName("  John Smith "))
	assert.Equal(t, "", NormalizeName("   "))
}
