package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine_BubbleWithTimestamp(t *testing.T) {
	line := ParseLine([]Node{
		Reference("John Smith", ""),
		Text(" [9:05]: Hello!"),
	})

	require.Equal(t, LineBubble, line.Kind)
	require.NotNil(t, line.Bubble)
	assert.Equal(t, "John Smith", line.Bubble.Speaker.Name)
	assert.Equal(t, "john smith", line.Bubble.Speaker.NormalizedName)

	require.NotNil(t, line.Bubble.Timestamp)
	assert.Equal(t, 9, line.Bubble.Timestamp.Hours)
	assert.Equal(t, 5, line.Bubble.Timestamp.Minutes)
	assert.Nil(t, line.Bubble.Timestamp.Seconds)

	assert.Equal(t, []Node{Text("Hello!")}, line.Bubble.Message)
}

func TestParseLine_BubbleWithoutTimestamp(t *testing.T) {
	line := ParseLine([]Node{Reference("me", ""), Text(": Hi there!")})

	require.Equal(t, LineBubble, line.Kind)
	assert.Nil(t, line.Bubble.Timestamp)
	assert.Equal(t, []Node{Text("Hi there!")}, line.Bubble.Message)
}

func TestParseLine_UsesReferenceDisplay(t *testing.T) {
	line := ParseLine([]Node{Reference("people/gandalf", "Gandalf"), Text(": You shall not pass")})

	require.Equal(t, LineBubble, line.Kind)
	assert.Equal(t, "Gandalf", line.Bubble.Speaker.Name)
}

func TestParseLine_SkipsLeadingWhitespace(t *testing.T) {
	line := ParseLine([]Node{Text("   "), Reference("Alice", ""), Text(": hi")})

	require.Equal(t, LineBubble, line.Kind)
	assert.Equal(t, "Alice", line.Bubble.Speaker.Name)
}

func TestParseLine_TimestampInSeparateRun(t *testing.T) {
	line := ParseLine([]Node{
		Reference("Alice", ""),
		Text(" "),
		Text("[14:32:10]"),
		Text(": hello"),
	})

	require.Equal(t, LineBubble, line.Kind)
	require.NotNil(t, line.Bubble.Timestamp)
	require.NotNil(t, line.Bubble.Timestamp.Seconds)
	assert.Equal(t, 10, *line.Bubble.Timestamp.Seconds)
	assert.Equal(t, []Node{Text("hello")}, line.Bubble.Message)
}

func TestParseLine_ColonInsideTimestampIsNotTerminator(t *testing.T) {
	line := ParseLine([]Node{Reference("Alice", ""), Text(" [14:32] says: ok")})

	require.Equal(t, LineBubble, line.Kind)
	require.NotNil(t, line.Bubble.Timestamp)
	assert.Equal(t, 14, line.Bubble.Timestamp.Hours)
	assert.Equal(t, []Node{Text("ok")}, line.Bubble.Message)
}

func TestParseLine_MessageKeepsInlineStructure(t *testing.T) {
	nodes := []Node{
		Reference("Bob", ""),
		Text(": see "),
		Element("em", "this"),
		Text(" and "),
		Reference("Other Note", ""),
	}
	line := ParseLine(nodes)

	require.Equal(t, LineBubble, line.Kind)
	assert.Equal(t, []Node{
		Text("see "),
		Element("em", "this"),
		Text(" and "),
		Reference("Other Note", ""),
	}, line.Bubble.Message)
}

func TestParseLine_ColonAtEndOfRun(t *testing.T) {
	line := ParseLine([]Node{Reference("Bob", ""), Text(":"), Element("strong", "loud")})

	require.Equal(t, LineBubble, line.Kind)
	assert.Equal(t, []Node{Element("strong", "loud")}, line.Bubble.Message)
}

func TestParseLine_EmptyMessage(t *testing.T) {
	line := ParseLine([]Node{Reference("Bob", ""), Text(":   ")})

	require.Equal(t, LineBubble, line.Kind)
	assert.Empty(t, line.Bubble.Message)
}

func TestParseLine_RegularTextFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
	}{
		{"plain text", []Node{Text("Hello world")}},
		{"text before reference", []Node{Text("see "), Reference("Bob", ""), Text(": hi")}},
		{"no colon", []Node{Reference("Bob", ""), Text(" said hi")}},
		{"element before colon", []Node{Reference("Bob", ""), Element("em", "x"), Text(": hi")}},
		{"reference before colon", []Node{Reference("Bob", ""), Reference("Alice", ""), Text(": hi")}},
		{"timestamp without colon", []Node{Reference("Bob", ""), Text(" [10:00] hello")}},
		{"empty speaker", []Node{Reference("", "  "), Text(": hi")}},
		{"only whitespace", []Node{Text("  "), Text("\t")}},
		{"reference only", []Node{Reference("Bob", "")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			line := ParseLine(tc.nodes)
			require.Equal(t, LineRegularText, line.Kind)
			require.NotNil(t, line.Regular)
			assert.Equal(t, tc.nodes, line.Regular.Nodes)
			assert.Nil(t, line.Bubble)
		})
	}
}

func TestParseLine_InvalidTimestampStillSplitsOnColon(t *testing.T) {
	// "[25:00]" is not a timestamp, so its own colon terminates the header.
	line := ParseLine([]Node{Reference("Bob", ""), Text(" [25:00] x")})

	require.Equal(t, LineBubble, line.Kind)
	assert.Nil(t, line.Bubble.Timestamp)
	assert.Equal(t, []Node{Text("00] x")}, line.Bubble.Message)
}

func TestParseLine_DateSeparator(t *testing.T) {
	line := ParseLine([]Node{Text("--- 2024-01-15 ---")})

	require.Equal(t, LineDateSeparator, line.Kind)
	require.NotNil(t, line.DateSeparator)
	assert.Contains(t, line.DateSeparator.FormattedDate, "2024")
}

func TestParseLine_DateSeparatorNeedsSingleTextNode(t *testing.T) {
	line := ParseLine([]Node{Text("--- 2024-01-15 ---"), Element("em", "x")})
	assert.Equal(t, LineRegularText, line.Kind)
}

func TestParseLines(t *testing.T) {
	lines := ParseLines(SplitLines([]Node{
		Text("--- 2024-01-15 ---\n"),
		Reference("Alice", ""),
		Text(": hi\nplain"),
	}))

	require.Len(t, lines, 3)
	assert.Equal(t, LineDateSeparator, lines[0].Kind)
	assert.Equal(t, LineBubble, lines[1].Kind)
	assert.Equal(t, LineRegularText, lines[2].Kind)
}
