package transcript

import (
	"strings"
	"unicode"
)

// attempt tries one interpretation of a line.
type attempt func(nodes []Node) (Line, bool)

// lineAttempts are tried in order, most specific first.
var lineAttempts = []attempt{
	attemptDateSeparator,
	attemptBubble,
}

// ParseLine classifies one logical line. Lines that are neither a date
// separator nor a bubble are returned as regular text with the original nodes.
func ParseLine(nodes []Node) Line {
	if line, ok := firstMatch(nodes, lineAttempts...); ok {
		return line
	}
	return Line{Kind: LineRegularText, Regular: &RegularText{Nodes: nodes}}
}

// ParseLines classifies every line of a segmented block.
func ParseLines(lines [][]Node) []Line {
	parsed := make([]Line, 0, len(lines))
	for _, nodes := range lines {
		parsed = append(parsed, ParseLine(nodes))
	}
	return parsed
}

// firstMatch returns the result of the first attempt that succeeds.
func firstMatch(nodes []Node, attempts ...attempt) (Line, bool) {
	for _, try := range attempts {
		if line, ok := try(nodes); ok {
			return line, true
		}
	}
	return Line{}, false
}

func attemptDateSeparator(nodes []Node) (Line, bool) {
	if len(nodes) != 1 || !nodes[0].IsText() {
		return Line{}, false
	}
	sep, ok := ParseDateSeparator(nodes[0].Text)
	if !ok {
		return Line{}, false
	}
	return Line{Kind: LineDateSeparator, DateSeparator: sep}, true
}

func attemptBubble(nodes []Node) (Line, bool) {
	bubble, ok := extractBubble(nodes)
	if !ok {
		return Line{}, false
	}
	return Line{Kind: LineBubble, Bubble: bubble}, true
}

// extractBubble parses "[[Speaker]] [HH:MM]: message". The header (everything
// before the colon) must be plain text runs; the body may hold any nodes.
func extractBubble(nodes []Node) (*Bubble, bool) {
	index := 0
	for index < len(nodes) && nodes[index].isWhitespace() {
		index++
	}
	if index >= len(nodes) {
		return nil, false
	}

	first := nodes[index]
	if first.Kind != KindReference {
		return nil, false
	}
	name := strings.TrimSpace(first.Display)
	if name == "" {
		return nil, false
	}

	var timestamp *Timestamp
	colonFound := false
	message := make([]Node, 0)

	for _, node := range nodes[index+1:] {
		if colonFound {
			message = append(message, node)
			continue
		}

		if !node.IsText() {
			return nil, false
		}

		text := node.Text
		if timestamp == nil {
			if m, ok := ParseTimestamp(text); ok {
				ts := m.Timestamp
				timestamp = &ts
				text = m.Remaining
			}
		}

		colon := strings.Index(text, ":")
		if colon == -1 {
			if strings.TrimSpace(text) == "" {
				continue
			}
			return nil, false
		}

		colonFound = true
		if body := strings.TrimLeftFunc(text[colon+1:], unicode.IsSpace); body != "" {
			message = append(message, Text(body))
		}
	}

	if !colonFound {
		return nil, false
	}

	return &Bubble{
		Speaker: Speaker{
			Name:           name,
			NormalizedName: NormalizeName(name),
		},
		Timestamp: timestamp,
		Message:   message,
	}, true
}
