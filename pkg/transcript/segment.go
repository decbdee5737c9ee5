package transcript

import "strings"

// SplitLines splits a block's nodes into logical lines at line break nodes
// and at newlines inside text runs. Empty pieces and empty lines are dropped.
func SplitLines(nodes []Node) [][]Node {
	lines := make([][]Node, 0)
	var current []Node

	pushLine := func() {
		if len(current) > 0 {
			lines = append(lines, current)
		}
		current = nil
	}

	for _, node := range nodes {
		if node.Kind == KindLineBreak {
			pushLine()
			continue
		}

		if node.IsText() && strings.Contains(node.Text, "\n") {
			parts := strings.Split(node.Text, "\n")
			for i, part := range parts {
				if part != "" {
					current = append(current, Text(part))
				}
				if i < len(parts)-1 {
					pushLine()
				}
			}
			continue
		}

		current = append(current, node)
	}
	pushLine()

	return lines
}
