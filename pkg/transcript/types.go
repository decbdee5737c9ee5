// Package transcript provides the line grammar for chat-style transcripts:
// speaker lines, timestamps and date separators inside a block of inline content.
package transcript

import (
	"strings"
	"time"
)

// NodeKind identifies the variant held by a Node.
type NodeKind string

const (
	KindText      NodeKind = "text"
	KindReference NodeKind = "reference"
	KindLineBreak NodeKind = "break"
	KindElement   NodeKind = "element"
)

// Node is one unit of inline content produced by the host tokenizer.
// Only text runs and references carry data the parser inspects; elements
// are passed through untouched in message bodies.
type Node struct {
	Kind NodeKind `json:"kind" yaml:"kind"`

	// Text is the payload of a text run or the inner text of an element.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Target and Display describe a reference ([[Target|Display]]).
	Target  string `json:"target,omitempty" yaml:"target,omitempty"`
	Display string `json:"display,omitempty" yaml:"display,omitempty"`

	// Tag names the inline element (em, strong, code, ...).
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// Text returns a text run node.
func Text(s string) Node {
	return Node{Kind: KindText, Text: s}
}

// Reference returns a reference node. An empty display falls back to the target.
func Reference(target, display string) Node {
	if display == "" {
		display = target
	}
	return Node{Kind: KindReference, Target: target, Display: display}
}

// LineBreak returns an explicit line break marker.
func LineBreak() Node {
	return Node{Kind: KindLineBreak}
}

// Element returns an opaque inline element node.
func Element(tag, text string) Node {
	return Node{Kind: KindElement, Tag: tag, Text: text}
}

// TextContent returns the visible text of the node.
func (n Node) TextContent() string {
	switch n.Kind {
	case KindText, KindElement:
		return n.Text
	case KindReference:
		return n.Display
	default:
		return ""
	}
}

// IsText reports whether the node is a text run.
func (n Node) IsText() bool {
	return n.Kind == KindText
}

// isWhitespace reports whether n is a text run containing only whitespace.
func (n Node) isWhitespace() bool {
	return n.Kind == KindText && strings.TrimSpace(n.Text) == ""
}

// Timestamp is a validated [H:MM] or [H:MM:SS] token.
type Timestamp struct {
	Raw     string `json:"raw" yaml:"raw"`
	Hours   int    `json:"hours" yaml:"hours"`
	Minutes int    `json:"minutes" yaml:"minutes"`
	Seconds *int   `json:"seconds" yaml:"seconds"`
}

// Speaker is the name taken from the leading reference of a bubble line.
type Speaker struct {
	Name           string `json:"name" yaml:"name"`
	NormalizedName string `json:"normalized_name" yaml:"normalized_name"`
}

// NormalizeName lower-cases and trims a speaker name. It is the join key
// used against configuration everywhere names are compared.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Bubble is a line attributed to a speaker.
type Bubble struct {
	Speaker   Speaker    `json:"speaker" yaml:"speaker"`
	Timestamp *Timestamp `json:"timestamp" yaml:"timestamp"`
	Message   []Node     `json:"message" yaml:"message"`
}

// DateSeparator is a "--- <date> ---" line.
type DateSeparator struct {
	Raw           string    `json:"raw" yaml:"raw"`
	Date          time.Time `json:"date" yaml:"date"`
	FormattedDate string    `json:"formatted_date" yaml:"formatted_date"`
}

// RegularText is a line that matched no other form.
type RegularText struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// LineKind identifies the variant held by a Line.
type LineKind string

const (
	LineBubble        LineKind = "bubble"
	LineDateSeparator LineKind = "date-separator"
	LineRegularText   LineKind = "regular-text"
)

// Line is the classification of one logical line. Exactly one of Bubble,
// DateSeparator and Regular is set, matching Kind.
type Line struct {
	Kind          LineKind       `json:"type" yaml:"type"`
	Bubble        *Bubble        `json:"bubble,omitempty" yaml:"bubble,omitempty"`
	DateSeparator *DateSeparator `json:"date_separator,omitempty" yaml:"date_separator,omitempty"`
	Regular       *RegularText   `json:"regular,omitempty" yaml:"regular,omitempty"`
}
