package summary

import "fmt"

// Type is a summary format.
type Type string

const (
	BulletPoints Type = "bullet-points"
	Paragraph    Type = "paragraph"
	Outline      Type = "outline"
	QA           Type = "qa"
	Timeline     Type = "timeline"
	Mindmap      Type = "mindmap"
)

type typeInfo struct {
	label  string
	icon   string
	prompt string
}

var types = map[Type]typeInfo{
	BulletPoints: {
		label:  "Bullet Points",
		icon:   "•",
		prompt: "Summarize the following transcript in 5-7 clear bullet points. Focus on the main ideas and key takeaways.",
	},
	Paragraph: {
		label:  "Paragraph",
		icon:   "📄",
		prompt: "Summarize the following transcript in 2-3 well-structured paragraphs. Provide a comprehensive overview of the main topics covered.",
	},
	Outline: {
		label:  "Outline",
		icon:   "📋",
		prompt: "Create a structured outline of the transcript with main topics and subtopics. Use hierarchical numbering (1, 1.1, 1.2, etc.).",
	},
	QA: {
		label:  "Q&A",
		icon:   "❓",
		prompt: "Extract the main points from the transcript and present them as 5-6 question-answer pairs. Include the most important information.",
	},
	Timeline: {
		label:  "Timeline",
		icon:   "⏱️",
		prompt: "Create a timeline summary of the transcript, highlighting key moments and topics in chronological order.",
	},
	Mindmap: {
		label:  "Mind Map",
		icon:   "🧠",
		prompt: "Create a text-based mind map structure of the transcript, showing the central topic and branching subtopics.",
	},
}

// AllTypes lists every summary type in display order.
func AllTypes() []Type {
	return []Type{BulletPoints, Paragraph, Outline, QA, Timeline, Mindmap}
}

// ParseType validates s as a summary type. Empty means BulletPoints.
func ParseType(s string) (Type, error) {
	if s == "" {
		return BulletPoints, nil
	}
	t := Type(s)
	if _, ok := types[t]; !ok {
		return "", fmt.Errorf("unknown summary type %q (valid: %v)", s, AllTypes())
	}
	return t, nil
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	_, ok := types[t]
	return ok
}

// Prompt returns the system prompt for t, falling back to BulletPoints.
func (t Type) Prompt() string {
	if info, ok := types[t]; ok {
		return info.prompt
	}
	return types[BulletPoints].prompt
}

// Icon returns the display icon for t.
func (t Type) Icon() string {
	if info, ok := types[t]; ok {
		return info.icon
	}
	return "📝"
}

// Label returns the human-readable name of t.
func (t Type) Label() string {
	if info, ok := types[t]; ok {
		return info.label
	}
	return string(t)
}
