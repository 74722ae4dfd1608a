// Package prompt builds the system instruction handed to the remote voice model.
package prompt

import (
	"strings"
)

// Greeting is the instruction for the first agent turn, sent once the session is up.
const Greeting = "Greet the student warmly in one short sentence, mention that you are here to help with this problem, and ask how they would like to start."

// Problem is the tutoring context for one session.
type Problem struct {
	Question      string
	CorrectAnswer string
	WrongAttempt  string
}

// HasAnalysis reports whether the instruction carries the wrong-attempt section.
func (p Problem) HasAnalysis() bool {
	return strings.TrimSpace(p.WrongAttempt) != ""
}

// AnalysisHeader opens the wrong-attempt section of the instruction.
const AnalysisHeader = "STUDENT'S PREVIOUS ATTEMPT"

// Build returns the instruction for p. The same input always yields the same string.
func Build(p Problem) string {
	var b strings.Builder

	b.WriteString("You are a patient, encouraging math tutor helping a student with one specific problem. ")
	b.WriteString("Stay focused on this problem for the whole conversation.\n\n")

	b.WriteString("PROBLEM:\n")
	b.WriteString(p.Question)
	b.WriteString("\n\nCORRECT ANSWER (for your reference only, do not reveal it early):\n")
	b.WriteString(p.CorrectAnswer)
	b.WriteString("\n\n")

	if p.HasAnalysis() {
		b.WriteString(AnalysisHeader)
		b.WriteString(":\n")
		b.WriteString(p.WrongAttempt)
		b.WriteString("\n\n")
		b.WriteString("Before giving any hint, judge this attempt yourself:\n")
		b.WriteString("- If it looks random or unrelated to the problem, the student is probably missing a fundamental idea. ")
		b.WriteString("Ask simple questions that check the underlying concepts before working on the problem itself.\n")
		b.WriteString("- If it looks partially correct, acknowledge what is right and nudge the student toward the exact step where it went wrong.\n\n")
	}

	b.WriteString("RULES:\n")
	b.WriteString("1. Give only one hint at a time, then wait for the student.\n")
	b.WriteString("2. Teach by asking guiding questions instead of explaining everything.\n")
	b.WriteString("3. If the student asks about anything unrelated, gently bring them back to this problem.\n")
	b.WriteString("4. Never give the full solution or the final answer unless the student has reached it or has clearly tried several times.\n")
	b.WriteString("5. Keep every reply short: one to three spoken sentences.\n")
	b.WriteString("6. Always respond in English.\n")

	return b.String()
}
