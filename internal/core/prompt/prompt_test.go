package prompt

import (
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestBuildWithWrongAttempt(t *testing.T) {
	is := is.New(t)
	p := Problem{Question: "Solve x^2-4=0", CorrectAnswer: "x=2 or x=-2", WrongAttempt: "x=3"}

	out := Build(p)

	is.True(strings.Contains(out, "Solve x^2-4=0"))
	is.True(strings.Contains(out, "x=2 or x=-2"))
	is.True(strings.Contains(out, AnalysisHeader))
	is.True(strings.Contains(out, "x=3"))
	is.True(strings.Contains(out, "random or unrelated"))
	is.True(strings.Contains(out, "partially correct"))
}

func TestBuildWithoutWrongAttempt(t *testing.T) {
	is := is.New(t)

	for _, wrong := range []string{"", "   "} {
		out := Build(Problem{Question: "Solve x^2-4=0", CorrectAnswer: "x=2 or x=-2", WrongAttempt: wrong})
		is.True(strings.Contains(out, "Solve x^2-4=0"))
		is.True(!strings.Contains(out, AnalysisHeader)) // no analysis section without an attempt
	}
}

func TestBuildDeterministic(t *testing.T) {
	is := is.New(t)
	p := Problem{Question: "2+2", CorrectAnswer: "4", WrongAttempt: "5"}
	is.Equal(Build(p), Build(p))
}
