package session

import (
	"github.com/steveyiyo/tutor-voice/internal/core/prompt"
)

// Config is fixed for the lifetime of one session.
type Config struct {
	Question      string
	CorrectAnswer string
	WrongAttempt  string

	// OnUserTranscript and OnAgentTranscript receive transcript deltas. Merging
	// consecutive deltas of one role is left to the receiver.
	OnUserTranscript  func(text string)
	OnAgentTranscript func(text string)
	// OnError receives failures of an established session. Optional.
	OnError func(err error)
	// OnStateChange observes lifecycle transitions. Optional.
	OnStateChange func(State)
}

// Problem returns the tutoring context for the prompt builder.
func (c Config) Problem() prompt.Problem {
	return prompt.Problem{
		Question:      c.Question,
		CorrectAnswer: c.CorrectAnswer,
		WrongAttempt:  c.WrongAttempt,
	}
}

// Instructions is the system instruction sent to the remote model.
func (c Config) Instructions() string {
	return prompt.Build(c.Problem())
}

func (c Config) userTranscript(text string) {
	if c.OnUserTranscript != nil {
		c.OnUserTranscript(text)
	}
}

func (c Config) agentTranscript(text string) {
	if c.OnAgentTranscript != nil {
		c.OnAgentTranscript(text)
	}
}

func (c Config) fail(err error) {
	if c.OnError != nil && err != nil {
		c.OnError(err)
	}
}
