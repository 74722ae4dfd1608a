package session

import (
	"errors"

	"github.com/steveyiyo/tutor-voice/internal/core/audio"
)

// EventKind is the class an inbound provider message is sorted into.
type EventKind int

const (
	EventIgnored EventKind = iota
	EventTranscript
	EventAudio
	EventResponse
	EventSession
	// EventUtterance closes a user utterance whose text already went out as
	// deltas. It feeds turn-taking only.
	EventUtterance
	// EventError is a provider error not tied to a running response.
	EventError
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Phase is a response lifecycle marker.
type Phase int

const (
	PhaseCreated Phase = iota + 1
	PhaseDone
	PhaseInterrupted
	PhaseError
)

// Event is one classified inbound message.
type Event struct {
	Kind  EventKind
	Role  Role          // EventTranscript
	Text  string        // transcript text, error message, or session event name
	Audio audio.Payload // EventAudio
	Phase Phase         // EventResponse
	Delta bool          // EventTranscript: user fragment, not a finished utterance
}

// Transcript is agent text, or a finished user utterance.
func Transcript(role Role, text string) Event {
	return Event{Kind: EventTranscript, Role: role, Text: text}
}

// UserDelta is a fragment of an utterance still in progress.
func UserDelta(text string) Event {
	return Event{Kind: EventTranscript, Role: RoleUser, Text: text, Delta: true}
}

// UtteranceEnd closes a user utterance streamed as UserDelta fragments.
func UtteranceEnd(text string) Event {
	return Event{Kind: EventUtterance, Role: RoleUser, Text: text}
}

func AudioEvent(p audio.Payload) Event {
	return Event{Kind: EventAudio, Audio: p}
}

func Response(phase Phase) Event {
	return Event{Kind: EventResponse, Phase: phase}
}

func ResponseError(msg string) Event {
	return Event{Kind: EventResponse, Phase: PhaseError, Text: msg}
}

func ProviderError(msg string) Event {
	return Event{Kind: EventError, Text: msg}
}

func SessionEvent(name string) Event {
	return Event{Kind: EventSession, Text: name}
}

func Ignored(detail string) Event {
	return Event{Kind: EventIgnored, Text: detail}
}

func providerError(msg, fallback string) error {
	if msg == "" {
		msg = fallback
	}
	return errors.New(msg)
}
