package openai

import (
	"encoding/json"
	"fmt"

	"github.com/steveyiyo/tutor-voice/internal/core/prompt"
	"github.com/steveyiyo/tutor-voice/internal/core/session"
)

// Outbound data channel events.

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Instructions            string               `json:"instructions"`
	Voice                   string               `json:"voice,omitempty"`
	Modalities              []string             `json:"modalities"`
	InputAudioTranscription *transcriptionConfig `json:"input_audio_transcription"`
	TurnDetection           *turnDetection       `json:"turn_detection"`
}

type transcriptionConfig struct {
	Model string `json:"model"`
}

type turnDetection struct {
	Type           string `json:"type"`
	CreateResponse bool   `json:"create_response"`
}

type responseCreate struct {
	Type     string          `json:"type"`
	Response *responseConfig `json:"response,omitempty"`
}

type responseConfig struct {
	Instructions string   `json:"instructions,omitempty"`
	Modalities   []string `json:"modalities,omitempty"`
}

// newSessionUpdate turns on user transcription and server VAD, but leaves
// response creation to the client.
func newSessionUpdate(instructions, voice string) sessionUpdate {
	return sessionUpdate{
		Type: "session.update",
		Session: sessionConfig{
			Instructions:            instructions,
			Voice:                   voice,
			Modalities:              []string{"audio", "text"},
			InputAudioTranscription: &transcriptionConfig{Model: "whisper-1"},
			TurnDetection:           &turnDetection{Type: "server_vad", CreateResponse: false},
		},
	}
}

func newResponseCreate() responseCreate {
	return responseCreate{Type: "response.create"}
}

func newGreeting() responseCreate {
	return responseCreate{
		Type: "response.create",
		Response: &responseConfig{
			Instructions: prompt.Greeting,
			Modalities:   []string{"audio", "text"},
		},
	}
}

// Inbound data channel events. Only the fields that are routed are decoded.

type serverEvent struct {
	Type       string          `json:"type"`
	Delta      string          `json:"delta"`
	Transcript string          `json:"transcript"`
	Error      *eventError     `json:"error"`
	Response   *responseStatus `json:"response"`
}

type eventError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type responseStatus struct {
	Status        string `json:"status"`
	StatusDetails *struct {
		Error *eventError `json:"error"`
	} `json:"status_details"`
}

func (e *eventError) String() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// classify maps one data channel message to exactly one event.
func classify(data []byte) (session.Event, error) {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return session.Event{}, fmt.Errorf("decode server event: %w", err)
	}
	switch ev.Type {
	case "conversation.item.input_audio_transcription.completed":
		return session.Transcript(session.RoleUser, ev.Transcript), nil
	case "response.audio_transcript.delta":
		return session.Transcript(session.RoleAgent, ev.Delta), nil
	case "response.created":
		return session.Response(session.PhaseCreated), nil
	case "response.done":
		if ev.Response != nil && ev.Response.Status == "failed" {
			msg := "response failed"
			if d := ev.Response.StatusDetails; d != nil && d.Error != nil {
				msg = d.Error.String()
			}
			return session.ResponseError(msg), nil
		}
		return session.Response(session.PhaseDone), nil
	case "response.error":
		return session.ResponseError(ev.Error.String()), nil
	case "error":
		// Not tied to a response, e.g. a rejected session.update field.
		return session.ProviderError(ev.Error.String()), nil
	case "session.created", "session.updated", "response.audio_transcript.done":
		return session.SessionEvent(ev.Type), nil
	default:
		return session.Ignored(ev.Type), nil
	}
}
