package gemini

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/steveyiyo/tutor-voice/internal/core/audio"
	"github.com/steveyiyo/tutor-voice/internal/core/prompt"
	"github.com/steveyiyo/tutor-voice/internal/core/session"
)

// clientMessage is the outbound envelope. Exactly one field is set; its key is
// the message type. genai's LiveClientRealtimeInput predates the audio field,
// so the realtime input uses the send parameters shape instead.
type clientMessage struct {
	Setup         *genai.LiveClientSetup                 `json:"setup,omitempty"`
	ClientContent *genai.LiveClientContent               `json:"clientContent,omitempty"`
	RealtimeInput *genai.LiveSendRealtimeInputParameters `json:"realtimeInput,omitempty"`
}

func setupMessage(model, voice, instructions string) clientMessage {
	gc := &genai.GenerationConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
	}
	if voice != "" {
		gc.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		}
	}
	return clientMessage{Setup: &genai.LiveClientSetup{
		Model:            model,
		GenerationConfig: gc,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: instructions}},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}}
}

func greetingMessage() clientMessage {
	return clientMessage{ClientContent: &genai.LiveClientContent{
		Turns: []*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: prompt.Greeting}},
		}},
		TurnComplete: true,
	}}
}

func audioMessage(c audio.Chunk) clientMessage {
	return clientMessage{RealtimeInput: &genai.LiveSendRealtimeInputParameters{
		Audio: &genai.Blob{Data: c.PCM, MIMEType: c.MIMEType()},
	}}
}

// decoder classifies inbound messages. It remembers whether the model is
// mid-turn so the first content after a completed turn opens a response.
// Not safe for concurrent use; one read loop owns it.
type decoder struct {
	now         func() time.Time
	agentActive bool
	// user collects input transcription fragments until the utterance closes:
	// when the model starts answering or its turn ends.
	user strings.Builder
}

func newDecoder() *decoder {
	return &decoder{now: time.Now}
}

// decode returns the events carried by one message, in order. setupDone is
// true for the handshake acknowledgement. A serverContent may bundle several
// parts (audio plus transcription), each of which becomes its own event.
func (d *decoder) decode(data []byte) (setupDone bool, events []session.Event, err error) {
	var msg genai.LiveServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return false, nil, fmt.Errorf("decode server message: %w", err)
	}

	switch {
	case msg.SetupComplete != nil:
		return true, []session.Event{session.SessionEvent("setupComplete")}, nil
	case msg.ServerContent != nil:
		return false, d.content(msg.ServerContent), nil
	case msg.GoAway != nil:
		return false, []session.Event{session.SessionEvent("goAway " + msg.GoAway.TimeLeft.String())}, nil
	default:
		return false, []session.Event{session.Ignored(topLevelKeys(data))}, nil
	}
}

func (d *decoder) content(sc *genai.LiveServerContent) []session.Event {
	var events []session.Event
	flush := func() {
		if text := strings.TrimSpace(d.user.String()); text != "" {
			events = append(events, session.UtteranceEnd(text))
		}
		d.user.Reset()
	}
	open := func() {
		if !d.agentActive {
			flush()
			d.agentActive = true
			events = append(events, session.Response(session.PhaseCreated))
		}
	}

	if t := sc.InputTranscription; t != nil && strings.TrimSpace(t.Text) != "" {
		d.user.WriteString(t.Text)
		events = append(events, session.UserDelta(t.Text))
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p == nil || p.InlineData == nil {
				continue
			}
			rate, ok := inlineRate(p.InlineData.MIMEType)
			if !ok || len(p.InlineData.Data) == 0 {
				continue
			}
			open()
			events = append(events, session.AudioEvent(audio.Payload{
				PCM:        p.InlineData.Data,
				SampleRate: rate,
				ArrivedAt:  d.now(),
			}))
		}
	}
	if t := sc.OutputTranscription; t != nil && t.Text != "" {
		open()
		events = append(events, session.Transcript(session.RoleAgent, t.Text))
	}
	switch {
	case sc.Interrupted:
		d.agentActive = false
		flush()
		events = append(events, session.Response(session.PhaseInterrupted))
	case sc.TurnComplete:
		d.agentActive = false
		flush()
		events = append(events, session.Response(session.PhaseDone))
	}
	if len(events) == 0 {
		events = append(events, session.Ignored("serverContent"))
	}
	return events
}

// inlineRate accepts PCM parts; a PCM type without a rate is the provider default.
func inlineRate(mime string) (int, bool) {
	if rate, ok := audio.ParsePCMRate(mime); ok {
		return rate, true
	}
	if strings.HasPrefix(strings.ToLower(mime), "audio/pcm") {
		return audio.OutputSampleRate, true
	}
	return 0, false
}

func topLevelKeys(data []byte) string {
	var raw map[string]json.RawMessage
	if json.Unmarshal(data, &raw) != nil {
		return "unparsed"
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
