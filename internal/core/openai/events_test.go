package openai

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/steveyiyo/tutor-voice/internal/core/session"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		kind  session.EventKind
		role  session.Role
		phase session.Phase
		text  string
	}{
		{"user transcript", `{"type":"conversation.item.input_audio_transcription.completed","transcript":"is it 36"}`,
			session.EventTranscript, session.RoleUser, 0, "is it 36"},
		{"agent delta", `{"type":"response.audio_transcript.delta","delta":"Nice"}`,
			session.EventTranscript, session.RoleAgent, 0, "Nice"},
		{"created", `{"type":"response.created","response":{"status":"in_progress"}}`,
			session.EventResponse, "", session.PhaseCreated, ""},
		{"done", `{"type":"response.done","response":{"status":"completed"}}`,
			session.EventResponse, "", session.PhaseDone, ""},
		{"done but failed", `{"type":"response.done","response":{"status":"failed","status_details":{"error":{"message":"quota","code":"insufficient_quota"}}}}`,
			session.EventResponse, "", session.PhaseError, "quota (insufficient_quota)"},
		{"response error", `{"type":"response.error","error":{"message":"bad"}}`,
			session.EventResponse, "", session.PhaseError, "bad"},
		{"error", `{"type":"error","error":{"type":"invalid_request_error","message":"nope"}}`,
			session.EventError, "", 0, "nope"},
		{"session updated", `{"type":"session.updated"}`, session.EventSession, "", 0, "session.updated"},
		{"unknown", `{"type":"rate_limits.updated"}`, session.EventIgnored, "", 0, "rate_limits.updated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			ev, err := classify([]byte(tt.msg))
			is.NoErr(err)
			is.Equal(ev.Kind, tt.kind)
			is.Equal(ev.Role, tt.role)
			is.Equal(ev.Phase, tt.phase)
			is.Equal(ev.Text, tt.text)
		})
	}
}

func TestClassifyMalformed(t *testing.T) {
	is := is.New(t)
	_, err := classify([]byte("not json"))
	is.True(err != nil)
}

func TestSessionUpdateDisablesAutoResponse(t *testing.T) {
	is := is.New(t)
	b, err := json.Marshal(newSessionUpdate("tutor the student", "verse"))
	is.NoErr(err)
	s := string(b)
	is.True(strings.Contains(s, `"type":"session.update"`))
	is.True(strings.Contains(s, `"turn_detection":{"type":"server_vad","create_response":false}`))
	is.True(strings.Contains(s, `"input_audio_transcription":{"model":"whisper-1"}`))
	is.True(strings.Contains(s, `"voice":"verse"`))
}

func TestResponseCreate(t *testing.T) {
	is := is.New(t)
	b, _ := json.Marshal(newResponseCreate())
	is.Equal(string(b), `{"type":"response.create"}`)

	b, _ = json.Marshal(newGreeting())
	is.True(strings.Contains(string(b), `"instructions":"Greet the student`))
}
