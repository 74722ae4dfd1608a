package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/steveyiyo/tutor-voice/internal/config"
	"github.com/steveyiyo/tutor-voice/internal/core/audio"
	"github.com/steveyiyo/tutor-voice/internal/core/session"
)

func TestTranscriptMergesSameRole(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	tr := newTranscript(&buf)

	tr.Write(session.RoleAgent, "Hi")
	tr.Write(session.RoleAgent, " there")
	tr.Write(session.RoleAgent, "!")
	tr.Write(session.RoleUser, "is it")
	tr.Write(session.RoleUser, "thirty six")
	tr.Write(session.RoleAgent, " Yes.")
	tr.Write(session.RoleAgent, "")
	tr.Flush()
	tr.Flush()

	is.Equal(buf.String(), "tutor: Hi there!\nyou: is it thirty six\ntutor: Yes.\n")
}

func TestMeterLine(t *testing.T) {
	is := is.New(t)
	line := meterLine(audio.Levels{RMS: 0.25}, audio.Levels{Bytes: 120})
	is.True(strings.HasPrefix(line, "mic ####################  tutor ...................."))
	is.True(strings.HasSuffix(line, "(120 B)"))
}

func TestNewTransportRejectsUnknownProvider(t *testing.T) {
	is := is.New(t)
	_, err := newTransport("azure", config.Config{}, nil, audio.NewDevice(audio.FFplay{}), nil)
	is.True(err != nil)

	_, err = newTransport("gemini", config.Config{}, nil, audio.NewDevice(audio.FFplay{}), nil)
	is.True(err != nil) // no key
}

func TestPromptCommand(t *testing.T) {
	is := is.New(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"prompt", "-q", "What is 2+2?", "-a", "4", "-w", "5"})
	is.NoErr(rootCmd.Execute())
	is.True(strings.Contains(out.String(), "What is 2+2?"))
	is.True(strings.Contains(out.String(), "STUDENT'S PREVIOUS ATTEMPT"))
}
