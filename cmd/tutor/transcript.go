package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/steveyiyo/tutor-voice/internal/core/session"
)

// transcript prints deltas tagged by role. Consecutive deltas of one role
// share a line; a role change starts a new one.
type transcript struct {
	mu   sync.Mutex
	w    io.Writer
	role session.Role
	open bool
	tail byte
}

func newTranscript(w io.Writer) *transcript {
	return &transcript{w: w}
}

func (t *transcript) Write(role session.Role, text string) {
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open || role != t.role {
		if t.open {
			fmt.Fprintln(t.w)
		}
		fmt.Fprintf(t.w, "%s: ", label(role))
		t.role = role
		t.open = true
		text = strings.TrimLeft(text, " ")
	} else if role == session.RoleUser && t.tail != ' ' && !strings.HasPrefix(text, " ") {
		// whole utterances carry no leading space; streamed fragments do
		text = " " + text
	}
	if text == "" {
		return
	}
	fmt.Fprint(t.w, text)
	t.tail = text[len(text)-1]
}

// Flush ends the open line.
func (t *transcript) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		fmt.Fprintln(t.w)
		t.open = false
	}
}

func label(r session.Role) string {
	if r == session.RoleUser {
		return "you"
	}
	return "tutor"
}
