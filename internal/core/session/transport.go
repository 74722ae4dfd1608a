// Package session holds the contract shared by the realtime voice transports:
// the lifecycle state machine, the per-connection context, inbound event
// dispatch and the error taxonomy.
package session

import (
	"context"

	"github.com/steveyiyo/tutor-voice/internal/core/audio"
)

// Transport is a duplex voice session with a remote model. Implementations
// are chosen at construction time, one per provider.
type Transport interface {
	// Connect acquires audio, dials the provider and completes the handshake.
	// It returns immediately if the transport is not idle. On failure every
	// acquired resource is released and the state returns to idle.
	Connect(ctx context.Context, cfg Config) error
	// Send forwards one encoded chunk. It is a no-op unless connected.
	Send(chunk audio.Chunk)
	// Disconnect releases everything. Safe in any state and when repeated.
	Disconnect()
	State() State
	// InputTap and OutputTap expose the capture and playback analysers; either
	// is nil until the corresponding audio path exists.
	InputTap() *audio.Analyser
	OutputTap() *audio.Analyser
}
