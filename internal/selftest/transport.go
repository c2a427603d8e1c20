// Package selftest drives the producer/consumer end-to-end check against a
// media transport.
package selftest

import (
	"context"

	"livegrid/internal/core/domain"
)

// Transport connects a credential holder to a room on a media server.
type Transport interface {
	Connect(ctx context.Context, url string, token domain.Credential) (Room, error)
}

// Room is one connected participant.
type Room interface {
	// PublishVideo starts sending a camera-like video track.
	PublishVideo(ctx context.Context) error
	// WaitForTrack blocks until a remote video track delivers media.
	WaitForTrack(ctx context.Context) error
	// BitrateSample returns the received bitrate in bits/s summed over all
	// subscribed tracks since the previous call.
	BitrateSample() int64
	Disconnect() error
}
