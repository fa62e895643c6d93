// Package capture defines the screen-capture boundary. A capture provider
// produces a single still image of the current screen on demand; the tracker
// polls it on every refresh cycle and the orchestrator snapshots it at
// push-to-talk press time.
//
// Implementations must be safe for concurrent use: the tracker loop and an
// in-flight voice turn may capture simultaneously.
package capture

import "context"

// Provider is the abstraction over any screen-capture backend.
type Provider interface {
	// Capture returns an encoded still image (PNG or JPEG) of the current
	// screen, or an error if no display is available or permission is denied.
	Capture(ctx context.Context) ([]byte, error)
}
