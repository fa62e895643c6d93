// Package daemon provides a capture.Provider backed by a local screenshot
// daemon exposing a small HTTP API (POST /capture returning image bytes).
// Running the platform-specific capture code in a separate daemon keeps
// display-server bindings out of this process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/perchfield/sidequest/pkg/provider/capture"
)

const (
	captureEndpoint = "/capture"
	defaultTimeout  = 5 * time.Second

	// maxImageBytes caps the response size read from the daemon. A 4K PNG
	// stays well under this.
	maxImageBytes = 32 << 20
)

// Compile-time assertion that Provider implements capture.Provider.
var _ capture.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 5 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithDisplay selects a display identifier forwarded to the daemon as the
// "display" query parameter. Empty means the daemon's default display.
func WithDisplay(display string) Option {
	return func(p *Provider) {
		p.display = display
	}
}

// Provider implements capture.Provider against a local capture daemon.
type Provider struct {
	serverURL  string
	display    string
	httpClient *http.Client
}

// New creates a Provider targeting the capture daemon at serverURL
// (e.g., "http://localhost:8090"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("capture daemon: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Capture requests a screenshot from the daemon and returns the raw image
// bytes.
func (p *Provider) Capture(ctx context.Context) ([]byte, error) {
	endpoint := p.serverURL + captureEndpoint
	if p.display != "" {
		endpoint += "?display=" + p.display
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("capture daemon: create request: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture daemon: POST %s: %w", captureEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("capture daemon: POST %s returned status %d", captureEndpoint, resp.StatusCode)
	}

	img, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("capture daemon: read image: %w", err)
	}
	if len(img) == 0 {
		return nil, errors.New("capture daemon: empty image response")
	}
	return img, nil
}
