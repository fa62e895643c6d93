// Package coqui provides a local Coqui TTS-backed provider targeting the
// standard Coqui TTS server REST API (GET /api/tts). Synthesis is batch: one
// HTTP call per answer, WAV header stripped, PCM resampled to the pipeline
// rate when the model's native rate differs.
package coqui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/perchfield/sidequest/pkg/audio"
	"github.com/perchfield/sidequest/pkg/provider/tts"
)

const (
	apiTTSEndpoint  = "/api/tts"
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language ID sent to the TTS server (e.g., "en",
// "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithSpeaker sets the speaker ID for multi-speaker models. Single-speaker
// models ignore it.
func WithSpeaker(speaker string) Option {
	return func(p *Provider) {
		p.speaker = speaker
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithOutputSampleRate sets the sample rate synthesised PCM is resampled to.
// Defaults to the pipeline rate ([audio.SampleRate]); 0 disables resampling.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) {
		p.outputRate = rate
	}
}

// Provider implements tts.Provider backed by a locally-running Coqui TTS
// server. It is safe for concurrent use.
type Provider struct {
	serverURL  string
	language   string
	speaker    string
	outputRate int
	httpClient *http.Client
}

// New creates a Provider targeting the TTS server at serverURL
// (e.g., "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		outputRate: audio.SampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize performs a single GET /api/tts request and returns the raw PCM
// with the WAV header stripped, resampled to the configured output rate.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("text", text)
	if p.speaker != "" {
		params.Set("speaker_id", p.speaker)
	}
	if p.language != "" {
		params.Set("language_id", p.language)
	}

	reqURL := p.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", apiTTSEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}

	info, err := audio.ParseWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("coqui: %w", err)
	}

	pcm := wav[info.DataOffset : info.DataOffset+info.DataSize]
	if p.outputRate > 0 && info.SampleRate != p.outputRate && info.Channels == 1 {
		pcm = audio.ResampleMono16(pcm, info.SampleRate, p.outputRate)
	}
	return pcm, nil
}
