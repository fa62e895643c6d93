// Package elevenlabs provides an stt.Provider backed by the ElevenLabs
// Scribe speech-to-text API (POST /v1/speech-to-text).
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/perchfield/sidequest/pkg/provider/stt"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	sttEndpoint    = "/v1/speech-to-text"
	defaultModel   = "scribe_v1"
	defaultTimeout = 30 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the Scribe model ID. Defaults to "scribe_v1".
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL overrides the default ElevenLabs API base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithLanguage sets the ISO-639 language code hint (e.g., "en").
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements stt.Provider using the ElevenLabs Scribe API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new ElevenLabs STT Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs stt: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// sttResponse is the JSON body returned by POST /v1/speech-to-text.
type sttResponse struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Transcribe uploads the WAV recording as multipart/form-data and returns the
// transcribed text.
func (p *Provider) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("elevenlabs stt: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("elevenlabs stt: write wav data: %w", err)
	}
	if err := mw.WriteField("model_id", p.model); err != nil {
		return "", fmt.Errorf("elevenlabs stt: write model field: %w", err)
	}
	if p.language != "" {
		if err := mw.WriteField("language_code", p.language); err != nil {
			return "", fmt.Errorf("elevenlabs stt: write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("elevenlabs stt: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+sttEndpoint, &body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs stt: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs stt: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("elevenlabs stt: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs stt: read response body: %w", err)
	}

	var result sttResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("elevenlabs stt: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}
