package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WitEndpoint is the Wit.ai speech endpoint.
const WitEndpoint = "https://api.wit.ai/speech?v=20230215"

const maxWitResponseBytes = 1 << 20

// WitTranscriber sends WAV audio to Wit.ai.
type WitTranscriber struct {
	token    string
	endpoint string
	client   *http.Client
}

// WitOption configures a WitTranscriber.
type WitOption func(*WitTranscriber)

// WithWitEndpoint overrides WitEndpoint.
func WithWitEndpoint(url string) WitOption {
	return func(w *WitTranscriber) { w.endpoint = url }
}

// WithWitHTTPClient sets the HTTP client.
func WithWitHTTPClient(c *http.Client) WitOption {
	return func(w *WitTranscriber) { w.client = c }
}

// NewWitTranscriber creates a Wit.ai transcriber authenticated with token.
func NewWitTranscriber(token string, opts ...WitOption) *WitTranscriber {
	w := &WitTranscriber{
		token:    token,
		endpoint: WitEndpoint,
		client:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Transcribe implements Transcriber.
func (w *WitTranscriber) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer func() { _ = f.Close() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, f)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("wit.ai request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWitResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read wit.ai response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("wit.ai returned status %d", resp.StatusCode)
	}

	text := parseWitResponse(body)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

type witChunk struct {
	Text       string `json:"text"`
	LegacyText string `json:"_text"`
	IsFinal    bool   `json:"is_final"`
}

func (c witChunk) text() string {
	if t := strings.TrimSpace(c.Text); t != "" {
		return t
	}
	return strings.TrimSpace(c.LegacyText)
}

// parseWitResponse extracts the transcript from a Wit.ai speech response.
// The body is either one JSON object or a stream of objects separated by
// CRLF. The last final chunk with text wins; otherwise the last chunk with
// text. Decoding stops at the first malformed chunk.
func parseWitResponse(body []byte) string {
	dec := json.NewDecoder(bytes.NewReader(body))

	var last, final string
	for {
		var chunk witChunk
		if err := dec.Decode(&chunk); err != nil {
			break
		}
		t := chunk.text()
		if t == "" {
			continue
		}
		last = t
		if chunk.IsFinal {
			final = t
		}
	}

	if final != "" {
		return final
	}
	return last
}
