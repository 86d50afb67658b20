// Package voice turns Telegram voice notes into text: download, transcode to
// 16 kHz mono WAV, transcribe.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxDownloadBytes caps the size of a downloaded voice note.
const DefaultMaxDownloadBytes = 20 << 20

var (
	// ErrTranscriptionUnavailable means no transcription provider is configured.
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")
	// ErrTranscriptionTimeout means the job ran past its deadline.
	ErrTranscriptionTimeout = errors.New("transcription timed out")
	// ErrEmptyTranscript means the provider returned no text.
	ErrEmptyTranscript = errors.New("empty transcript")
)

// FileGetter resolves Telegram file ids to download links.
// *bot.Bot satisfies it.
type FileGetter interface {
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// Transcoder converts the audio file at src into a WAV file at dst.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// Transcriber returns the spoken text of a 16 kHz mono WAV file.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Pipeline runs one voice note through download, transcode and transcribe.
type Pipeline struct {
	files       FileGetter
	transcoder  Transcoder
	transcriber Transcriber
	client      *http.Client
	tempDir     string
	maxBytes    int64
	tracer      trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient sets the client used to download files.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.client = c }
}

// WithTempDir sets the directory for intermediate files.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// WithMaxDownloadBytes overrides DefaultMaxDownloadBytes.
func WithMaxDownloadBytes(n int64) Option {
	return func(p *Pipeline) { p.maxBytes = n }
}

// WithTracer sets the tracer used for pipeline spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// NewPipeline creates a Pipeline. transcriber may be nil, in which case
// Process always fails with ErrTranscriptionUnavailable.
func NewPipeline(files FileGetter, transcoder Transcoder, transcriber Transcriber, opts ...Option) *Pipeline {
	p := &Pipeline{
		files:       files,
		transcoder:  transcoder,
		transcriber: transcriber,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   time.Minute,
		},
		maxBytes: DefaultMaxDownloadBytes,
		tracer:   otel.Tracer("budgetly/voice"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Available reports whether a transcriber is configured.
func (p *Pipeline) Available() bool {
	return p.transcriber != nil
}

// Process downloads, transcodes and transcribes the voice note fileID.
// Intermediate files are removed before it returns.
func (p *Pipeline) Process(ctx context.Context, fileID string) (text string, err error) {
	ctx, span := p.tracer.Start(ctx, "voice.Process")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if p.transcriber == nil {
		return "", ErrTranscriptionUnavailable
	}

	src, err := p.tempFile("voice-*.oga")
	if err != nil {
		return "", err
	}
	defer removeFile(src)

	if err := p.download(ctx, fileID, src); err != nil {
		return "", timeoutOr(ctx, fmt.Errorf("download: %w", err))
	}

	wav, err := p.tempFile("voice-*.wav")
	if err != nil {
		return "", err
	}
	defer removeFile(wav)

	if err := p.transcoder.Transcode(ctx, src, wav); err != nil {
		return "", timeoutOr(ctx, fmt.Errorf("transcode: %w", err))
	}

	text, err = p.transcriber.Transcribe(ctx, wav)
	if err != nil {
		return "", timeoutOr(ctx, fmt.Errorf("transcribe: %w", err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	span.SetAttributes(attribute.Int("voice.transcript_length", len(text)))
	return text, nil
}

func (p *Pipeline) tempFile(pattern string) (string, error) {
	f, err := os.CreateTemp(p.tempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		removeFile(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}

func (p *Pipeline) download(ctx context.Context, fileID, dst string) error {
	file, err := p.files.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.files.FileDownloadLink(file), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", dst, err)
	}
	n, err := io.Copy(out, io.LimitReader(resp.Body, p.maxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if n > p.maxBytes {
		return fmt.Errorf("file exceeds size limit of %d bytes", p.maxBytes)
	}
	return nil
}

func timeoutOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTranscriptionTimeout, err)
	}
	return err
}

func removeFile(path string) {
	_ = os.Remove(path)
}
