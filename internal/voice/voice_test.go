package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/budgetly-bot/internal/bot/mocks"
)

type fakeTranscoder struct {
	mu    sync.Mutex
	err   error
	calls [][2]string
}

func (f *fakeTranscoder) Transcode(_ context.Context, src, dst string) error {
	f.mu.Lock()
	f.calls = append(f.calls, [2]string{src, dst})
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append([]byte("WAV:"), data...), 0o600)
}

type fakeTranscriber struct {
	text  string
	err   error
	block bool
	got   []byte
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, wavPath string) (string, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return "", err
	}
	f.got = data
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

func audioServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPipeline(t *testing.T, srv *httptest.Server, tc Transcoder, tr Transcriber, opts ...Option) (*Pipeline, *mocks.MockBot, string) {
	t.Helper()
	tg := mocks.NewMockBot()
	tg.FileDownloadLinkToReturn = srv.URL
	dir := t.TempDir()
	opts = append([]Option{WithHTTPClient(srv.Client()), WithTempDir(dir)}, opts...)
	return NewPipeline(tg, tc, tr, opts...), tg, dir
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "temporary files left behind")
}

func TestPipelineProcess(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		srv := audioServer(t, http.StatusOK, "ogg-bytes")
		tc := &fakeTranscoder{}
		tr := &fakeTranscriber{text: "  add five pounds coffee \n"}
		p, _, dir := newTestPipeline(t, srv, tc, tr)

		text, err := p.Process(context.Background(), "file-1")
		require.NoError(t, err)
		require.Equal(t, "add five pounds coffee", text)
		require.Equal(t, []byte("WAV:ogg-bytes"), tr.got)
		require.Len(t, tc.calls, 1)
		require.True(t, strings.HasSuffix(tc.calls[0][0], ".oga"))
		require.True(t, strings.HasSuffix(tc.calls[0][1], ".wav"))
		requireEmptyDir(t, dir)
	})

	t.Run("no transcriber", func(t *testing.T) {
		t.Parallel()

		srv := audioServer(t, http.StatusOK, "ogg")
		p, _, dir := newTestPipeline(t, srv, &fakeTranscoder{}, nil)
		require.False(t, p.Available())

		_, err := p.Process(context.Background(), "file-1")
		require.ErrorIs(t, err, ErrTranscriptionUnavailable)
		requireEmptyDir(t, dir)
	})

	t.Run("get file error", func(t *testing.T) {
		t.Parallel()

		srv := audioServer(t, http.StatusOK, "ogg")
		p, tg, dir := newTestPipeline(t, srv, &fakeTranscoder{}, &fakeTranscriber{text: "x"})
		tg.GetFileError = errors.New("boom")

		_, err := p.Process(context.Background(), "file-1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to get file info")
		requireEmptyDir(t, dir)
	})

	t.Run("non 200 status", func(t *testing.T) {
		t.Parallel()

		srv := audioServer(t, http.StatusBadGateway, "")
		p, _, dir := newTestPipeline(t, srv, &fakeTranscoder{}, &fakeTranscriber{text: "x"})

		_, err := p.Process(context.Background(), "file-1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "download failed with status 502")
		requireEmptyDir(t, dir)
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()

		srv := audioServer(t, http.StatusOK, "0123456789")
		tc := &fakeTranscoder{}
		p, _, dir := newTestPipeline(t, srv, tc, &fakeTranscriber{text: "x"}, WithMaxDownloadBytes(4))

		_, err := p.Process(context.Background(), "file-1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "exceeds size limit")
		require.Empty(t, tc.calls)
		requireEmptyDir(t, dir)
	})

	t.Run("transcode failure", func(t *testing.T) {
		t.Parallel()

		srv := audioServer(t, http.StatusOK, "ogg")
		p, _, dir := newTestPipeline(t, srv, &fakeTranscoder{err: errors.New("bad codec")}, &fakeTranscriber{text: "x"})

		_, err := p.Process(context.Background(), "file-1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "bad codec")
		require.NotErrorIs(t, err, ErrTranscriptionTimeout)
		requireEmptyDir(t, dir)
	})

	t.Run("transcriber failure", func(t *testing.T) {
		t.Parallel()

		srv := audioServer(t, http.StatusOK, "ogg")
		p, _, dir := newTestPipeline(t, srv, &fakeTranscoder{}, &fakeTranscriber{err: errors.New("quota")})

		_, err := p.Process(context.Background(), "file-1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "quota")
		requireEmptyDir(t, dir)
	})

	t.Run("empty transcript", func(t *testing.T) {
		t.Parallel()

		srv := audioServer(t, http.StatusOK, "ogg")
		p, _, dir := newTestPipeline(t, srv, &fakeTranscoder{}, &fakeTranscriber{text: " \t "})

		_, err := p.Process(context.Background(), "file-1")
		require.ErrorIs(t, err, ErrEmptyTranscript)
		requireEmptyDir(t, dir)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		srv := audioServer(t, http.StatusOK, "ogg")
		p, _, dir := newTestPipeline(t, srv, &fakeTranscoder{}, &fakeTranscriber{block: true})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := p.Process(ctx, "file-1")
		require.ErrorIs(t, err, ErrTranscriptionTimeout)
		requireEmptyDir(t, dir)
	})
}

func TestFFmpegArgs(t *testing.T) {
	t.Parallel()

	args := FFmpeg{}.Args("in.oga", "out.wav")
	require.Equal(t, "out.wav", args[len(args)-1])
	joined := strings.Join(args, " ")
	require.Contains(t, joined, "-i in.oga")
	require.Contains(t, joined, "-ar 16000")
	require.Contains(t, joined, "-ac 1")
}

func TestFFmpegTranscode_MissingBinary(t *testing.T) {
	t.Parallel()

	err := FFmpeg{Path: "/nonexistent/ffmpeg-binary"}.Transcode(context.Background(), "in.oga", "out.wav")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ffmpeg")
}
