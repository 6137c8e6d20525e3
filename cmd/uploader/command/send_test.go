package command

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claytile-api/internal/domain"
	"github.com/claytile-api/internal/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyTransport fails the first failures attempts for each file name.
type flakyTransport struct {
	mu       sync.Mutex
	failures int
	calls    map[string]int
}

func (t *flakyTransport) Upload(_ context.Context, f uploader.File, progress func(int64)) (*domain.UploadedFile, error) {
	t.mu.Lock()
	t.calls[f.Name]++
	n := t.calls[f.Name]
	t.mu.Unlock()

	if n <= t.failures {
		return nil, errors.New("storage rejected the upload")
	}
	progress(f.Size)
	return &domain.UploadedFile{
		URL:         "https://cdn.example/uploads/" + f.Name,
		Pathname:    "uploads/" + f.Name,
		Size:        f.Size,
		ContentType: f.ContentType,
		Filename:    f.Name,
	}, nil
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("plain text body"), 0o600))
		paths = append(paths, p)
	}
	return paths
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSend_AllSucceed(t *testing.T) {
	var out bytes.Buffer
	tr := &flakyTransport{calls: map[string]int{}}

	err := send(testContext(t), &out, sendOptions{concurrency: 2}, tr, writeFiles(t, "a.txt", "b.txt"))

	require.NoError(t, err)
	assert.Contains(t, out.String(), "done      a.txt")
	assert.Contains(t, out.String(), "https://cdn.example/uploads/b.txt")
	assert.Contains(t, out.String(), "2 files • 30 B")
}

func TestSend_RetriesFailedUploads(t *testing.T) {
	var out bytes.Buffer
	tr := &flakyTransport{failures: 1, calls: map[string]int{}}

	err := send(testContext(t), &out, sendOptions{concurrency: 1, retries: 1}, tr, writeFiles(t, "a.txt"))

	require.NoError(t, err)
	assert.Contains(t, out.String(), "error     a.txt: storage rejected the upload")
	assert.Contains(t, out.String(), "1 file")
	assert.Equal(t, 2, tr.calls["a.txt"])
}

func TestSend_ReportsRemainingFailures(t *testing.T) {
	var out bytes.Buffer
	tr := &flakyTransport{failures: 5, calls: map[string]int{}}

	err := send(testContext(t), &out, sendOptions{concurrency: 1, retries: 2}, tr, writeFiles(t, "a.txt"))

	require.EqualError(t, err, "1 upload(s) failed")
	assert.Equal(t, 3, tr.calls["a.txt"])
}

func TestSend_RejectsUnacceptedType(t *testing.T) {
	var out bytes.Buffer
	tr := &flakyTransport{calls: map[string]int{}}

	err := send(testContext(t), &out, sendOptions{concurrency: 1, accept: []string{"image/*"}}, tr, writeFiles(t, "notes.txt"))

	assert.ErrorIs(t, err, uploader.ErrTypeNotAccepted)
	assert.Empty(t, tr.calls)
}

// holdTransport keeps hold.Name in flight until release is closed.
type holdTransport struct {
	hold    string
	release chan struct{}
}

func (t *holdTransport) Upload(ctx context.Context, f uploader.File, progress func(int64)) (*domain.UploadedFile, error) {
	if f.Name == t.hold {
		select {
		case <-t.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	progress(f.Size)
	return &domain.UploadedFile{URL: "https://cdn.example/uploads/" + f.Name, Filename: f.Name, Size: f.Size}, nil
}

// signalWriter closes seen once marker has been written.
type signalWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	marker string
	seen   chan struct{}
	closed bool
}

func (w *signalWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.buf.Write(p)
	if !w.closed && strings.Contains(w.buf.String(), w.marker) {
		w.closed = true
		close(w.seen)
	}
	return n, err
}

func (w *signalWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestSend_PrintsEachURLOnceWhenLaterFileFinishesFirst(t *testing.T) {
	seen := make(chan struct{})
	out := &signalWriter{marker: "uploads/b.txt", seen: seen}
	tr := &holdTransport{hold: "a.txt", release: seen}

	err := send(testContext(t), out, sendOptions{concurrency: 2}, tr, writeFiles(t, "a.txt", "b.txt"))
	require.NoError(t, err)

	got := out.String()
	assert.Equal(t, 1, strings.Count(got, "https://cdn.example/uploads/a.txt"))
	assert.Equal(t, 1, strings.Count(got, "https://cdn.example/uploads/b.txt"))
	assert.Less(t, strings.Index(got, "uploads/b.txt"), strings.Index(got, "uploads/a.txt"))
}

func TestSend_MissingFile(t *testing.T) {
	err := send(testContext(t), &bytes.Buffer{}, sendOptions{concurrency: 1}, &flakyTransport{calls: map[string]int{}}, []string{"/does/not/exist.png"})
	assert.Error(t, err)
}

func TestSendOptionsFromFlags(t *testing.T) {
	cmd := SendCommand()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--api", "https://api.example/",
		"--concurrency", "4",
		"--accept", "image/*,application/pdf",
		"--retries", "2",
		"--cookie", "tok",
	}))

	opts, err := sendOptionsFromFlags(cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "https://api.example", opts.api)
	assert.Equal(t, 4, opts.concurrency)
	assert.Equal(t, []string{"image/*", "application/pdf"}, opts.accept)
	assert.Equal(t, 2, opts.retries)

	tr := newTransport(opts)
	assert.Equal(t, "auth-token=tok", tr.Header.Get("Cookie"))
}

func TestSendOptionsFromFlags_Invalid(t *testing.T) {
	cmd := SendCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--concurrency", "0"}))

	_, err := sendOptionsFromFlags(cmd.Flags())
	assert.ErrorContains(t, err, "--concurrency")
}
