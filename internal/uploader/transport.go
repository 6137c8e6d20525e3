package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/claytile-api/internal/domain"
)

const (
	AuthorizePath = "/api/uploads/authorize"
	CompletePath  = "/api/uploads/complete"

	defaultChunkSize = 64 << 10
)

// HTTPTransport runs the delegated upload protocol against the api: it asks
// for an authorization, PUTs the bytes straight to storage, then confirms.
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client
	// ClientPayload is echoed to the server with every authorization request.
	ClientPayload string
	// Header is added to api requests, e.g. a session cookie.
	Header http.Header
	// ChunkSize is the progress and cancellation granularity.
	ChunkSize int
}

type authorizeBody struct {
	Filename      string `json:"filename"`
	ContentType   string `json:"content_type"`
	Size          int64  `json:"size"`
	ClientPayload string `json:"client_payload,omitempty"`
}

type completeBody struct {
	Token string              `json:"token"`
	Parts []domain.UploadPart `json:"parts,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (t *HTTPTransport) Upload(ctx context.Context, f File, progress func(sent int64)) (*domain.UploadedFile, error) {
	var auth domain.UploadAuthorization
	err := t.postJSON(ctx, AuthorizePath, authorizeBody{
		Filename:      f.Name,
		ContentType:   f.ContentType,
		Size:          f.Size,
		ClientPayload: t.ClientPayload,
	}, &auth)
	if err != nil {
		return nil, err
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	pr := &progressReader{ctx: ctx, r: rc, chunk: t.chunkSize(), report: progress}
	var parts []domain.UploadPart
	if auth.Multipart() {
		parts, err = t.putParts(ctx, &auth, f.Size, pr)
	} else {
		_, err = t.put(ctx, auth.URL, auth.ContentType, f.Size, pr)
	}
	if err != nil {
		return nil, err
	}

	var out domain.UploadedFile
	if err := t.postJSON(ctx, CompletePath, completeBody{Token: auth.Token, Parts: parts}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) putParts(ctx context.Context, auth *domain.UploadAuthorization, size int64, r io.Reader) ([]domain.UploadPart, error) {
	done := make([]domain.UploadPart, 0, len(auth.Parts))
	remaining := size
	for _, p := range auth.Parts {
		n := auth.PartSize
		if remaining < n {
			n = remaining
		}
		if n <= 0 {
			break
		}
		etag, err := t.put(ctx, p.URL, "", n, io.LimitReader(r, n))
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", p.Number, err)
		}
		done = append(done, domain.UploadPart{Number: p.Number, ETag: etag})
		remaining -= n
	}
	if remaining > 0 {
		return nil, fmt.Errorf("authorization covers %d bytes too few", remaining)
	}
	return done, nil
}

// put sends exactly size bytes from body and returns the storage ETag.
func (t *HTTPTransport) put(ctx context.Context, url, contentType string, size int64, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return "", err
	}
	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("storage rejected upload: %s", resp.Status)
	}
	return resp.Header.Get("ETag"), nil
}

func (t *HTTPTransport) postJSON(ctx context.Context, path string, in, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(t.BaseURL, "/")+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	for k, vs := range t.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e errorBody
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s", e.Error)
		}
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (t *HTTPTransport) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

func (t *HTTPTransport) chunkSize() int {
	if t.ChunkSize > 0 {
		return t.ChunkSize
	}
	return defaultChunkSize
}

// progressReader reports bytes as they are consumed and stops at the next
// chunk boundary once ctx is done.
type progressReader struct {
	ctx    context.Context
	r      io.Reader
	chunk  int
	sent   int64
	report func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	if len(b) > p.chunk {
		b = b[:p.chunk]
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.report != nil {
			p.report(p.sent)
		}
	}
	return n, err
}
