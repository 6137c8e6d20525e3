package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/claytile-api/internal/domain"
	"github.com/claytile-api/internal/pkg/id"
	"github.com/claytile-api/internal/pkg/mediatype"
	"github.com/claytile-api/internal/pkg/size"
)

const DefaultConcurrency = 3

type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	StatusError     Status = "error"
)

var (
	ErrItemNotFound     = errors.New("upload not found")
	ErrNotRetryable     = errors.New("only failed uploads can be retried")
	ErrTypeNotAccepted  = errors.New("file type not accepted")
	ErrMultipleRejected = errors.New("only one file can be uploaded at a time")
	ErrClosed           = errors.New("upload queue closed")
)

// Transport moves one file to remote storage. progress receives the number
// of bytes sent so far; implementations must stop promptly when ctx is done.
type Transport interface {
	Upload(ctx context.Context, f File, progress func(sent int64)) (*domain.UploadedFile, error)
}

// Item is a snapshot of one queued upload.
type Item struct {
	ID       string
	File     File
	Status   Status
	Progress int
	Result   *domain.UploadedFile
	Err      string
	// Preview is a local reference for image files, empty otherwise.
	Preview string
}

type Options struct {
	// ConcurrencyLimit caps simultaneous transfers; zero means DefaultConcurrency.
	ConcurrencyLimit int
	AcceptedTypes    []string
	AllowMultiple    bool
	// OnComplete receives every finished result, in queue order, after each
	// successful transfer.
	OnComplete func(results []domain.UploadedFile)
	// OnChange receives a snapshot after every state transition.
	OnChange func(items []Item)
}

// Queue admits files in arrival order and runs at most ConcurrencyLimit
// transfers at once. Callbacks run on a single goroutine in transition order
// and may call back into the queue.
type Queue struct {
	transport Transport
	opts      Options

	mu      sync.Mutex
	entries []*entry
	changed chan struct{}
	closed  bool

	notices     []notice
	dispatching bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	item    Item
	attempt int
	cancel  context.CancelFunc
}

type notice struct {
	items   []Item
	results []domain.UploadedFile
}

func New(t Transport, opts Options) *Queue {
	if opts.ConcurrencyLimit <= 0 {
		opts.ConcurrencyLimit = DefaultConcurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		transport: t,
		opts:      opts,
		changed:   make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Add queues files as pending and returns their ids. The batch is rejected
// as a whole when any file is outside AcceptedTypes or when AllowMultiple is
// off and more than one file would be in flight.
func (q *Queue) Add(files ...File) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}
	for _, f := range files {
		if !mediatype.Allowed(q.opts.AcceptedTypes, f.ContentType) {
			return nil, fmt.Errorf("%s (%s): %w", f.Name, f.ContentType, ErrTypeNotAccepted)
		}
	}
	if !q.opts.AllowMultiple && q.countLocked(StatusPending, StatusUploading)+len(files) > 1 {
		return nil, ErrMultipleRejected
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		it := Item{ID: id.New(), File: f, Status: StatusPending}
		if mediatype.IsImage(f.ContentType) {
			it.Preview = f.Path
		}
		q.entries = append(q.entries, &entry{item: it})
		ids = append(ids, it.ID)
	}
	q.pumpLocked()
	q.notifyLocked(nil)
	return ids, nil
}

// Retry moves a failed item back to pending.
func (q *Queue) Retry(itemID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	e := q.findLocked(itemID)
	if e == nil {
		return ErrItemNotFound
	}
	if e.item.Status != StatusError {
		return ErrNotRetryable
	}
	e.item.Status = StatusPending
	e.item.Progress = 0
	e.item.Err = ""
	q.pumpLocked()
	q.notifyLocked(nil)
	return nil
}

// Remove drops an item in any state, cancelling its transfer if one is running.
func (q *Queue) Remove(itemID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.item.ID != itemID {
			continue
		}
		if e.cancel != nil {
			e.cancel()
		}
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		q.pumpLocked()
		q.notifyLocked(nil)
		return nil
	}
	return ErrItemNotFound
}

// Items returns a snapshot of every item in arrival order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Item returns a snapshot of one item.
func (q *Queue) Item(itemID string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e := q.findLocked(itemID); e != nil {
		return e.item, true
	}
	return Item{}, false
}

// Totals is the number and total size of finished uploads.
func (q *Queue) Totals() (count int, bytes int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.item.Status == StatusDone {
			count++
			bytes += e.item.File.Size
		}
	}
	return count, bytes
}

// Summary renders Totals, e.g. "3 files • 4.2 MB".
func (q *Queue) Summary() string {
	count, bytes := q.Totals()
	noun := "files"
	if count == 1 {
		noun = "file"
	}
	return fmt.Sprintf("%d %s • %s", count, noun, size.Format(bytes))
}

// Wait blocks until nothing is pending or uploading and every callback for
// the transitions so far has returned.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.idleLocked() {
			q.mu.Unlock()
			return nil
		}
		ch := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Close cancels every transfer and waits for them to return. Pending items
// are marked failed so Wait can return.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	for _, e := range q.entries {
		if e.item.Status == StatusPending {
			e.item.Status = StatusError
			e.item.Err = "upload canceled"
		}
	}
	q.notifyLocked(nil)
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context, itemID string, attempt int, f File) {
	defer q.wg.Done()

	res, err := q.transport.Upload(ctx, f, func(sent int64) {
		q.progress(itemID, attempt, sent)
	})
	q.finish(itemID, attempt, res, err)
}

func (q *Queue) progress(itemID string, attempt int, sent int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.currentLocked(itemID, attempt)
	if e == nil {
		return
	}
	pct := 0
	if e.item.File.Size > 0 {
		pct = int(sent * 100 / e.item.File.Size)
	}
	// 100 is reserved for done.
	if pct > 99 {
		pct = 99
	}
	if pct <= e.item.Progress {
		return
	}
	e.item.Progress = pct
	q.notifyLocked(nil)
}

func (q *Queue) finish(itemID string, attempt int, res *domain.UploadedFile, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.currentLocked(itemID, attempt)
	if e == nil {
		// Removed or superseded while in flight.
		return
	}
	e.cancel()
	e.cancel = nil

	var results []domain.UploadedFile
	if err == nil && res == nil {
		err = errors.New("upload returned no result")
	}
	if err != nil {
		e.item.Status = StatusError
		e.item.Err = errorMessage(err)
	} else {
		e.item.Status = StatusDone
		e.item.Progress = 100
		e.item.Result = res
		results = q.resultsLocked()
	}
	q.pumpLocked()
	q.notifyLocked(results)
}

// pumpLocked promotes the oldest pending items into free transfer slots.
func (q *Queue) pumpLocked() {
	if q.closed {
		return
	}
	free := q.opts.ConcurrencyLimit - q.countLocked(StatusUploading)
	for _, e := range q.entries {
		if free <= 0 {
			return
		}
		if e.item.Status != StatusPending {
			continue
		}
		q.startLocked(e)
		free--
	}
}

func (q *Queue) startLocked(e *entry) {
	e.attempt++
	e.item.Status = StatusUploading
	e.item.Progress = 0
	e.item.Err = ""
	e.item.Result = nil

	ctx, cancel := context.WithCancel(q.ctx)
	e.cancel = cancel
	q.wg.Add(1)
	go q.run(ctx, e.item.ID, e.attempt, e.item.File)
}

func (q *Queue) currentLocked(itemID string, attempt int) *entry {
	e := q.findLocked(itemID)
	if e == nil || e.attempt != attempt || e.item.Status != StatusUploading {
		return nil
	}
	return e
}

func (q *Queue) findLocked(itemID string) *entry {
	for _, e := range q.entries {
		if e.item.ID == itemID {
			return e
		}
	}
	return nil
}

func (q *Queue) countLocked(statuses ...Status) int {
	n := 0
	for _, e := range q.entries {
		for _, s := range statuses {
			if e.item.Status == s {
				n++
				break
			}
		}
	}
	return n
}

func (q *Queue) idleLocked() bool {
	return q.countLocked(StatusPending, StatusUploading) == 0 && !q.dispatching && len(q.notices) == 0
}

func (q *Queue) snapshotLocked() []Item {
	out := make([]Item, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.item
	}
	return out
}

func (q *Queue) resultsLocked() []domain.UploadedFile {
	var out []domain.UploadedFile
	for _, e := range q.entries {
		if e.item.Status == StatusDone && e.item.Result != nil {
			out = append(out, *e.item.Result)
		}
	}
	return out
}

// notifyLocked records a transition for the callbacks and wakes waiters.
func (q *Queue) notifyLocked(results []domain.UploadedFile) {
	if q.opts.OnChange != nil || (results != nil && q.opts.OnComplete != nil) {
		q.notices = append(q.notices, notice{items: q.snapshotLocked(), results: results})
		if !q.dispatching {
			q.dispatching = true
			go q.dispatch()
		}
	}
	q.broadcastLocked()
}

func (q *Queue) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *Queue) dispatch() {
	for {
		q.mu.Lock()
		if len(q.notices) == 0 {
			q.dispatching = false
			q.broadcastLocked()
			q.mu.Unlock()
			return
		}
		n := q.notices[0]
		q.notices = q.notices[1:]
		q.mu.Unlock()

		if q.opts.OnChange != nil {
			q.opts.OnChange(n.items)
		}
		if n.results != nil && q.opts.OnComplete != nil {
			q.opts.OnComplete(n.results)
		}
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "upload canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "upload timed out"
	default:
		return err.Error()
	}
}
