package httpclient

import (
	"errors"
	"io"
	"sync/atomic"
)

// ErrResponseTooLarge is returned when a response body, raw or decoded, is
// larger than Config.MaxResponseBytes.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// limitedBody wraps an http.Response.Body to:
// 1. Fail with ErrResponseTooLarge once more than limit bytes arrive
// 2. Track the number of bytes read
// 3. Report the total exactly once, on EOF or Close
type limitedBody struct {
	body   io.ReadCloser
	limit  int64
	read   atomic.Int64
	closed atomic.Bool

	// onClose is called with total bytes read when the body is done.
	onClose func(bytesRead int64)
}

// newLimitedBody bounds body to limit bytes. onClose may be nil.
func newLimitedBody(body io.ReadCloser, limit int64, onClose func(bytesRead int64)) io.ReadCloser {
	if body == nil {
		return nil
	}
	return &limitedBody{
		body:    body,
		limit:   limit,
		onClose: onClose,
	}
}

// Read reads from the underlying body. It asks for at most one byte beyond
// the limit so an oversized body is detected without buffering it.
func (b *limitedBody) Read(p []byte) (int, error) {
	remaining := b.limit - b.read.Load()
	if remaining < 0 {
		return 0, ErrResponseTooLarge
	}
	if int64(len(p)) > remaining+1 {
		p = p[:remaining+1]
	}

	n, err := b.body.Read(p)
	total := b.read.Add(int64(n))

	if total > b.limit {
		return n - int(total-b.limit), ErrResponseTooLarge
	}
	if errors.Is(err, io.EOF) {
		b.finish()
	}
	return n, err
}

// Close closes the underlying body and reports the byte count.
func (b *limitedBody) Close() error {
	b.finish()
	return b.body.Close()
}

// finish calls onClose exactly once (Close may follow EOF).
func (b *limitedBody) finish() {
	if b.closed.CompareAndSwap(false, true) && b.onClose != nil {
		b.onClose(b.read.Load())
	}
}

// readLimited drains r into memory, failing with ErrResponseTooLarge when it
// yields more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}
