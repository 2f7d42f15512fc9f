package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/c360/heritagestreams/errors"
)

// sniffBytes is how much of a body is kept for MIME detection.
const sniffBytes = 3072

// probe issues a HEAD request and reads content type and length.
func (r *Resolver) probe(ctx context.Context, rawURL string) (Metadata, error) {
	v, err := r.breakers.execute(rawURL, func() (interface{}, error) {
		return r.probeOnce(ctx, rawURL)
	})
	if err != nil {
		return Metadata{}, err
	}
	return v.(Metadata), nil
}

func (r *Resolver) probeOnce(ctx context.Context, rawURL string) (Metadata, error) {
	resp, err := r.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return Metadata{}, errors.WrapTransient(err, "Resolver", "probe", "HEAD "+rawURL)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Metadata{}, statusError(resp.StatusCode, "probe", "HEAD "+rawURL)
	}

	meta := Metadata{}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		meta.MimeType = baseMimeType(ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n >= 0 {
			meta.Size = n
		}
	}
	return meta, nil
}

// verify fetches the file, compares its sha256 with meta.Checksum and fills
// in size and MIME type when missing. Failures are logged, never returned.
func (r *Resolver) verify(ctx context.Context, eventID, rawURL string, meta *Metadata) {
	digest, size, head, err := r.fetchDigest(ctx, rawURL)
	if err != nil {
		r.logger.Warn("Checksum verification skipped",
			"event_id", eventID,
			"url", rawURL,
			"error", err)
		return
	}

	ok := digest == meta.Checksum
	meta.ChecksumVerified = &ok
	if !ok {
		err := errors.WrapInvalid(
			fmt.Errorf("%w: declared %s, computed %s", errors.ErrChecksumFailed, meta.Checksum, digest),
			"Resolver", "verify", "compare digest")
		r.metrics.RecordError("media_resolver", errors.Classify(err).String())
		r.logger.Warn("Checksum mismatch",
			"event_id", eventID,
			"url", rawURL,
			"error", err)
	}
	if meta.Size == 0 {
		meta.Size = size
	}
	if meta.MimeType == "" {
		meta.MimeType = sniffMimeType(head)
	}
}

// fetchDigest streams the body through sha256, keeping the first bytes for
// MIME sniffing.
func (r *Resolver) fetchDigest(ctx context.Context, rawURL string) (string, int64, []byte, error) {
	v, err := r.breakers.execute(rawURL, func() (interface{}, error) {
		return r.fetchDigestOnce(ctx, rawURL)
	})
	if err != nil {
		return "", 0, nil, err
	}
	d := v.(digest)
	return d.sum, d.size, d.head, nil
}

type digest struct {
	sum  string
	size int64
	head []byte
}

func (r *Resolver) fetchDigestOnce(ctx context.Context, rawURL string) (digest, error) {
	resp, err := r.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return digest{}, errors.WrapTransient(err, "Resolver", "fetchDigest", "GET "+rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return digest{}, statusError(resp.StatusCode, "fetchDigest", "GET "+rawURL)
	}

	hasher := sha256.New()
	head := &headBuffer{limit: sniffBytes}
	n, err := io.Copy(io.MultiWriter(hasher, head), io.LimitReader(resp.Body, r.maxFetchBytes+1))
	if err != nil {
		return digest{}, errors.WrapTransient(err, "Resolver", "fetchDigest", "read body")
	}
	if n > r.maxFetchBytes {
		return digest{}, errors.WrapInvalid(
			fmt.Errorf("%w: body exceeds %d bytes", errors.ErrResourceExhausted, r.maxFetchBytes),
			"Resolver", "fetchDigest", "read body")
	}

	return digest{sum: hex.EncodeToString(hasher.Sum(nil)), size: n, head: head.buf}, nil
}

// statusError classifies a non-2xx response. Server errors and throttling
// may clear later, anything else will not.
func statusError(code int, method, action string) error {
	err := fmt.Errorf("%w: HTTP %d", errors.ErrUnexpectedStatus, code)
	if code == http.StatusTooManyRequests || code >= 500 {
		return errors.WrapTransient(err, "Resolver", method, action)
	}
	return errors.WrapInvalid(err, "Resolver", method, action)
}

func (r *Resolver) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRateLimited, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// headBuffer keeps the first limit bytes written to it.
type headBuffer struct {
	buf   []byte
	limit int
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.limit - len(h.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		h.buf = append(h.buf, p[:room]...)
	}
	return len(p), nil
}
