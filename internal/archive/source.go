// Package archive reads byte ranges of archived objects over HTTP and talks to
// the services that locate objects and hold their keys.
package archive

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	gerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/retry"

	"github.com/umccr/htsget-archive/internal/htserror"
	log "github.com/umccr/htsget-archive/internal/htslog"
)

// Source fetches byte ranges of objects behind signed URLs. Failed fetches
// are retried a fixed number of times with a fixed sleep in between.
type Source struct {
	client   *resty.Client
	attempts int
	policy   retry.Policy
}

// NewSource returns a Source making at most attempts tries per fetch and
// sleeping wait between them.
func NewSource(client *resty.Client, attempts int, wait time.Duration) *Source {
	if client == nil {
		client = resty.New()
	}
	if attempts < 1 {
		attempts = 1
	}
	return &Source{
		client:   client,
		attempts: attempts,
		policy:   retry.MaxRetries(retry.Backoff(wait, wait, 1), attempts),
	}
}

// Head returns the size of the object at url.
func (s *Source) Head(ctx context.Context, url string) (int64, error) {
	var size int64
	err := s.do(ctx, "HEAD "+redact(url), func() error {
		resp, err := s.client.R().SetContext(ctx).Head(url)
		if err != nil {
			return gerrors.E(gerrors.Net, err)
		}
		if err := checkStatus(resp); err != nil {
			return err
		}
		if resp.RawResponse == nil || resp.RawResponse.ContentLength < 0 {
			return gerrors.E(gerrors.Integrity, "no content length")
		}
		size = resp.RawResponse.ContentLength
		return nil
	})
	return size, err
}

// GetRange returns the bytes [start, end] of the object at url. The end is
// inclusive, as in an HTTP Range header.
func (s *Source) GetRange(ctx context.Context, url string, start, end int64) ([]byte, error) {
	if start < 0 || end < start {
		return nil, htserror.E(htserror.InvalidRange, fmt.Sprintf("bytes=%d-%d", start, end), nil)
	}
	want := end - start + 1
	var data []byte
	err := s.do(ctx, fmt.Sprintf("GET %s bytes=%d-%d", redact(url), start, end), func() error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetHeader("Range", fmt.Sprintf("bytes=%d-%d", start, end)).
			Get(url)
		if err != nil {
			return gerrors.E(gerrors.Net, err)
		}
		if err := checkStatus(resp); err != nil {
			return err
		}
		body := resp.Body()
		// a server that ignores Range sends the whole object
		if resp.StatusCode() == http.StatusOK && int64(len(body)) > end {
			body = body[start : end+1]
		}
		if int64(len(body)) != want {
			return gerrors.E(gerrors.Integrity, fmt.Sprintf("got %d bytes, want %d", len(body), want))
		}
		data = body
		fetchedBytes.Add(float64(len(body)))
		return nil
	})
	return data, err
}

func (s *Source) do(ctx context.Context, what string, fetch func() error) error {
	for try := 1; ; try++ {
		err := fetch()
		if err == nil {
			return nil
		}
		if gerrors.Is(gerrors.NotExist, err) {
			return htserror.E(htserror.NotFound, what, err)
		}
		log.Warn("%s: attempt %d/%d failed: %v", what, try, s.attempts, err)
		if werr := retry.Wait(ctx, s.policy, try); werr != nil {
			fetchFailures.Inc()
			return htserror.E(htserror.ServerError, what, err)
		}
		fetchRetries.Inc()
	}
}

func checkStatus(resp *resty.Response) error {
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return gerrors.E(gerrors.NotExist, resp.Request.URL)
	case code < 200 || code > 299:
		return gerrors.E(gerrors.Unavailable, fmt.Sprintf("status %d", code))
	}
	return nil
}

// redact drops the query string, which carries signatures.
func redact(url string) string {
	for i := 0; i < len(url); i++ {
		if url[i] == '?' {
			return url[:i]
		}
	}
	return url
}
