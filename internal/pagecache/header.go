package pagecache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/umccr/htsget-archive/internal/archive"
	"github.com/umccr/htsget-archive/internal/crypt"
	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htserror"
	log "github.com/umccr/htsget-archive/internal/htslog"
)

// Header is everything needed to read and decrypt one archived file.
type Header struct {
	FileID      string
	IndexFileID string
	Path        string
	// Size is the logical, decrypted size.
	Size      int64
	Algorithm string
	IV        [crypt.BlockSize]byte
	Key       []byte
	URL       string
	// URLExpires is when URL stops working, zero if never.
	URLExpires time.Time
}

// urlValid reports whether the header's URL can still be fetched at now,
// keeping margin in hand.
func (h *Header) urlValid(now time.Time, margin time.Duration) bool {
	return h.URLExpires.IsZero() || now.Before(h.URLExpires.Add(-margin))
}

// RangeSource fetches inclusive byte ranges of a URL.
type RangeSource interface {
	GetRange(ctx context.Context, url string, start, end int64) ([]byte, error)
}

type headerEntry struct {
	header     *Header
	resolvedAt time.Time
}

// HeaderOptions tune a HeaderCache.
type HeaderOptions struct {
	TTL   time.Duration
	Grace time.Duration
	// Capacity bounds the number of cached headers.
	Capacity int64
}

// HeaderCache resolves files into Headers and keeps them until the TTL passes
// or the signed URL is about to expire, whichever is first. If re-resolving
// fails within the grace window the old entry is served instead of the error,
// as long as its URL still works. Entries leave the cache once TTL plus grace
// has passed.
type HeaderCache struct {
	metadata archive.Metadata
	keys     archive.Keys
	signer   archive.Signer
	source   RangeSource

	ttl   time.Duration
	grace time.Duration
	cache *ristretto.Cache[string, *headerEntry]
	group singleflight.Group
	now   func() time.Time
}

func NewHeaderCache(metadata archive.Metadata, keys archive.Keys, signer archive.Signer, source RangeSource, opts HeaderOptions) (*HeaderCache, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = htsconstants.DefaultHeaderCapacity
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *headerEntry]{
		NumCounters:        10 * opts.Capacity,
		MaxCost:            opts.Capacity,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &HeaderCache{
		metadata: metadata,
		keys:     keys,
		signer:   signer,
		source:   source,
		ttl:      opts.TTL,
		grace:    opts.Grace,
		cache:    cache,
		now:      time.Now,
	}, nil
}

// Ensure returns the header of fileID, resolving it on a miss.
func (c *HeaderCache) Ensure(ctx context.Context, fileID string) (*Header, error) {
	var stale *Header
	now := c.now()
	if e, ok := c.cache.Get(fileID); ok {
		if now.Sub(e.resolvedAt) < c.ttl && e.header.urlValid(now, htsconstants.SignedURLMargin) {
			return e.header, nil
		}
		if e.header.urlValid(now, 0) {
			stale = e.header
		}
	}
	v, err, _ := c.group.Do(fileID, func() (interface{}, error) {
		h, err := c.resolve(context.WithoutCancel(ctx), fileID)
		if err != nil {
			return nil, err
		}
		c.cache.SetWithTTL(fileID, &headerEntry{header: h, resolvedAt: c.now()}, 1, c.ttl+c.grace)
		c.cache.Wait()
		return h, nil
	})
	if err != nil {
		if stale != nil && htserror.KindOf(err) == htserror.ServerError {
			log.Warn("serving stale header of %s: %v", fileID, err)
			staleServed.WithLabelValues("header").Inc()
			return stale, nil
		}
		return nil, err
	}
	return v.(*Header), nil
}

func (c *HeaderCache) resolve(ctx context.Context, fileID string) (*Header, error) {
	start := c.now()
	loc, err := c.metadata.Resolve(ctx, fileID)
	if err != nil {
		return nil, err
	}
	keySize, err := crypt.KeySize(loc.Algorithm)
	if err != nil {
		return nil, err
	}
	key, err := c.keys.GetKey(ctx, fileID)
	if err != nil {
		return nil, err
	}
	signed, err := c.signer.Sign(ctx, loc)
	if err != nil {
		return nil, err
	}
	size := signed.Size
	if size == 0 {
		size = loc.Size
	}
	if size < htsconstants.IVSize {
		return nil, htserror.E(htserror.ServerError, fmt.Sprintf("archived object %s has %d bytes, too short for an IV", fileID, size), nil)
	}
	iv, err := c.source.GetRange(ctx, signed.URL, 0, htsconstants.IVSize-1)
	if err != nil {
		return nil, err
	}
	h := &Header{
		FileID:      fileID,
		IndexFileID: loc.IndexFileID,
		Path:        loc.Path,
		Size:        size - htsconstants.IVSize,
		Algorithm:   loc.Algorithm,
		Key:         crypt.DeriveKey(key.Passphrase, keySize),
		URL:         signed.URL,
		URLExpires:  signed.Expires,
	}
	copy(h.IV[:], iv)
	log.Debug("resolved header of %s (%d bytes) in %s", fileID, h.Size, c.now().Sub(start))
	return h, nil
}

// Close releases the cache's background goroutines.
func (c *HeaderCache) Close() {
	c.cache.Close()
}
