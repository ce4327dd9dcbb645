// Package pagecache serves decrypted pages of archived files. Pages are
// fetched by byte range, decrypted in counter mode and cached with a bounded
// capacity; concurrent misses for one page share a single load.
package pagecache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/umccr/htsget-archive/internal/crypt"
	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htserror"
	log "github.com/umccr/htsget-archive/internal/htslog"
)

// Page is a decrypted, immutable run of a file's bytes. The last page of a
// file is short and pages past the end are empty.
type Page struct {
	FileID string
	Index  int64
	Data   []byte
}

type pageEntry struct {
	page     *Page
	loadedAt time.Time
}

type Options struct {
	PageSize          int64
	Capacity          int64
	TTL               time.Duration
	Grace             time.Duration
	LoaderConcurrency int64
}

// PageCache is safe for concurrent use.
type PageCache struct {
	headers  *HeaderCache
	source   RangeSource
	pageSize int64
	ttl      time.Duration
	grace    time.Duration

	cache   *ristretto.Cache[string, *pageEntry]
	group   singleflight.Group
	loaders *semaphore.Weighted
	now     func() time.Time
}

func New(headers *HeaderCache, source RangeSource, opts Options) (*PageCache, error) {
	if opts.PageSize <= 0 || opts.PageSize%crypt.BlockSize != 0 {
		return nil, fmt.Errorf("page size %d is not a positive multiple of %d", opts.PageSize, crypt.BlockSize)
	}
	if opts.LoaderConcurrency <= 0 {
		opts.LoaderConcurrency = htsconstants.DefaultLoaderConcurrency
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *pageEntry]{
		NumCounters:        10 * opts.Capacity,
		MaxCost:            opts.Capacity,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &PageCache{
		headers:  headers,
		source:   source,
		pageSize: opts.PageSize,
		ttl:      opts.TTL,
		grace:    opts.Grace,
		cache:    cache,
		loaders:  semaphore.NewWeighted(opts.LoaderConcurrency),
		now:      time.Now,
	}, nil
}

// PageSize is the size of every page but the last.
func (c *PageCache) PageSize() int64 {
	return c.pageSize
}

// Header resolves the file, see HeaderCache.Ensure.
func (c *PageCache) Header(ctx context.Context, fileID string) (*Header, error) {
	return c.headers.Ensure(ctx, fileID)
}

func pageKey(fileID string, index int64) string {
	return fileID + "#" + strconv.FormatInt(index, 10)
}

// GetPage returns page index of fileID.
func (c *PageCache) GetPage(ctx context.Context, fileID string, index int64) (*Page, error) {
	if index < 0 {
		return nil, htserror.E(htserror.InvalidRange, fmt.Sprintf("page %d", index), nil)
	}
	key := pageKey(fileID, index)
	var stale *Page
	if e, ok := c.cache.Get(key); ok {
		if c.now().Sub(e.loadedAt) < c.ttl {
			pageHits.Inc()
			return e.page, nil
		}
		stale = e.page
	}
	pageMisses.Inc()
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		page, err := c.loadPage(context.WithoutCancel(ctx), fileID, index)
		if err != nil {
			pageLoads.WithLabelValues("error").Inc()
			return nil, err
		}
		pageLoads.WithLabelValues("ok").Inc()
		c.cache.SetWithTTL(key, &pageEntry{page: page, loadedAt: c.now()}, 1, c.ttl+c.grace)
		c.cache.Wait()
		return page, nil
	})
	if err != nil {
		if stale != nil && htserror.KindOf(err) == htserror.ServerError {
			log.Warn("serving stale page %s: %v", key, err)
			staleServed.WithLabelValues("page").Inc()
			return stale, nil
		}
		return nil, err
	}
	return v.(*Page), nil
}

func (c *PageCache) loadPage(ctx context.Context, fileID string, index int64) (*Page, error) {
	h, err := c.headers.Ensure(ctx, fileID)
	if err != nil {
		return nil, err
	}
	page := &Page{FileID: fileID, Index: index}
	offset := index * c.pageSize
	if offset >= h.Size {
		return page, nil
	}
	encStart := offset + htsconstants.IVSize
	encEnd := encStart + c.pageSize
	if limit := h.Size + htsconstants.IVSize; encEnd > limit {
		encEnd = limit
	}

	if err := c.loaders.Acquire(ctx, 1); err != nil {
		return nil, htserror.E(htserror.ServerError, "waiting for a page loader", err)
	}
	defer c.loaders.Release(1)

	start := c.now()
	cipherText, err := c.source.GetRange(ctx, h.URL, encStart, encEnd-1)
	if err != nil {
		return nil, err
	}
	page.Data, err = crypt.Decrypt(h.Key, h.IV, offset, cipherText)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded page %d of %s (%d bytes) in %s", index, fileID, len(page.Data), c.now().Sub(start))
	return page, nil
}

// Close releases the cache's background goroutines.
func (c *PageCache) Close() {
	c.cache.Close()
}
