package pagecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htserror"
)

func TestHeaderRefreshedBeforeURLExpires(t *testing.T) {
	a := newFakeArchive()
	a.add(t, "EGAF1", randomBytes(t, 100))
	base := time.Now()
	a.urlExpires = base.Add(2 * time.Minute)

	h := newHeaders(t, a, time.Hour)
	clock := base
	h.now = func() time.Time { return clock }
	ctx := context.Background()

	header, err := h.Ensure(ctx, "EGAF1")
	require.NoError(t, err)
	assert.True(t, a.urlExpires.Equal(header.URLExpires))
	assert.Equal(t, 1, a.resolveCount())

	clock = base.Add(30 * time.Second)
	_, err = h.Ensure(ctx, "EGAF1")
	require.NoError(t, err)
	assert.Equal(t, 1, a.resolveCount(), "well inside the TTL and the URL lifetime")

	// the TTL is an hour away but the URL is within the margin of expiring
	clock = a.urlExpires.Add(-htsconstants.SignedURLMargin / 2)
	_, err = h.Ensure(ctx, "EGAF1")
	require.NoError(t, err)
	assert.Equal(t, 2, a.resolveCount())

	// a URL that still works is served while the archive is down
	a.setFail(true)
	clock = a.urlExpires.Add(-time.Second)
	stale, err := h.Ensure(ctx, "EGAF1")
	require.NoError(t, err)
	assert.Equal(t, header.URL, stale.URL)
	assert.Equal(t, 3, a.resolveCount())

	// an expired one is not
	clock = a.urlExpires.Add(time.Second)
	_, err = h.Ensure(ctx, "EGAF1")
	require.Error(t, err)
	assert.Equal(t, htserror.ServerError, htserror.KindOf(err))
}

func TestHeaderWithoutURLExpiryLastsTTL(t *testing.T) {
	a := newFakeArchive()
	a.add(t, "EGAF1", randomBytes(t, 100))
	h := newHeaders(t, a, time.Hour)
	base := time.Now()
	clock := base
	h.now = func() time.Time { return clock }
	ctx := context.Background()

	header, err := h.Ensure(ctx, "EGAF1")
	require.NoError(t, err)
	assert.True(t, header.URLExpires.IsZero())

	clock = base.Add(59 * time.Minute)
	_, err = h.Ensure(ctx, "EGAF1")
	require.NoError(t, err)
	assert.Equal(t, 1, a.resolveCount())

	clock = base.Add(61 * time.Minute)
	_, err = h.Ensure(ctx, "EGAF1")
	require.NoError(t, err)
	assert.Equal(t, 2, a.resolveCount())
}

func TestExpiredHeadersAreDropped(t *testing.T) {
	a := newFakeArchive()
	a.add(t, "EGAF1", randomBytes(t, 100))
	h, err := NewHeaderCache(a, a, a, a, HeaderOptions{
		TTL:      20 * time.Millisecond,
		Grace:    20 * time.Millisecond,
		Capacity: 16,
	})
	require.NoError(t, err)
	t.Cleanup(h.Close)
	ctx := context.Background()

	_, err = h.Ensure(ctx, "EGAF1")
	require.NoError(t, err)
	_, ok := h.cache.Get("EGAF1")
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := h.cache.Get("EGAF1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	_, err = h.Ensure(ctx, "EGAF1")
	require.NoError(t, err)
	assert.Equal(t, 2, a.resolveCount())
}

func TestHeaderCapacityDefaults(t *testing.T) {
	a := newFakeArchive()
	h, err := NewHeaderCache(a, a, a, a, HeaderOptions{TTL: time.Minute})
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, int64(htsconstants.DefaultHeaderCapacity), h.cache.MaxCost())
}
