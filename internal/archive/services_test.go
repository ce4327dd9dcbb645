package archive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umccr/htsget-archive/internal/htserror"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

var signedURLExpiry = time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

func servicesServer(t *testing.T) *httptest.Server {
	r := chi.NewRouter()
	r.Get("/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "EGAF1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, Location{Path: "/archive/a/b.bam", Size: 1016, IndexFileID: "EGAF1I"})
	})
	r.Get("/keys/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "id") {
		case "EGAF1":
			writeJSON(w, Key{Passphrase: "open sesame"})
		case "EGAF2":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	r.Get("/signed-urls", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, SignedURL{URL: "https://archive.local" + r.URL.Query().Get("path") + "?sig=1", Expires: signedURLExpiry})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestMetadataClient(t *testing.T) {
	srv := servicesServer(t)
	c := NewMetadataClient(resty.New(), srv.URL)

	loc, err := c.Resolve(context.Background(), "EGAF1")
	require.NoError(t, err)
	assert.Equal(t, Location{FileID: "EGAF1", Path: "/archive/a/b.bam", Size: 1016, IndexFileID: "EGAF1I"}, loc)

	_, err = c.Resolve(context.Background(), "EGAF404")
	assert.Equal(t, htserror.NotFound, htserror.KindOf(err))
}

func TestKeyClient(t *testing.T) {
	srv := servicesServer(t)
	c := NewKeyClient(resty.New(), srv.URL)

	key, err := c.GetKey(context.Background(), "EGAF1")
	require.NoError(t, err)
	assert.Equal(t, "open sesame", key.Passphrase)

	_, err = c.GetKey(context.Background(), "EGAF2")
	assert.Equal(t, htserror.PermissionDenied, htserror.KindOf(err))
	_, err = c.GetKey(context.Background(), "EGAF3")
	assert.Equal(t, htserror.ServerError, htserror.KindOf(err))
}

func TestArchiveSigner(t *testing.T) {
	srv := servicesServer(t)
	s := NewArchiveSigner(resty.New(), srv.URL)

	signed, err := s.Sign(context.Background(), Location{Path: "/a/b.bam", Size: 99})
	require.NoError(t, err)
	assert.Equal(t, "https://archive.local/a/b.bam?sig=1", signed.URL)
	assert.Equal(t, int64(99), signed.Size)
	assert.True(t, signedURLExpiry.Equal(signed.Expires))
}

type fixedSigner string

func (f fixedSigner) Sign(_ context.Context, loc Location) (SignedURL, error) {
	return SignedURL{URL: string(f) + loc.Path, Size: loc.Size}, nil
}

func TestStoreSigner(t *testing.T) {
	s := &StoreSigner{Archive: fixedSigner("archive:"), S3: fixedSigner("s3:")}

	signed, err := s.Sign(context.Background(), Location{Path: "s3://bucket/key"})
	require.NoError(t, err)
	assert.Equal(t, "s3:s3://bucket/key", signed.URL)

	signed, err = s.Sign(context.Background(), Location{Path: "/vault/key"})
	require.NoError(t, err)
	assert.Equal(t, "archive:/vault/key", signed.URL)

	_, err = (&StoreSigner{Archive: fixedSigner("")}).Sign(context.Background(), Location{Path: "s3://b/k"})
	assert.Error(t, err)
}
