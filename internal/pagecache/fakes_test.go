package pagecache

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/umccr/htsget-archive/internal/archive"
	"github.com/umccr/htsget-archive/internal/crypt"
	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htserror"
)

const passphrase = "correct horse battery staple"

// fakeArchive holds encrypted objects and implements the collaborator
// interfaces and RangeSource.
type fakeArchive struct {
	mu       sync.Mutex
	objects  map[string][]byte
	plain    map[string][]byte
	fetches  map[string]int
	resolves int
	fail     bool
	// urlExpires is reported as the expiry of every signed URL
	urlExpires time.Time
	// gate, when set, blocks page fetches until closed
	gate    chan struct{}
	started chan struct{}
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		objects: map[string][]byte{},
		plain:   map[string][]byte{},
		fetches: map[string]int{},
	}
}

// add stores plain encrypted under a random IV, prefixed by the IV.
func (a *fakeArchive) add(t *testing.T, id string, plain []byte) {
	var iv [crypt.BlockSize]byte
	_, err := rand.Read(iv[:])
	require.NoError(t, err)
	enc, err := crypt.Encrypt(crypt.DeriveKey(passphrase, 32), iv, 0, plain)
	require.NoError(t, err)
	a.objects[id] = append(iv[:], enc...)
	a.plain[id] = plain
}

func (a *fakeArchive) Resolve(_ context.Context, id string) (archive.Location, error) {
	a.mu.Lock()
	a.resolves++
	fail := a.fail
	a.mu.Unlock()
	if fail {
		return archive.Location{}, htserror.E(htserror.ServerError, "metadata down", nil)
	}
	obj, ok := a.objects[id]
	if !ok {
		return archive.Location{}, htserror.E(htserror.NotFound, id, nil)
	}
	return archive.Location{FileID: id, Path: "/vault/" + id, Size: int64(len(obj))}, nil
}

func (a *fakeArchive) GetKey(_ context.Context, id string) (archive.Key, error) {
	return archive.Key{Passphrase: passphrase}, nil
}

func (a *fakeArchive) Sign(_ context.Context, loc archive.Location) (archive.SignedURL, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return archive.SignedURL{URL: loc.FileID, Size: loc.Size, Expires: a.urlExpires}, nil
}

func (a *fakeArchive) GetRange(ctx context.Context, url string, start, end int64) ([]byte, error) {
	a.mu.Lock()
	a.fetches[fmt.Sprintf("%s:%d", url, start)]++
	fail, gate, started := a.fail, a.gate, a.started
	a.mu.Unlock()
	if start >= htsconstants.IVSize && gate != nil {
		started <- struct{}{}
		<-gate
	}
	if fail {
		return nil, htserror.E(htserror.ServerError, "archive down", nil)
	}
	obj := a.objects[url]
	return append([]byte(nil), obj[start:end+1]...), nil
}

func (a *fakeArchive) count(url string, start int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetches[fmt.Sprintf("%s:%d", url, start)]
}

func (a *fakeArchive) resolveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolves
}

func (a *fakeArchive) setFail(fail bool) {
	a.mu.Lock()
	a.fail = fail
	a.mu.Unlock()
}
