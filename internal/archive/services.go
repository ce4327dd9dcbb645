package archive

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/umccr/htsget-archive/internal/awsutils"
	"github.com/umccr/htsget-archive/internal/htserror"
	log "github.com/umccr/htsget-archive/internal/htslog"
)

// Location describes an archived object as recorded by the metadata service.
type Location struct {
	FileID string `json:"fileId"`
	// Path is an archive path or an s3://bucket/key path.
	Path string `json:"path"`
	// Size is the archived object's size, IV prefix included.
	Size        int64  `json:"size"`
	Algorithm   string `json:"algorithm"`
	IndexFileID string `json:"indexFileId"`
}

// Key is the secret the key service holds for a file.
type Key struct {
	Passphrase string `json:"passphrase"`
}

// SignedURL is a fetchable URL and the size of the object behind it.
// Expires is zero when the URL does not expire.
type SignedURL struct {
	URL     string    `json:"url"`
	Size    int64     `json:"size"`
	Expires time.Time `json:"expires"`
}

// Metadata resolves file ids.
type Metadata interface {
	Resolve(ctx context.Context, fileID string) (Location, error)
}

// Keys looks up the secret of a file.
type Keys interface {
	GetKey(ctx context.Context, fileID string) (Key, error)
}

// Signer turns an object location into a fetchable URL.
type Signer interface {
	Sign(ctx context.Context, loc Location) (SignedURL, error)
}

const (
	filesEndpoint      = "/files/{id}"
	keysEndpoint       = "/keys/{id}"
	signedURLsEndpoint = "/signed-urls"
)

// MetadataClient is the HTTP client of the metadata service.
type MetadataClient struct {
	client    *resty.Client
	serverUrl string
}

func NewMetadataClient(client *resty.Client, serverUrl string) *MetadataClient {
	return &MetadataClient{client: client, serverUrl: serverUrl}
}

func (c *MetadataClient) Resolve(ctx context.Context, fileID string) (Location, error) {
	var loc Location
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", fileID).
		SetResult(&loc).
		Get(c.serverUrl + filesEndpoint)
	if err := serviceError("metadata", fileID, resp, err); err != nil {
		return Location{}, err
	}
	if loc.FileID == "" {
		loc.FileID = fileID
	}
	return loc, nil
}

// KeyClient is the HTTP client of the key service.
type KeyClient struct {
	client    *resty.Client
	serverUrl string
}

func NewKeyClient(client *resty.Client, serverUrl string) *KeyClient {
	return &KeyClient{client: client, serverUrl: serverUrl}
}

func (c *KeyClient) GetKey(ctx context.Context, fileID string) (Key, error) {
	var key Key
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", fileID).
		SetResult(&key).
		Get(c.serverUrl + keysEndpoint)
	if err := serviceError("key", fileID, resp, err); err != nil {
		return Key{}, err
	}
	if key.Passphrase == "" {
		return Key{}, htserror.E(htserror.ServerError, "key service returned an empty key for "+fileID, nil)
	}
	return key, nil
}

// ArchiveSigner asks the archive object store for a signed URL.
type ArchiveSigner struct {
	client    *resty.Client
	serverUrl string
}

func NewArchiveSigner(client *resty.Client, serverUrl string) *ArchiveSigner {
	return &ArchiveSigner{client: client, serverUrl: serverUrl}
}

func (s *ArchiveSigner) Sign(ctx context.Context, loc Location) (SignedURL, error) {
	var signed SignedURL
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("path", loc.Path).
		SetResult(&signed).
		Get(s.serverUrl + signedURLsEndpoint)
	if err := serviceError("archive", loc.Path, resp, err); err != nil {
		return SignedURL{}, err
	}
	if signed.URL == "" {
		return SignedURL{}, htserror.E(htserror.ServerError, "archive returned no url for "+loc.Path, nil)
	}
	if signed.Size == 0 {
		signed.Size = loc.Size
	}
	return signed, nil
}

// S3Signer presigns objects of the secondary S3 store.
type S3Signer struct {
	Client awsutils.S3ClientApi
}

func (s *S3Signer) Sign(ctx context.Context, loc Location) (SignedURL, error) {
	dto := awsutils.S3Dto{ObjPath: loc.Path, Client: s.Client}
	if _, _, err := dto.BucketAndKey(); err != nil {
		return SignedURL{}, htserror.E(htserror.ServerError, "signing", err)
	}
	size, err := awsutils.HeadS3Object(ctx, dto)
	if err != nil {
		return SignedURL{}, htserror.E(htserror.NotFound, loc.Path, err)
	}
	signedAt := time.Now()
	signed, err := awsutils.PresignGetObject(ctx, dto)
	if err != nil {
		return SignedURL{}, htserror.E(htserror.ServerError, "presigning "+loc.Path, err)
	}
	return SignedURL{URL: signed, Size: size, Expires: signedAt.Add(awsutils.PresignLifetime)}, nil
}

// StoreSigner signs s3:// paths with S3 and everything else with Archive.
type StoreSigner struct {
	Archive Signer
	S3      Signer
}

func (s *StoreSigner) Sign(ctx context.Context, loc Location) (SignedURL, error) {
	if awsutils.IsS3Path(loc.Path) {
		if s.S3 == nil {
			return SignedURL{}, htserror.E(htserror.ServerError, "no s3 signer configured for "+loc.Path, nil)
		}
		return s.S3.Sign(ctx, loc)
	}
	return s.Archive.Sign(ctx, loc)
}

func serviceError(service, id string, resp *resty.Response, err error) error {
	if err != nil {
		return htserror.E(htserror.ServerError, service+" service unreachable", err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return htserror.E(htserror.NotFound, fmt.Sprintf("%s service has no entry for %s", service, url.PathEscape(id)), nil)
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return htserror.E(htserror.PermissionDenied, fmt.Sprintf("%s service refused %s", service, id), nil)
	case !resp.IsSuccess():
		log.Error("%s service returned %d for %s", service, code, id)
		return htserror.E(htserror.ServerError, fmt.Sprintf("%s service returned %d", service, code), nil)
	}
	return nil
}
