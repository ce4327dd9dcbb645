// Package bootstrap wires the server's components together.
package bootstrap

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/dig"

	"github.com/umccr/htsget-archive/internal/archive"
	"github.com/umccr/htsget-archive/internal/awsutils"
	"github.com/umccr/htsget-archive/internal/htsconfig"
	"github.com/umccr/htsget-archive/internal/htsdao"
	log "github.com/umccr/htsget-archive/internal/htslog"
	"github.com/umccr/htsget-archive/internal/htsserver"
	"github.com/umccr/htsget-archive/internal/pagecache"
	"github.com/umccr/htsget-archive/internal/slice"
)

// Run builds the server from cfg and serves until ctx is done.
func Run(ctx context.Context, cfg htsconfig.Config) error {
	container, err := NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	return container.Invoke(func(s *htsserver.Server, headers *pagecache.HeaderCache, pages *pagecache.PageCache) error {
		defer headers.Close()
		defer pages.Close()
		return s.Serve(ctx)
	})
}

// NewContainer provides every component of the server.
func NewContainer(ctx context.Context, cfg htsconfig.Config) (*dig.Container, error) {
	container := dig.New()
	constructors := []interface{}{
		func() htsconfig.Config { return cfg },
		func() context.Context { return ctx },
		httpClient,
		byteRangeSource,
		metadataClient,
		keyClient,
		signer,
		headerCache,
		pageCache,
		provider,
		factory,
		server,
	}
	for _, constructor := range constructors {
		if err := container.Provide(constructor); err != nil {
			return nil, err
		}
	}
	return container, nil
}

func httpClient(cfg htsconfig.Config) *resty.Client {
	return resty.New().
		SetTimeout(time.Duration(cfg.Fetch.Timeout)).
		SetLogger(log.Logger())
}

func byteRangeSource(client *resty.Client, cfg htsconfig.Config) *archive.Source {
	return archive.NewSource(client, cfg.Fetch.Attempts, time.Duration(cfg.Fetch.RetryWait))
}

func metadataClient(client *resty.Client, cfg htsconfig.Config) archive.Metadata {
	return archive.NewMetadataClient(client, cfg.Services.MetadataURL)
}

func keyClient(client *resty.Client, cfg htsconfig.Config) archive.Keys {
	return archive.NewKeyClient(client, cfg.Services.KeysURL)
}

// signer serves s3:// paths from S3 when an AWS configuration is available
// and everything else from the archive service.
func signer(ctx context.Context, client *resty.Client, cfg htsconfig.Config) archive.Signer {
	store := &archive.StoreSigner{Archive: archive.NewArchiveSigner(client, cfg.Services.ArchiveURL)}
	s3Client, err := (&awsutils.S3Dto{}).NewS3Client(ctx)
	if err != nil {
		log.Warn("no AWS configuration, s3 paths will not be served: %v", err)
		return store
	}
	store.S3 = &archive.S3Signer{Client: s3Client}
	return store
}

func headerCache(metadata archive.Metadata, keys archive.Keys, signer archive.Signer, source *archive.Source, cfg htsconfig.Config) (*pagecache.HeaderCache, error) {
	return pagecache.NewHeaderCache(metadata, keys, signer, source, pagecache.HeaderOptions{
		TTL:      time.Duration(cfg.Cache.HeaderTTL),
		Grace:    time.Duration(cfg.Cache.GraceWindow),
		Capacity: cfg.Cache.HeaderCapacity,
	})
}

func pageCache(headers *pagecache.HeaderCache, source *archive.Source, cfg htsconfig.Config) (*pagecache.PageCache, error) {
	return pagecache.New(headers, source, pagecache.Options{
		PageSize:          cfg.Cache.PageSize,
		Capacity:          cfg.Cache.PageCapacity,
		TTL:               time.Duration(cfg.Cache.PageTTL),
		Grace:             time.Duration(cfg.Cache.GraceWindow),
		LoaderConcurrency: cfg.Cache.LoaderConcurrency,
	})
}

func provider(pages *pagecache.PageCache) htsdao.Provider {
	return htsdao.NewArchiveProvider(pages)
}

func factory(cfg htsconfig.Config) *slice.Factory {
	return slice.NewFactory(cfg.Slice.MaxBlockBytes)
}

func server(cfg htsconfig.Config, provider htsdao.Provider, factory *slice.Factory) *htsserver.Server {
	return htsserver.NewServer(cfg.Server, provider, factory)
}
