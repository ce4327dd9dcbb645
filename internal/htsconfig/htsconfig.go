// Package htsconfig loads server configuration from defaults, an optional JSON
// file, a .env file and HTSGET_* environment variables, in that order of
// increasing precedence.
package htsconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getlantern/deepcopy"
	"github.com/joho/godotenv"

	"github.com/umccr/htsget-archive/internal/htsconstants"
	log "github.com/umccr/htsget-archive/internal/htslog"
)

// Duration is a time.Duration that reads as "5h" or "30s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type ServerConfig struct {
	ListenAddr  string   `json:"listenAddr"`
	BaseURL     string   `json:"baseUrl"`
	CorsOrigins []string `json:"corsOrigins"`
	LogLevel    string   `json:"logLevel"`
	LogFormat   string   `json:"logFormat"`
}

// ServicesConfig locates the external collaborators.
type ServicesConfig struct {
	MetadataURL string `json:"metadataUrl"`
	KeysURL     string `json:"keysUrl"`
	ArchiveURL  string `json:"archiveUrl"`
}

type CacheConfig struct {
	PageSize          int64    `json:"pageSize"`
	PageCapacity      int64    `json:"pageCapacity"`
	HeaderCapacity    int64    `json:"headerCapacity"`
	PageTTL           Duration `json:"pageTtl"`
	HeaderTTL         Duration `json:"headerTtl"`
	GraceWindow       Duration `json:"graceWindow"`
	LoaderConcurrency int64    `json:"loaderConcurrency"`
}

type FetchConfig struct {
	Attempts  int      `json:"attempts"`
	RetryWait Duration `json:"retryWait"`
	Timeout   Duration `json:"timeout"`
}

type SliceConfig struct {
	MaxBlockBytes int64 `json:"maxBlockBytes"`
}

type Config struct {
	Server   ServerConfig   `json:"server"`
	Services ServicesConfig `json:"services"`
	Cache    CacheConfig    `json:"cache"`
	Fetch    FetchConfig    `json:"fetch"`
	Slice    SliceConfig    `json:"slice"`
}

var defaults = Config{
	Server: ServerConfig{
		ListenAddr:  htsconstants.DefaultListenAddr,
		BaseURL:     "http://localhost:3000",
		CorsOrigins: []string{"*"},
		LogLevel:    "info",
		LogFormat:   "text",
	},
	Cache: CacheConfig{
		PageSize:          htsconstants.DefaultPageSize,
		PageCapacity:      htsconstants.DefaultPageCapacity,
		HeaderCapacity:    htsconstants.DefaultHeaderCapacity,
		PageTTL:           Duration(htsconstants.DefaultPageTTL),
		HeaderTTL:         Duration(htsconstants.DefaultHeaderTTL),
		GraceWindow:       Duration(htsconstants.DefaultGraceWindow),
		LoaderConcurrency: htsconstants.DefaultLoaderConcurrency,
	},
	Fetch: FetchConfig{
		Attempts:  htsconstants.DefaultFetchAttempts,
		RetryWait: Duration(htsconstants.DefaultRetryWait),
		Timeout:   Duration(2 * time.Minute),
	},
	Slice: SliceConfig{
		MaxBlockBytes: htsconstants.DefaultMaxBlockBytes,
	},
}

// Default returns a fresh copy of the default configuration.
func Default() Config {
	var cfg Config
	if err := deepcopy.Copy(&cfg, &defaults); err != nil {
		panic(err)
	}
	return cfg
}

// Load builds the configuration. path names an optional JSON file; an empty
// path skips it.
func Load(path string) (Config, error) {
	if err := godotenv.Load(".env"); err == nil {
		log.Debug("loaded environment from .env")
	}
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	i64 := func(name string, dst *int64) error {
		if v, ok := os.LookupEnv(name); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
		return nil
	}
	dur := func(name string, dst *Duration) error {
		if v, ok := os.LookupEnv(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = Duration(d)
		}
		return nil
	}

	str("HTSGET_LISTEN_ADDR", &cfg.Server.ListenAddr)
	str("HTSGET_BASE_URL", &cfg.Server.BaseURL)
	str("HTSGET_LOG_LEVEL", &cfg.Server.LogLevel)
	str("HTSGET_LOG_FORMAT", &cfg.Server.LogFormat)
	if v, ok := os.LookupEnv("HTSGET_CORS_ORIGINS"); ok {
		cfg.Server.CorsOrigins = strings.Split(v, ",")
	}
	str("HTSGET_METADATA_URL", &cfg.Services.MetadataURL)
	str("HTSGET_KEYS_URL", &cfg.Services.KeysURL)
	str("HTSGET_ARCHIVE_URL", &cfg.Services.ArchiveURL)

	var attempts int64 = int64(cfg.Fetch.Attempts)
	for _, err := range []error{
		i64("HTSGET_PAGE_SIZE", &cfg.Cache.PageSize),
		i64("HTSGET_PAGE_CAPACITY", &cfg.Cache.PageCapacity),
		i64("HTSGET_HEADER_CAPACITY", &cfg.Cache.HeaderCapacity),
		i64("HTSGET_LOADER_CONCURRENCY", &cfg.Cache.LoaderConcurrency),
		i64("HTSGET_MAX_BLOCK_BYTES", &cfg.Slice.MaxBlockBytes),
		i64("HTSGET_FETCH_ATTEMPTS", &attempts),
		dur("HTSGET_PAGE_TTL", &cfg.Cache.PageTTL),
		dur("HTSGET_HEADER_TTL", &cfg.Cache.HeaderTTL),
		dur("HTSGET_GRACE_WINDOW", &cfg.Cache.GraceWindow),
		dur("HTSGET_RETRY_WAIT", &cfg.Fetch.RetryWait),
		dur("HTSGET_FETCH_TIMEOUT", &cfg.Fetch.Timeout),
	} {
		if err != nil {
			return err
		}
	}
	cfg.Fetch.Attempts = int(attempts)
	return nil
}

// Validate rejects settings the cache and planners cannot work with.
func (c Config) Validate() error {
	switch {
	case c.Cache.PageSize <= 0 || c.Cache.PageSize%16 != 0:
		return fmt.Errorf("page size %d must be a positive multiple of 16", c.Cache.PageSize)
	case c.Cache.PageCapacity <= 0:
		return fmt.Errorf("page capacity %d must be positive", c.Cache.PageCapacity)
	case c.Cache.HeaderCapacity <= 0:
		return fmt.Errorf("header capacity %d must be positive", c.Cache.HeaderCapacity)
	case c.Cache.LoaderConcurrency <= 0:
		return fmt.Errorf("loader concurrency %d must be positive", c.Cache.LoaderConcurrency)
	case c.Slice.MaxBlockBytes <= 0:
		return fmt.Errorf("max block bytes %d must be positive", c.Slice.MaxBlockBytes)
	case c.Fetch.Attempts < 1:
		return fmt.Errorf("fetch attempts %d must be at least 1", c.Fetch.Attempts)
	}
	return nil
}
