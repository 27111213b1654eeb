package campaign

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mselser95/mm-oracle/pkg/cache"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	defaultTTL     = time.Hour

	// maxDocumentSize bounds downloaded manifests and results.
	maxDocumentSize = 16 << 20
)

// FetcherConfig holds fetcher configuration.
type FetcherConfig struct {
	HTTPClient *http.Client
	Timeout    time.Duration

	// Cache holds validated manifests by hash; optional.
	Cache    cache.Cache
	CacheTTL time.Duration

	ManifestHash HashAlgorithm
	ResultsHash  HashAlgorithm

	Logger *zap.Logger
}

// Fetcher downloads, verifies and validates campaign documents.
type Fetcher struct {
	httpClient   *http.Client
	cache        cache.Cache
	cacheTTL     time.Duration
	manifestHash HashAlgorithm
	resultsHash  HashAlgorithm
	logger       *zap.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultTTL
	}
	if cfg.ManifestHash == "" {
		cfg.ManifestHash = DefaultManifestHash
	}
	if cfg.ResultsHash == "" {
		cfg.ResultsHash = DefaultResultsHash
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		httpClient:   httpClient,
		cache:        cfg.Cache,
		cacheTTL:     cfg.CacheTTL,
		manifestHash: cfg.ManifestHash,
		resultsHash:  cfg.ResultsHash,
		logger:       logger,
	}
}

// RetrieveManifest returns the validated manifest. A URL is downloaded and
// checked against hash; anything else is parsed as inline JSON.
func (f *Fetcher) RetrieveManifest(ctx context.Context, manifestOrURL, hash string) (*Manifest, error) {
	if !isHTTPURL(manifestOrURL) {
		m, err := ParseManifest([]byte(manifestOrURL))
		recordFetch("manifest", err)
		return m, err
	}

	key := "manifest:" + strings.ToLower(hash)
	if f.cache != nil && hash != "" {
		if m, ok := cache.GetAs[*Manifest](f.cache, key); ok {
			copied := *m
			return &copied, nil
		}
	}

	m, err := f.fetchManifest(ctx, manifestOrURL, hash)
	recordFetch("manifest", err)
	if err != nil {
		f.logger.Warn("manifest-retrieval-failed",
			zap.String("url", manifestOrURL),
			zap.Error(err))
		return nil, err
	}

	if f.cache != nil && hash != "" {
		copied := *m
		f.cache.Set(key, &copied, f.cacheTTL)
	}
	return m, nil
}

func (f *Fetcher) fetchManifest(ctx context.Context, rawURL, hash string) (*Manifest, error) {
	data, err := f.download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	err = VerifyHash(data, hash, f.manifestHash)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// DownloadResults downloads a results document, checks it against hash and
// validates it.
func (f *Fetcher) DownloadResults(ctx context.Context, rawURL, hash string) (*ResultsDocument, error) {
	doc, err := f.fetchResults(ctx, rawURL, hash)
	recordFetch("results", err)
	if err != nil {
		f.logger.Warn("results-download-failed",
			zap.String("url", rawURL),
			zap.Error(err))
		return nil, err
	}
	return doc, nil
}

func (f *Fetcher) fetchResults(ctx context.Context, rawURL, hash string) (*ResultsDocument, error) {
	data, err := f.download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	err = VerifyHash(data, hash, f.resultsHash)
	if err != nil {
		return nil, err
	}
	return ParseResults(data)
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status code %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("download %s: document exceeds %d bytes", rawURL, maxDocumentSize)
	}
	return data, nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
