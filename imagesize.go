package site

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

// ImageSize is a width and height in pixels.
type ImageSize struct {
	Width  int
	Height int
}

// DefaultImageSize is reported for images whose size is not known yet.
var DefaultImageSize = ImageSize{Width: 320, Height: 480}

// maxHeaderBytes bounds how much of a remote image is read to find its size.
const maxHeaderBytes = 1 << 20

// SizeCache stores image sizes by absolute URL.
type SizeCache interface {
	Get(ctx context.Context, url string) (ImageSize, bool, error)
	Set(ctx context.Context, url string, size ImageSize) error
}

// SizeFetcher looks up the size of a remote image.
type SizeFetcher interface {
	FetchSize(ctx context.Context, url string) (ImageSize, error)
}

// MemorySizeCache is a process-local SizeCache.
type MemorySizeCache struct {
	mu    sync.RWMutex
	sizes map[string]ImageSize
}

// NewMemorySizeCache creates an empty MemorySizeCache.
func NewMemorySizeCache() *MemorySizeCache {
	return &MemorySizeCache{sizes: make(map[string]ImageSize)}
}

func (m *MemorySizeCache) Get(_ context.Context, url string) (ImageSize, bool, error) {
	m.mu.RLock()
	size, ok := m.sizes[url]
	m.mu.RUnlock()
	return size, ok, nil
}

func (m *MemorySizeCache) Set(_ context.Context, url string, size ImageSize) error {
	m.mu.Lock()
	m.sizes[url] = size
	m.mu.Unlock()
	return nil
}

// RedisSizeCache keeps image sizes in Redis so that they survive restarts
// and are shared between instances.
type RedisSizeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSizeCache creates a RedisSizeCache. A zero ttl keeps entries forever.
func NewRedisSizeCache(client *redis.Client, ttl time.Duration) *RedisSizeCache {
	return &RedisSizeCache{client: client, ttl: ttl}
}

func imageSizeKey(url string) string {
	return fmt.Sprintf("imagesize:%s", url)
}

func (r *RedisSizeCache) Get(ctx context.Context, url string) (ImageSize, bool, error) {
	val, err := r.client.Get(ctx, imageSizeKey(url)).Result()
	if errors.Is(err, redis.Nil) {
		return ImageSize{}, false, nil
	}
	if err != nil {
		return ImageSize{}, false, err
	}
	var size ImageSize
	if _, err := fmt.Sscanf(val, "%dx%d", &size.Width, &size.Height); err != nil {
		return ImageSize{}, false, fmt.Errorf("site: bad cached size %q: %w", val, err)
	}
	return size, true, nil
}

func (r *RedisSizeCache) Set(ctx context.Context, url string, size ImageSize) error {
	return r.client.Set(ctx, imageSizeKey(url), fmt.Sprintf("%dx%d", size.Width, size.Height), r.ttl).Err()
}

// HTTPSizeFetcher downloads the start of an image and decodes only its
// header. PNG, JPEG, GIF and WebP are understood.
type HTTPSizeFetcher struct {
	Client *http.Client
}

// NewHTTPSizeFetcher creates an HTTPSizeFetcher with a bounded client timeout.
func NewHTTPSizeFetcher() *HTTPSizeFetcher {
	return &HTTPSizeFetcher{Client: &http.Client{Timeout: 10 * time.Second}}
}

func (f *HTTPSizeFetcher) FetchSize(ctx context.Context, url string) (ImageSize, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ImageSize{}, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return ImageSize{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ImageSize{}, fmt.Errorf("site: fetch %s: status %d", url, resp.StatusCode)
	}
	cfg, _, err := image.DecodeConfig(io.LimitReader(resp.Body, maxHeaderBytes))
	if err != nil {
		return ImageSize{}, fmt.Errorf("site: decode %s: %w", url, err)
	}
	return ImageSize{Width: cfg.Width, Height: cfg.Height}, nil
}

// ImageSizer answers image size lookups without blocking. Unknown sizes are
// fetched in the background, at most once at a time per URL, and reported as
// DefaultImageSize until the fetch completes.
type ImageSizer struct {
	baseURL string
	cache   SizeCache
	fetcher SizeFetcher
	logger  echo.Logger
	metrics *Metrics
	timeout time.Duration

	group singleflight.Group
	wg    sync.WaitGroup
}

// NewImageSizer creates an ImageSizer. Relative URLs are resolved against
// baseURL.
func NewImageSizer(baseURL string, cache SizeCache, fetcher SizeFetcher, logger echo.Logger) *ImageSizer {
	return &ImageSizer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		cache:   cache,
		fetcher: fetcher,
		logger:  logger,
		timeout: 15 * time.Second,
	}
}

// Size returns the cached size of url, or DefaultImageSize after starting a
// background fetch.
func (s *ImageSizer) Size(url string) ImageSize {
	url = s.absolute(url)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	size, ok, err := s.cache.Get(ctx, url)
	if err != nil {
		s.logger.Warnf("image size cache get %s: %v", url, err)
	}
	if ok {
		return size
	}
	s.Prefetch(url)
	return DefaultImageSize
}

// Prefetch starts a background fetch of the size of url.
func (s *ImageSizer) Prefetch(url string) {
	url = s.absolute(url)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _, _ = s.group.Do(url, func() (any, error) {
			return nil, s.fetch(url)
		})
	}()
}

// Wait blocks until every background fetch has finished.
func (s *ImageSizer) Wait() {
	s.wg.Wait()
}

func (s *ImageSizer) fetch(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, ok, _ := s.cache.Get(ctx, url); ok {
		return nil
	}
	size, err := s.fetcher.FetchSize(ctx, url)
	if err != nil {
		s.metrics.imageFetch("error")
		s.logger.Warnf("image size %s: %v", url, err)
		return err
	}
	s.metrics.imageFetch("ok")
	if err := s.cache.Set(ctx, url, size); err != nil {
		s.logger.Warnf("image size cache set %s: %v", url, err)
		return err
	}
	s.logger.Debugf("image size %s: %dx%d", url, size.Width, size.Height)
	return nil
}

func (s *ImageSizer) absolute(url string) string {
	if strings.HasPrefix(url, "/") && !strings.HasPrefix(url, "//") {
		return s.baseURL + url
	}
	return url
}
