package dictionary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/termlookup/pkg/term"
)

// Source opens the raw system dictionary document.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads the dictionary from a local file.
type FileSource string

// Open implements Source.
func (p FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(string(p))
}

// HTTPSource fetches the dictionary from a URL.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Open implements Source.
func (s HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to load dictionary: %s", resp.Status)
	}
	return resp.Body, nil
}

// Cache holds the system terms for the lifetime of the process. The first
// successful load is kept and returned on every later call. A failed load yields
// an empty collection and is retried on the next call.
type Cache struct {
	mu     sync.Mutex
	terms  []term.Record
	loaded bool
	logger *zap.Logger
}

// NewCache creates an empty cache. A nil logger discards output.
func NewCache(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{logger: logger}
}

// SystemTerms returns the cached terms, loading them from src on first use.
// It never returns an error: any failure is logged and degrades to no terms.
func (c *Cache) SystemTerms(ctx context.Context, src Source) []term.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.terms
	}

	terms, err := load(ctx, src)
	if err != nil {
		c.logger.Warn("system dictionary unavailable, continuing without it", zap.Error(err))
		return []term.Record{}
	}
	c.terms = terms
	c.loaded = true
	c.logger.Info("system dictionary loaded", zap.Int("terms", len(terms)))
	return c.terms
}

// Loaded reports whether a load has succeeded.
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

func load(ctx context.Context, src Source) ([]term.Record, error) {
	if src == nil {
		return nil, fmt.Errorf("no dictionary source configured")
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	entries, err := ParseEntries(rc)
	if err != nil {
		return nil, err
	}
	return Hydrate(entries), nil
}
