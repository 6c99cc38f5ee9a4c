package resolver

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/webllm/renderify/internal/resilience"
)

// integrityCache computes and memoizes sha384 subresource digests by URL.
// Failures are memoized too, so a dead URL is not re-fetched per plan.
type integrityCache struct {
	client *resty.Client
	policy resilience.RetryPolicy

	mu      sync.RWMutex
	entries map[string]integrityEntry
}

type integrityEntry struct {
	digest string
	ok     bool
}

func newIntegrityCache(client *resty.Client, policy resilience.RetryPolicy) *integrityCache {
	return &integrityCache{
		client:  client,
		policy:  policy,
		entries: make(map[string]integrityEntry),
	}
}

// Fetch returns the "sha384-<base64>" digest for an http(s) URL. Network
// errors, non-2xx statuses, and timeouts all yield ("", false): integrity is
// a hardening measure, not a hard dependency.
func (c *integrityCache) Fetch(ctx context.Context, url string) (string, bool) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", false
	}

	c.mu.RLock()
	if entry, ok := c.entries[url]; ok {
		c.mu.RUnlock()
		return entry.digest, entry.ok
	}
	c.mu.RUnlock()

	digest, err := c.fetchDigest(ctx, url)
	entry := integrityEntry{digest: digest, ok: err == nil}

	c.mu.Lock()
	c.entries[url] = entry
	c.mu.Unlock()
	return entry.digest, entry.ok
}

func (c *integrityCache) fetchDigest(ctx context.Context, url string) (string, error) {
	var body []byte
	retrier := resilience.NewRetrier(c.policy)
	err := retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := c.client.R().SetContext(ctx).Get(url)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("status %d", resp.StatusCode())
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		return "", err
	}

	sum := sha512.Sum384(body)
	return "sha384-" + base64.StdEncoding.EncodeToString(sum[:]), nil
}

// Seed inserts a precomputed digest, used by tests and manifest imports.
func (c *integrityCache) Seed(url, digest string) {
	c.mu.Lock()
	c.entries[url] = integrityEntry{digest: digest, ok: true}
	c.mu.Unlock()
}
