package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/webllm/renderify/internal/logging"
	"github.com/webllm/renderify/internal/monitoring"
	"github.com/webllm/renderify/internal/plan"
	"github.com/webllm/renderify/internal/resilience"
)

// ErrUnsupportedSpecifier is returned when no resolution rule applies.
var ErrUnsupportedSpecifier = errors.New("unsupported module specifier")

// registryScheme prefixes explicit registry specifiers.
const registryScheme = "registry:"

// versionPins are hard-coded pins for well-known UI libraries, guaranteeing
// cross-plan compatibility regardless of what a generator asked for.
var versionPins = map[string]string{
	"react":     "18.3.1",
	"react-dom": "18.3.1",
	"vue":       "3.4.27",
	"preact":    "10.22.0",
	"htm":       "3.1.1",
	"lit":       "3.1.4",
}

// Config holds resolver construction parameters.
type Config struct {
	// CDNBase is the primary content-delivery base URL, no trailing slash.
	CDNBase string
	// ImportMap maps specifiers directly to URLs, checked first.
	ImportMap map[string]string
	// IntegrityTimeout bounds one integrity fetch.
	IntegrityTimeout time.Duration
	// IntegrityRetries bounds integrity fetch attempts per URL.
	IntegrityRetries int
	// Metrics receives resolution and integrity-fetch counters when set.
	Metrics *monitoring.Metrics
}

// Module is a loaded module handle: the resolved descriptor plus body.
type Module struct {
	Specifier string
	URL       string
	Body      []byte
}

// Resolver resolves specifiers and caches descriptors, integrity digests,
// and loaded modules for its own lifetime.
type Resolver struct {
	cfg    Config
	client *resty.Client
	log    *logging.Logger

	mu          sync.RWMutex
	descriptors map[string]plan.ModuleDescriptor // by specifier
	modules     map[string]*Module               // by resolved URL

	integrity *integrityCache
}

// New creates a resolver with its own caches and HTTP client.
func New(cfg Config, log *logging.Logger) *Resolver {
	if cfg.IntegrityTimeout <= 0 {
		cfg.IntegrityTimeout = 10 * time.Second
	}
	if cfg.IntegrityRetries < 1 {
		cfg.IntegrityRetries = 1
	}
	client := resty.New().
		SetTimeout(cfg.IntegrityTimeout).
		SetHeader("User-Agent", "renderify-resolver/1.0")

	r := &Resolver{
		cfg:         cfg,
		client:      client,
		log:         log.Component("resolver"),
		descriptors: make(map[string]plan.ModuleDescriptor),
		modules:     make(map[string]*Module),
	}
	r.integrity = newIntegrityCache(client, resilience.RetryPolicy{
		MaxAttempts: cfg.IntegrityRetries,
		BaseBackoff: 200 * time.Millisecond,
	})
	return r
}

// ResolveSpecifier maps a specifier to its concrete URL.
func (r *Resolver) ResolveSpecifier(specifier string) (string, error) {
	if specifier == "" || specifier == plan.SelfModule {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSpecifier, specifier)
	}

	// 1. Import-map override wins.
	if url, ok := r.cfg.ImportMap[specifier]; ok {
		return url, nil
	}

	// 2. Absolute URLs pass through.
	if strings.HasPrefix(specifier, "http://") || strings.HasPrefix(specifier, "https://") {
		return specifier, nil
	}

	// 3. Registry-style specifiers rewrite against the CDN base.
	name := strings.TrimPrefix(specifier, registryScheme)
	if !validRegistryName(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSpecifier, specifier)
	}

	pkg, version := splitVersion(name)
	if pinned, ok := versionPins[pkg]; ok {
		version = pinned
	}

	if version != "" {
		return fmt.Sprintf("%s/%s@%s", r.cfg.CDNBase, pkg, version), nil
	}
	return fmt.Sprintf("%s/%s", r.cfg.CDNBase, pkg), nil
}

// Resolve builds (and caches) the full descriptor for a specifier. When
// withIntegrity is set and the URL is http(s), a content digest is fetched;
// fetch failures leave the integrity field empty rather than failing. A
// descriptor cached without a digest is upgraded in place the first time an
// integrity-requiring caller sees it.
func (r *Resolver) Resolve(ctx context.Context, specifier string, withIntegrity bool) (plan.ModuleDescriptor, error) {
	r.mu.RLock()
	desc, cached := r.descriptors[specifier]
	r.mu.RUnlock()

	if cached {
		if !withIntegrity || desc.Integrity != "" {
			return desc, nil
		}
		if digest, ok := r.fetchIntegrity(ctx, desc.URL); ok {
			desc.Integrity = digest
			r.mu.Lock()
			r.descriptors[specifier] = desc
			r.mu.Unlock()
		}
		return desc, nil
	}

	url, err := r.ResolveSpecifier(specifier)
	if err != nil {
		return plan.ModuleDescriptor{}, err
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.ResolutionsTotal.Inc()
	}

	desc = plan.ModuleDescriptor{URL: url}
	if _, version := splitVersion(strings.TrimPrefix(specifier, registryScheme)); version != "" {
		desc.Version = version
	}
	if pkg, _ := splitVersion(strings.TrimPrefix(specifier, registryScheme)); versionPins[pkg] != "" {
		desc.Version = versionPins[pkg]
	}

	if withIntegrity {
		if digest, ok := r.fetchIntegrity(ctx, url); ok {
			desc.Integrity = digest
		} else {
			r.log.Debug("integrity unavailable", zap.String("url", url))
		}
	}

	r.mu.Lock()
	// Idempotent overwrite: concurrent redundant resolution is fine.
	r.descriptors[specifier] = desc
	r.mu.Unlock()
	return desc, nil
}

// fetchIntegrity fetches a digest for http(s) URLs and records the outcome.
func (r *Resolver) fetchIntegrity(ctx context.Context, url string) (string, bool) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", false
	}
	digest, ok := r.integrity.Fetch(ctx, url)
	if r.cfg.Metrics != nil {
		result := "ok"
		if !ok {
			result = "miss"
		}
		r.cfg.Metrics.IntegrityFetches.WithLabelValues(result).Inc()
	}
	return digest, ok
}

// Load fetches a module body, cached by resolved URL.
func (r *Resolver) Load(ctx context.Context, specifier string) (*Module, error) {
	url, err := r.ResolveSpecifier(specifier)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	if mod, ok := r.modules[url]; ok {
		r.mu.RUnlock()
		return mod, nil
	}
	r.mu.RUnlock()

	resp, err := r.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to load %q: %w", specifier, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to load %q: status %d", specifier, resp.StatusCode())
	}

	mod := &Module{Specifier: specifier, URL: url, Body: resp.Body()}
	r.mu.Lock()
	r.modules[url] = mod
	r.mu.Unlock()
	return mod, nil
}

// Unload evicts a loaded module from the cache.
func (r *Resolver) Unload(specifier string) {
	url, err := r.ResolveSpecifier(specifier)
	if err != nil {
		return
	}
	r.mu.Lock()
	delete(r.modules, url)
	r.mu.Unlock()
}

// Integrity returns the cached-or-fetched digest for a URL.
func (r *Resolver) Integrity(ctx context.Context, url string) (string, bool) {
	return r.fetchIntegrity(ctx, url)
}

// validRegistryName accepts bare package names and scoped packages.
func validRegistryName(name string) bool {
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return false
	}
	if strings.HasPrefix(name, "@") {
		// Scoped: @scope/pkg
		rest := name[1:]
		slash := strings.IndexByte(rest, '/')
		return slash > 0 && slash < len(rest)-1
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "/") {
		return false
	}
	return true
}

// splitVersion splits "pkg@1.2.3" into name and version. Scoped packages
// keep their leading @.
func splitVersion(name string) (string, string) {
	at := strings.LastIndexByte(name, '@')
	if at <= 0 {
		return name, ""
	}
	return name[:at], name[at+1:]
}
