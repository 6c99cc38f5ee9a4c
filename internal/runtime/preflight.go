package runtime

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/webllm/renderify/internal/logging"
	"github.com/webllm/renderify/internal/plan"
	"github.com/webllm/renderify/internal/resilience"
	"github.com/webllm/renderify/internal/shared/diag"
)

// Preflighter probes pinned plan dependencies for reachability before
// execution starts. Probes are advisory: an unreachable dependency yields
// a diagnostic, and only hard mode turns that into a failure.
type Preflighter struct {
	client        *retryablehttp.Client
	cdnBase       string
	fallbackBases []string
	log           *logging.Logger

	// breakers skip hosts that keep failing, one gate per hostname.
	breakerPolicy resilience.BreakerPolicy
	mu            sync.Mutex
	breakers      map[string]*resilience.Breaker
}

// NewPreflighter builds a prober with bounded retries and backoff.
func NewPreflighter(opts Options, log *logging.Logger) *Preflighter {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.PreflightRetries
	client.RetryWaitMin = opts.PreflightBackoff
	client.RetryWaitMax = 4 * opts.PreflightBackoff
	client.HTTPClient.Timeout = opts.PreflightTimeout
	client.Logger = nil

	return &Preflighter{
		client:        client,
		cdnBase:       strings.TrimRight(opts.CDNBase, "/"),
		fallbackBases: opts.FallbackBases,
		log:           log.Component("preflight"),
		breakerPolicy: resilience.BreakerPolicy{
			Threshold: opts.ProbeFailureThreshold,
			Cooldown:  opts.ProbeQuarantine,
		},
		breakers: make(map[string]*resilience.Breaker),
	}
}

// breakerFor returns the probe gate guarding one host.
func (p *Preflighter) breakerFor(host string) *resilience.Breaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.breakers[host]
	if !ok {
		b = resilience.NewBreaker(host, p.breakerPolicy)
		p.breakers[host] = b
	}
	return b
}

// ProbeReport is the outcome of probing one dependency.
type ProbeReport struct {
	Specifier string
	URL       string
	Reachable bool
	// ResolvedURL is the URL that answered, which differs from URL when a
	// fallback base served the probe.
	ResolvedURL string
	Latency     time.Duration
	Err         error
}

// Probe checks every pinned manifest entry. It returns per-dependency
// reports plus the diagnostics to attach to the invocation.
func (p *Preflighter) Probe(ctx context.Context, pl *plan.Plan) ([]ProbeReport, []diag.Diagnostic) {
	if len(pl.ModuleManifest) == 0 {
		return nil, nil
	}

	reports := make([]ProbeReport, 0, len(pl.ModuleManifest))
	var diags []diag.Diagnostic

	for spec, desc := range pl.ModuleManifest {
		if spec == plan.SelfModule || !isProbeable(desc.URL) {
			continue
		}
		report := p.probeOne(ctx, spec, desc.URL)
		reports = append(reports, report)
		if !report.Reachable {
			diags = append(diags, diag.Warning(
				diag.CodePreflightUnreachable,
				"dependency %q unreachable at %s: %v", spec, report.URL, report.Err,
			))
		}
	}
	return reports, diags
}

func (p *Preflighter) probeOne(ctx context.Context, spec, url string) ProbeReport {
	start := time.Now()
	candidates := p.candidates(url)

	var lastErr error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if err := p.head(ctx, candidate); err != nil {
			lastErr = err
			p.log.Debug("preflight probe failed",
				zap.String("specifier", spec),
				zap.String("url", candidate),
				zap.Error(err))
			continue
		}
		return ProbeReport{
			Specifier:   spec,
			URL:         url,
			Reachable:   true,
			ResolvedURL: candidate,
			Latency:     time.Since(start),
		}
	}
	return ProbeReport{
		Specifier: spec,
		URL:       url,
		Latency:   time.Since(start),
		Err:       lastErr,
	}
}

// candidates lists the primary URL followed by the same path rebased onto
// each fallback CDN base. URLs outside the primary base have no rebased
// form and are probed as-is.
func (p *Preflighter) candidates(url string) []string {
	out := []string{url}
	if p.cdnBase == "" || !strings.HasPrefix(url, p.cdnBase) {
		return out
	}
	suffix := strings.TrimPrefix(url, p.cdnBase)
	for _, base := range p.fallbackBases {
		base = strings.TrimRight(base, "/")
		if base == "" || base == p.cdnBase {
			continue
		}
		out = append(out, base+suffix)
	}
	return out
}

func (p *Preflighter) head(ctx context.Context, rawURL string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return err
	}

	return p.breakerFor(req.URL.Host).Do(func() error {
		resp, doErr := p.client.Do(req)
		if doErr != nil {
			return doErr
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	})
}

func isProbeable(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
