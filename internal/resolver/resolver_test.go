package resolver

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webllm/renderify/internal/logging"
	"github.com/webllm/renderify/internal/monitoring"
	"github.com/webllm/renderify/internal/plan"
)

func newTestResolver(cfg Config) *Resolver {
	if cfg.CDNBase == "" {
		cfg.CDNBase = "https://cdn.example.test"
	}
	if cfg.IntegrityTimeout == 0 {
		cfg.IntegrityTimeout = 2 * time.Second
	}
	return New(cfg, logging.NewNop())
}

func TestResolveSpecifierOrder(t *testing.T) {
	r := newTestResolver(Config{
		ImportMap: map[string]string{
			"mapped": "https://override.test/mapped.js",
			// Import map outranks even the version pins.
			"react": "https://override.test/react.js",
		},
	})

	tests := []struct {
		name      string
		specifier string
		want      string
		wantErr   bool
	}{
		{"import map override", "mapped", "https://override.test/mapped.js", false},
		{"import map beats pins", "react", "https://override.test/react.js", false},
		{"absolute url passthrough", "https://direct.test/lib.js", "https://direct.test/lib.js", false},
		{"bare package", "lodash", "https://cdn.example.test/lodash", false},
		{"bare package with version", "lodash@4.17.21", "https://cdn.example.test/lodash@4.17.21", false},
		{"registry scheme", "registry:lodash@4.17.21", "https://cdn.example.test/lodash@4.17.21", false},
		{"scoped package", "@scope/pkg", "https://cdn.example.test/@scope/pkg", false},
		{"well-known pin", "vue", "https://cdn.example.test/vue@3.4.27", false},
		{"pin overrides requested version", "vue@2.0.0", "https://cdn.example.test/vue@3.4.27", false},
		{"relative path rejected", "./local.js", "", true},
		{"empty rejected", "", "", true},
		{"self token rejected", plan.SelfModule, "", true},
		{"bad scoped package rejected", "@scope", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := r.ResolveSpecifier(tt.specifier)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnsupportedSpecifier)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, url)
		})
	}
}

func TestResolveCachesDescriptors(t *testing.T) {
	r := newTestResolver(Config{})
	ctx := context.Background()

	first, err := r.Resolve(ctx, "lodash@4.17.21", false)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.test/lodash@4.17.21", first.URL)
	assert.Equal(t, "4.17.21", first.Version)

	second, err := r.Resolve(ctx, "lodash@4.17.21", false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveUpgradesIntegrityOnCacheHit(t *testing.T) {
	var fetches atomic.Int32
	body := []byte("export default 7;")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		w.Write(body)
	}))
	defer srv.Close()

	r := newTestResolver(Config{})
	ctx := context.Background()

	plain, err := r.Resolve(ctx, srv.URL, false)
	require.NoError(t, err)
	assert.Empty(t, plain.Integrity)
	assert.Equal(t, int32(0), fetches.Load(), "no digest fetch without integrity")

	sum := sha512.Sum384(body)
	want := "sha384-" + base64.StdEncoding.EncodeToString(sum[:])

	upgraded, err := r.Resolve(ctx, srv.URL, true)
	require.NoError(t, err)
	assert.Equal(t, want, upgraded.Integrity, "cached descriptor must gain a digest on demand")

	// The upgrade sticks: later callers see the digest without re-fetching.
	again, err := r.Resolve(ctx, srv.URL, false)
	require.NoError(t, err)
	assert.Equal(t, want, again.Integrity)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestResolverRecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("export default 1;"))
	}))
	defer srv.Close()

	m := monitoring.New()
	r := newTestResolver(Config{Metrics: m})
	ctx := context.Background()

	_, err := r.Resolve(ctx, srv.URL, true)
	require.NoError(t, err)
	// Cache hit with an existing digest: no new resolution, no new fetch.
	_, err = r.Resolve(ctx, srv.URL, true)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolutionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntegrityFetches.WithLabelValues("ok")))
}

func TestIntegrityFetchCachedByURL(t *testing.T) {
	var fetches atomic.Int32
	body := []byte("export default 42;")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		w.Write(body)
	}))
	defer srv.Close()

	r := newTestResolver(Config{})
	ctx := context.Background()

	digest, ok := r.Integrity(ctx, srv.URL)
	require.True(t, ok)

	sum := sha512.Sum384(body)
	assert.Equal(t, "sha384-"+base64.StdEncoding.EncodeToString(sum[:]), digest)

	// Second lookup must come from cache: no duplicate network fetch.
	again, ok := r.Integrity(ctx, srv.URL)
	require.True(t, ok)
	assert.Equal(t, digest, again)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestIntegrityFailureIsSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := newTestResolver(Config{IntegrityRetries: 1})

	digest, ok := r.Integrity(context.Background(), srv.URL)
	assert.False(t, ok)
	assert.Empty(t, digest)

	// Non-http URLs never have integrity.
	_, ok = r.Integrity(context.Background(), "file:///etc/passwd")
	assert.False(t, ok)
}

func TestLoadCachesAndUnloadEvicts(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		w.Write([]byte("export const x = 1;"))
	}))
	defer srv.Close()

	r := newTestResolver(Config{})
	ctx := context.Background()

	mod, err := r.Load(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, mod.URL)
	assert.NotEmpty(t, mod.Body)

	_, err = r.Load(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetches.Load(), "second load must hit the cache")

	r.Unload(srv.URL)
	_, err = r.Load(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetches.Load(), "unload must evict the cache entry")
}

func TestScanImports(t *testing.T) {
	source := `
		import React from "react";
		import { useState } from 'react';
		import * as d3 from "d3";
		import "./styles.css";
		import "side-effect-lib";
		export { thing } from "re-exported";
		const lazy = await import("lazy-lib");
		const legacy = require("legacy-lib");
	`

	specs := ScanImports(source)
	assert.ElementsMatch(t, []string{
		"react", "d3", "side-effect-lib", "re-exported", "lazy-lib", "legacy-lib",
	}, specs)
}

func TestCollectSpecifiers(t *testing.T) {
	p := &plan.Plan{
		ID:      "p",
		Version: 1,
		Imports: []string{"react", "d3"},
		Capabilities: plan.Capabilities{
			AllowedModules: []string{"react", "chart-lib"},
		},
		Root: plan.ElementNode{
			Tag: "div",
			Children: []plan.Node{
				plan.ComponentNode{Module: "date-picker"},
				plan.ComponentNode{Module: plan.SelfModule},
			},
		},
		Source: &plan.SourceModule{Code: `import dayjs from "dayjs";`},
	}

	specs := CollectSpecifiers(p)
	assert.Equal(t, []string{"react", "d3", "chart-lib", "date-picker", "dayjs"}, specs)
}

func TestAutoPin(t *testing.T) {
	r := newTestResolver(Config{})
	p := &plan.Plan{
		ID:      "p",
		Version: 1,
		Imports: []string{"react", "lodash@4.17.21", "./relative"},
		ModuleManifest: map[string]plan.ModuleDescriptor{
			"react": {URL: "https://already.pinned/react.js", Integrity: "sha384-abc"},
		},
	}

	pinned := r.AutoPin(context.Background(), p, false)

	// Already-pinned entries are untouched, unresolvable ones skipped.
	assert.Equal(t, []string{"lodash@4.17.21"}, pinned)
	assert.Equal(t, "https://already.pinned/react.js", p.ModuleManifest["react"].URL)
	assert.Equal(t, "https://cdn.example.test/lodash@4.17.21", p.ModuleManifest["lodash@4.17.21"].URL)
	_, hasRelative := p.ModuleManifest["./relative"]
	assert.False(t, hasRelative)
}
