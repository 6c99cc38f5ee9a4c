/*
Package resolver turns bare module specifiers into concrete, integrity-checked
URLs and pins them into a plan's module manifest before execution.

# Resolution Order

 1. Explicit import-map override
 2. Already-absolute http(s) URLs pass through unchanged
 3. Registry specifiers ("registry:pkg@1.2.3", "pkg", "@scope/pkg") are
    rewritten against the primary CDN base, with hard-coded version pins for
    a few well-known UI libraries to keep plans cross-compatible

Anything else fails with ErrUnsupportedSpecifier.

# Integrity

For http(s) URLs the resolver can fetch the body and record a
"sha384-<base64>" digest, cached by URL so repeated lookups are free. Fetch
failures are swallowed and reported as "no integrity available": integrity
is a hardening measure, not a hard dependency, unless the active policy
demands it.

# Caching

All caches (descriptor by specifier, integrity by URL, loaded module by URL)
are scoped to one Resolver instance and injected where needed. Entries are
idempotent, so concurrent redundant resolution of the same specifier from
multiple plans needs no cross-plan lock.
*/
package resolver
