// Package isolation decides how strongly a plan's embedded logic is
// sandboxed. The decision is a data-driven table over (capability request,
// policy profile, host environment); adding an isolation backend means
// adding rows here, never branching in the orchestrator.
package isolation

import "errors"

// Tier orders isolation strength. Higher is more restrictive.
type Tier int

const (
	// TierInProcess runs plan logic in a pooled script runtime inside the
	// engine process.
	TierInProcess Tier = iota
	// TierIsolated runs plan logic behind a stronger boundary with its own
	// heap (separate runtime instance, not pooled, torn down per run).
	TierIsolated
)

func (t Tier) String() string {
	switch t {
	case TierInProcess:
		return "in-process"
	case TierIsolated:
		return "isolated"
	default:
		return "unknown"
	}
}

// ErrIsolationUnavailable is returned when the selected tier cannot be
// provided by this host and fallback is not permitted.
var ErrIsolationUnavailable = errors.New("isolation tier unavailable on this host")

// Conditions are the inputs the table matches on.
type Conditions struct {
	// RequestedProfile is the plan's executionProfile capability hint:
	// "", "standard", or "isolated".
	RequestedProfile string
	// PolicyProfile is the active policy: "strict", "balanced", "relaxed".
	PolicyProfile string
	// HasEmbeddedSource is true when the plan carries inline code.
	HasEmbeddedSource bool
	// RequestsNetwork is true when the plan declares network hosts.
	RequestsNetwork bool
}

// Host describes what this environment can provide.
type Host struct {
	// IsolatedAvailable is true when the isolated tier can actually be
	// created here.
	IsolatedAvailable bool
	// AllowFallback permits downgrading to in-process execution when the
	// isolated tier is selected but unavailable.
	AllowFallback bool
}

// matchAny matches every value of a string condition.
const matchAny = "*"

// rule is one row of the decision table.
type rule struct {
	requestedProfile string
	policyProfile    string
	embeddedSource   *bool
	requestsNetwork  *bool
	tier             Tier
}

var yes = true

// table maps conditions to tiers. Every matching row contributes; the most
// restrictive matching tier wins, so ties resolve toward stronger isolation.
var table = []rule{
	// Plans asking for isolation get it.
	{requestedProfile: "isolated", policyProfile: matchAny, tier: TierIsolated},
	// Strict policy isolates anything carrying embedded source.
	{requestedProfile: matchAny, policyProfile: "strict", embeddedSource: &yes, tier: TierIsolated},
	// Strict policy isolates network-touching plans.
	{requestedProfile: matchAny, policyProfile: "strict", requestsNetwork: &yes, tier: TierIsolated},
	// Balanced policy isolates embedded source that also touches the network.
	{requestedProfile: matchAny, policyProfile: "balanced", embeddedSource: &yes, requestsNetwork: &yes, tier: TierIsolated},
	// Everything else runs in process.
	{requestedProfile: matchAny, policyProfile: matchAny, tier: TierInProcess},
}

func (r rule) matches(c Conditions) bool {
	if r.requestedProfile != matchAny && r.requestedProfile != c.RequestedProfile {
		return false
	}
	if r.policyProfile != matchAny && r.policyProfile != c.PolicyProfile {
		return false
	}
	if r.embeddedSource != nil && *r.embeddedSource != c.HasEmbeddedSource {
		return false
	}
	if r.requestsNetwork != nil && *r.requestsNetwork != c.RequestsNetwork {
		return false
	}
	return true
}

// Select returns the most restrictive tier matched by the table.
func Select(c Conditions) Tier {
	selected := TierInProcess
	for _, r := range table {
		if r.matches(c) && r.tier > selected {
			selected = r.tier
		}
	}
	return selected
}

// Negotiate resolves the selected tier against what the host can provide.
// The returned bool reports whether a fallback downgrade happened.
func Negotiate(selected Tier, host Host) (Tier, bool, error) {
	if selected != TierIsolated || host.IsolatedAvailable {
		return selected, false, nil
	}
	if host.AllowFallback {
		return TierInProcess, true, nil
	}
	return selected, false, ErrIsolationUnavailable
}
