package policy

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Profile names a base policy posture.
type Profile string

const (
	ProfileStrict   Profile = "strict"
	ProfileBalanced Profile = "balanced"
	ProfileRelaxed  Profile = "relaxed"
)

// Rules are the individually togglable checks.
type Rules struct {
	// RequireExplicitDOMWrite flags plans that render markup without
	// declaring the domWrite capability.
	RequireExplicitDOMWrite bool `yaml:"requireExplicitDomWrite"`
	// DOMWriteAsWarning downgrades the DOM-write finding from issue to
	// warning diagnostic (relaxed profile behavior).
	DOMWriteAsWarning bool `yaml:"domWriteAsWarning"`
	// EnforceModuleAllowList requires every reachable module to appear on
	// the capability allow-list.
	EnforceModuleAllowList bool `yaml:"enforceModuleAllowList"`
	// RequireModuleIntegrity flags http(s) manifest entries lacking an
	// integrity digest.
	RequireModuleIntegrity bool `yaml:"requireModuleIntegrity"`
	// ValidateNetworkHosts checks that host allow-list entries are
	// well-formed hostnames.
	ValidateNetworkHosts bool `yaml:"validateNetworkHosts"`
}

// Limits are the hard system maxima, enforced regardless of profile.
type Limits struct {
	MaxImports              int `yaml:"maxImports"`
	MaxComponentInvocations int `yaml:"maxComponentInvocations"`
	MaxExecutionMs          int `yaml:"maxExecutionMs"`
}

// Policy is a profile's rules plus the system limits.
type Policy struct {
	Profile Profile
	Rules   Rules
	Limits  Limits
}

// DefaultLimits mirror the engine's shipped configuration.
func DefaultLimits() Limits {
	return Limits{
		MaxImports:              64,
		MaxComponentInvocations: 512,
		MaxExecutionMs:          30000,
	}
}

// ForProfile returns the base policy for a named profile.
func ForProfile(profile Profile) (Policy, error) {
	base := Policy{Profile: profile, Limits: DefaultLimits()}
	switch profile {
	case ProfileStrict:
		base.Rules = Rules{
			RequireExplicitDOMWrite: true,
			EnforceModuleAllowList:  true,
			RequireModuleIntegrity:  true,
			ValidateNetworkHosts:    true,
		}
	case ProfileBalanced:
		base.Rules = Rules{
			RequireExplicitDOMWrite: true,
			EnforceModuleAllowList:  true,
			RequireModuleIntegrity:  false,
			ValidateNetworkHosts:    true,
		}
	case ProfileRelaxed:
		base.Rules = Rules{
			RequireExplicitDOMWrite: true,
			DOMWriteAsWarning:       true,
			EnforceModuleAllowList:  false,
			RequireModuleIntegrity:  false,
			ValidateNetworkHosts:    true,
		}
	default:
		return Policy{}, fmt.Errorf("unknown policy profile %q", profile)
	}
	return base, nil
}

// Overrides adjust individual rules and limits on top of a base profile.
// Nil fields leave the base value untouched.
type Overrides struct {
	RequireExplicitDOMWrite *bool `yaml:"requireExplicitDomWrite"`
	DOMWriteAsWarning       *bool `yaml:"domWriteAsWarning"`
	EnforceModuleAllowList  *bool `yaml:"enforceModuleAllowList"`
	RequireModuleIntegrity  *bool `yaml:"requireModuleIntegrity"`
	ValidateNetworkHosts    *bool `yaml:"validateNetworkHosts"`

	MaxImports              *int `yaml:"maxImports"`
	MaxComponentInvocations *int `yaml:"maxComponentInvocations"`
	MaxExecutionMs          *int `yaml:"maxExecutionMs"`
}

// Apply merges overrides into a policy.
func (o *Overrides) Apply(p Policy) Policy {
	if o == nil {
		return p
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	setBool(&p.Rules.RequireExplicitDOMWrite, o.RequireExplicitDOMWrite)
	setBool(&p.Rules.DOMWriteAsWarning, o.DOMWriteAsWarning)
	setBool(&p.Rules.EnforceModuleAllowList, o.EnforceModuleAllowList)
	setBool(&p.Rules.RequireModuleIntegrity, o.RequireModuleIntegrity)
	setBool(&p.Rules.ValidateNetworkHosts, o.ValidateNetworkHosts)

	setInt(&p.Limits.MaxImports, o.MaxImports)
	setInt(&p.Limits.MaxComponentInvocations, o.MaxComponentInvocations)
	setInt(&p.Limits.MaxExecutionMs, o.MaxExecutionMs)
	return p
}

// LoadOverridesFile reads per-deployment overrides from a YAML file.
func LoadOverridesFile(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file: %w", err)
	}
	return &o, nil
}
