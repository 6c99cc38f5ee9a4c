package policy

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/webllm/renderify/internal/logging"
	"github.com/webllm/renderify/internal/plan"
	"github.com/webllm/renderify/internal/resolver"
	"github.com/webllm/renderify/internal/shared/diag"
)

// Report is the checker's verdict: safe only with zero issues.
type Report struct {
	Safe        bool              `json:"safe"`
	Issues      []diag.Diagnostic `json:"issues"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

// Checker inspects a plan's capability requests and reachable module set
// against one policy.
type Checker struct {
	policy Policy
	log    *logging.Logger
}

// New creates a checker for the given policy.
func New(policy Policy, log *logging.Logger) *Checker {
	return &Checker{policy: policy, log: log.Component("policy")}
}

// Policy returns the active policy.
func (c *Checker) Policy() Policy {
	return c.policy
}

// CheckPlan runs every enabled check. It must pass before the orchestrator
// invokes any embedded source or component.
func (c *Checker) CheckPlan(p *plan.Plan) Report {
	report := Report{Issues: []diag.Diagnostic{}, Diagnostics: []diag.Diagnostic{}}

	c.checkDOMWrite(p, &report)
	if c.policy.Rules.EnforceModuleAllowList {
		c.checkModuleAllowList(p, &report)
	}
	if c.policy.Rules.RequireModuleIntegrity {
		c.checkIntegrity(p, &report)
	}
	if c.policy.Rules.ValidateNetworkHosts {
		c.checkNetworkHosts(p, &report)
	}
	c.checkCeilings(p, &report)

	report.Safe = len(report.Issues) == 0
	if !report.Safe {
		c.log.Info("plan rejected by policy",
			zap.String("plan_id", p.ID),
			zap.Int("issues", len(report.Issues)))
	}
	return report
}

// checkDOMWrite flags plans that render markup without declaring domWrite.
// Rendering any element node, or carrying embedded source, counts as a DOM
// write; the capability is never implied.
func (c *Checker) checkDOMWrite(p *plan.Plan, report *Report) {
	if !c.policy.Rules.RequireExplicitDOMWrite || p.Capabilities.DOMWrite {
		return
	}
	if !needsDOMWrite(p) {
		return
	}

	d := diag.Error(diag.CodePolicyDOMWrite,
		"plan renders markup but does not declare the domWrite capability")
	if c.policy.Rules.DOMWriteAsWarning {
		d.Level = diag.LevelWarning
		report.Diagnostics = append(report.Diagnostics, d)
		return
	}
	report.Issues = append(report.Issues, d)
}

func needsDOMWrite(p *plan.Plan) bool {
	if p.Source != nil {
		return true
	}
	needs := false
	plan.Walk(p.Root, func(n plan.Node) bool {
		switch n.(type) {
		case plan.ElementNode, plan.ComponentNode:
			needs = true
			return false
		}
		return true
	})
	return needs
}

// checkModuleAllowList requires every module the plan can reach to appear on
// the capability allow-list: declared imports, manifest entries, component
// references, and lexically scanned embedded-source imports.
func (c *Checker) checkModuleAllowList(p *plan.Plan, report *Report) {
	allowed := make(map[string]struct{}, len(p.Capabilities.AllowedModules))
	for _, spec := range p.Capabilities.AllowedModules {
		allowed[spec] = struct{}{}
	}

	reachable := resolver.CollectSpecifiers(p)
	for spec := range p.ModuleManifest {
		reachable = appendUnique(reachable, spec)
	}

	for _, spec := range reachable {
		if _, ok := allowed[spec]; !ok {
			report.Issues = append(report.Issues, diag.Error(diag.CodePolicyUnauthorizedMod,
				"module %q is reachable but not on the capability allow-list", spec))
		}
	}
}

// checkIntegrity flags every remote manifest entry lacking a digest.
func (c *Checker) checkIntegrity(p *plan.Plan, report *Report) {
	for spec, desc := range p.ModuleManifest {
		if !strings.HasPrefix(desc.URL, "http://") && !strings.HasPrefix(desc.URL, "https://") {
			continue
		}
		if desc.Integrity == "" {
			report.Issues = append(report.Issues, diag.Error(diag.CodePolicyMissingIntegrity,
				"module %q (%s) has no integrity digest", spec, desc.URL))
		}
	}
}

var hostnamePattern = regexp.MustCompile(
	`^(\*\.)?([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// checkNetworkHosts requires allow-list entries to be well-formed hostnames,
// optionally with a single leading wildcard label.
func (c *Checker) checkNetworkHosts(p *plan.Plan, report *Report) {
	for _, host := range p.Capabilities.NetworkHosts {
		if len(host) > 253 || !hostnamePattern.MatchString(host) {
			report.Issues = append(report.Issues, diag.Error(diag.CodePolicyBadHostname,
				"network host %q is not a well-formed hostname", host))
		}
	}
}

// checkCeilings validates requested ceilings and enforces the hard system
// maxima on every profile.
func (c *Checker) checkCeilings(p *plan.Plan, report *Report) {
	check := func(name string, requested *int, max int, min int) {
		if requested == nil {
			return
		}
		if *requested < min {
			report.Issues = append(report.Issues, diag.Error(diag.CodePolicyCeilingInvalid,
				"capability ceiling %s=%d is below the minimum %d", name, *requested, min))
			return
		}
		if max > 0 && *requested > max {
			report.Issues = append(report.Issues, diag.Error(diag.CodePolicyCeilingExceeded,
				"capability ceiling %s=%d exceeds the system maximum %d", name, *requested, max))
		}
	}

	check("maxImports", p.Capabilities.MaxImports, c.policy.Limits.MaxImports, 0)
	check("maxComponentInvocations", p.Capabilities.MaxComponentInvocations, c.policy.Limits.MaxComponentInvocations, 0)
	check("maxExecutionMs", p.Capabilities.MaxExecutionMs, c.policy.Limits.MaxExecutionMs, 1)

	if len(p.Imports) > c.policy.Limits.MaxImports && c.policy.Limits.MaxImports > 0 {
		report.Issues = append(report.Issues, diag.Error(diag.CodePolicyCeilingExceeded,
			"plan declares %d imports, system maximum is %d", len(p.Imports), c.policy.Limits.MaxImports))
	}
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
