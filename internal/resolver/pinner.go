package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/webllm/renderify/internal/plan"
)

// CollectSpecifiers gathers every module reference a plan can reach: declared
// imports, the capability allow-list, component node modules, and a lexical
// scan of the embedded source. The reserved self token is excluded; it
// resolves to the plan's own source, not an external module.
func CollectSpecifiers(p *plan.Plan) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(spec string) {
		if spec == "" || spec == plan.SelfModule {
			return
		}
		if _, dup := seen[spec]; dup {
			return
		}
		seen[spec] = struct{}{}
		out = append(out, spec)
	}

	for _, spec := range p.Imports {
		add(spec)
	}
	for _, spec := range p.Capabilities.AllowedModules {
		add(spec)
	}
	if p.Root != nil {
		for _, spec := range plan.ComponentModules(p.Root) {
			add(spec)
		}
	}
	if p.Source != nil {
		for _, spec := range ScanImports(p.Source.Code) {
			add(spec)
		}
	}
	return out
}

// AutoPin fills in missing manifest entries for every specifier the plan can
// reach. Specifiers that already carry a pinned descriptor are skipped;
// unresolvable specifiers are left unpinned for the policy checker to flag.
// Returns the specifiers pinned by this call.
func (r *Resolver) AutoPin(ctx context.Context, p *plan.Plan, withIntegrity bool) []string {
	if p.ModuleManifest == nil {
		p.ModuleManifest = make(map[string]plan.ModuleDescriptor)
	}

	var pinned []string
	for _, spec := range CollectSpecifiers(p) {
		if existing, ok := p.ModuleManifest[spec]; ok && existing.URL != "" {
			continue
		}
		desc, err := r.Resolve(ctx, spec, withIntegrity)
		if err != nil {
			r.log.Warn("cannot pin specifier", zap.String("specifier", spec), zap.Error(err))
			continue
		}
		p.ModuleManifest[spec] = desc
		pinned = append(pinned, spec)
	}
	return pinned
}
