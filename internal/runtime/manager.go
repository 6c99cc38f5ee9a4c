// Package runtime orchestrates plan execution end to end: validation,
// manifest pinning, policy checking, dependency preflight, sandboxed
// execution, rendering, and state commit. Each invocation walks a fixed
// phase sequence; a failure in any phase stops the walk and maps to one
// error class.
//
// State commits are transactional: actions and embedded source run against
// a clone of the committed snapshot, and the store is updated only when the
// run succeeds. A timeout or script error leaves the previous snapshot
// authoritative.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webllm/renderify/internal/engine"
	"github.com/webllm/renderify/internal/logging"
	"github.com/webllm/renderify/internal/monitoring"
	"github.com/webllm/renderify/internal/plan"
	"github.com/webllm/renderify/internal/policy"
	"github.com/webllm/renderify/internal/quota"
	"github.com/webllm/renderify/internal/render"
	"github.com/webllm/renderify/internal/resolver"
	"github.com/webllm/renderify/internal/runtime/isolation"
	"github.com/webllm/renderify/internal/sandbox"
	"github.com/webllm/renderify/internal/shared/diag"
	"github.com/webllm/renderify/internal/store"
)

// Deps are the collaborators a Manager orchestrates.
type Deps struct {
	Store    store.Store
	Resolver *resolver.Resolver
	Checker  *policy.Checker
	Pool     *sandbox.Pool
	// SandboxConfig builds the dedicated runtime used by the isolated tier.
	SandboxConfig sandbox.Config
	Governor      quota.Governor
	Metrics       *monitoring.Metrics
	Log           *logging.Logger
}

// Manager executes plans and dispatches events against them. Executions of
// the same plan id serialize; distinct plans run concurrently.
type Manager struct {
	opts      Options
	store     store.Store
	resolver  *resolver.Resolver
	checker   *policy.Checker
	preflight *Preflighter
	pool      *sandbox.Pool
	sandboxed sandbox.Config
	governor  quota.Governor
	metrics   *monitoring.Metrics
	log       *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager wires an orchestrator. Missing optional collaborators get
// no-op defaults.
func NewManager(opts Options, deps Deps) (*Manager, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("runtime: store is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("runtime: resolver is required")
	}
	if deps.Checker == nil {
		return nil, fmt.Errorf("runtime: policy checker is required")
	}
	if deps.Pool == nil {
		return nil, fmt.Errorf("runtime: sandbox pool is required")
	}
	if deps.Governor == nil {
		deps.Governor = quota.Unlimited{}
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.New()
	}
	if deps.Log == nil {
		deps.Log = logging.NewNop()
	}
	if deps.SandboxConfig.Timeout == 0 {
		deps.SandboxConfig = sandbox.DefaultConfig()
	}
	if opts.DefaultDeadline <= 0 {
		opts.DefaultDeadline = DefaultOptions().DefaultDeadline
	}
	if opts.MaxDeadline <= 0 {
		opts.MaxDeadline = DefaultOptions().MaxDeadline
	}

	return &Manager{
		opts:      opts,
		store:     deps.Store,
		resolver:  deps.Resolver,
		checker:   deps.Checker,
		preflight: NewPreflighter(opts, deps.Log),
		pool:      deps.Pool,
		sandboxed: deps.SandboxConfig,
		governor:  deps.Governor,
		metrics:   deps.Metrics,
		log:       deps.Log.Component("runtime"),
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// planLock returns the serialization mutex for one plan id.
func (m *Manager) planLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

// deadlineFor caps the plan's requested execution ceiling at the system
// maximum; a plan without a ceiling still gets the default deadline.
func (m *Manager) deadlineFor(p *plan.Plan) time.Duration {
	requested := time.Duration(p.DeadlineMs()) * time.Millisecond
	if requested <= 0 {
		return m.opts.DefaultDeadline
	}
	if requested > m.opts.MaxDeadline {
		return m.opts.MaxDeadline
	}
	return requested
}

// Execute runs a plan through the full phase sequence and commits its state
// on success. The returned Result carries diagnostics even on failure.
func (m *Manager) Execute(ctx context.Context, p *plan.Plan, tenant string) (*Result, error) {
	start := time.Now()
	result := &Result{
		Phase:        PhaseReceived,
		InvocationID: uuid.NewString(),
		Diagnostics:  []diag.Diagnostic{},
	}
	log := &logging.Logger{Logger: m.log.WithPlan(p.ID, p.Version).With(zap.String("invocation_id", result.InvocationID))}

	if !m.governor.Allow(tenant) {
		result.Phase = PhaseFailed
		return result, fmt.Errorf("%w: tenant %q", ErrQuotaDenied, tenant)
	}

	m.metrics.ExecutionsActive.Inc()
	defer m.metrics.ExecutionsActive.Dec()

	if err := p.Validate(); err != nil {
		result.Phase = PhaseFailed
		m.metrics.RecordExecution("invalid", time.Since(start))
		return result, invalidPlan(err)
	}

	if err := m.register(p); err != nil {
		result.Phase = PhaseFailed
		m.metrics.RecordExecution("invalid", time.Since(start))
		return result, err
	}

	lock := m.planLock(p.ID)
	lock.Lock()
	defer lock.Unlock()

	outcome, err := m.execute(ctx, p, result, log)
	result.Duration = time.Since(start)
	m.metrics.RecordExecution(outcome, result.Duration)
	return result, err
}

// register stores the plan version. Re-executing an already registered
// version is permitted; only genuinely stale or invalid plans are rejected.
func (m *Manager) register(p *plan.Plan) error {
	err := m.store.Register(p)
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrStaleVersion) {
		if _, getErr := m.store.GetVersion(p.ID, p.Version); getErr == nil {
			return nil
		}
	}
	return invalidPlan(err)
}

func (m *Manager) execute(ctx context.Context, p *plan.Plan, result *Result, log *logging.Logger) (string, error) {
	// Spec version check.
	versionDiags, err := m.checkSpecVersion(p)
	result.Diagnostics = append(result.Diagnostics, versionDiags...)
	if err != nil {
		result.Phase = PhaseFailed
		return "unsupported_version", err
	}
	result.Phase = PhaseSpecVersionChecked

	// Manifest pinning.
	pinned := m.resolver.AutoPin(ctx, p, m.checker.Policy().Rules.RequireModuleIntegrity)
	if len(pinned) > 0 {
		m.metrics.ManifestPins.Add(float64(len(pinned)))
		log.Debug("auto-pinned manifest entries", zap.Strings("specifiers", pinned))
	}
	result.Phase = PhaseManifestPinned

	// Policy check.
	report := m.checker.CheckPlan(p)
	result.Diagnostics = append(result.Diagnostics, report.Diagnostics...)
	if !report.Safe {
		result.Diagnostics = append(result.Diagnostics, report.Issues...)
		result.Phase = PhaseFailed
		m.metrics.PolicyChecks.WithLabelValues("rejected").Inc()
		m.metrics.PolicyIssues.Add(float64(len(report.Issues)))
		return "policy_rejected", fmt.Errorf("%w: %d issue(s)", ErrPolicyRejected, len(report.Issues))
	}
	m.metrics.PolicyChecks.WithLabelValues("safe").Inc()
	result.Phase = PhasePolicyChecked

	// Dependency preflight.
	preflightStart := time.Now()
	reports, diags := m.preflight.Probe(ctx, p)
	m.metrics.PreflightDuration.Observe(time.Since(preflightStart).Seconds())
	for _, r := range reports {
		outcome := "reachable"
		if !r.Reachable {
			outcome = "unreachable"
		}
		m.metrics.PreflightProbes.WithLabelValues(outcome).Inc()
	}
	result.Diagnostics = append(result.Diagnostics, diags...)
	if len(diags) > 0 && m.opts.FailOnDependencyPreflightError {
		result.Phase = PhaseFailed
		return "dependency_unavailable", fmt.Errorf("%w: %d dependencies unreachable", ErrDependencyUnavailable, len(diags))
	}
	result.Phase = PhaseDependencyPreflighted

	// Isolation negotiation.
	tier, sandboxCfg, tierDiags, err := m.negotiate(p)
	result.Diagnostics = append(result.Diagnostics, tierDiags...)
	if err != nil {
		result.Phase = PhaseFailed
		return "isolation_refused", executionError(err)
	}

	// Execution proper.
	result.Phase = PhaseExecuting
	deadline := m.deadlineFor(p)
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	snapshot, err := m.store.State(p.ID)
	if err != nil {
		result.Phase = PhaseFailed
		return "failed", executionError(err)
	}
	working := engine.Clone(snapshot)

	if p.Source != nil {
		if err := m.runSource(runCtx, p, tier, sandboxCfg, working, result); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sandbox.ErrInterrupt) {
				result.Phase = PhaseTimedOut
				result.State = snapshot
				result.Diagnostics = append(result.Diagnostics, diag.Error(diag.CodeExecTimeout,
					"execution exceeded the %s deadline, state rolled back", deadline))
				m.metrics.SandboxTimeouts.Inc()
				return "timed_out", fmt.Errorf("%w after %s", ErrTimedOut, deadline)
			}
			result.Phase = PhaseFailed
			result.State = snapshot
			result.Diagnostics = append(result.Diagnostics, diag.Error(diag.CodeExecScriptError,
				"embedded source failed: %v", err))
			return "failed", executionError(err)
		}
	}

	rendered, err := m.render(p, working)
	if err != nil {
		result.Phase = PhaseFailed
		result.State = snapshot
		return "failed", executionError(err)
	}

	if err := m.store.CommitState(p.ID, working); err != nil {
		result.Phase = PhaseFailed
		result.State = snapshot
		return "failed", executionError(err)
	}

	result.Phase = PhaseCompleted
	result.Root = p.Root
	result.HTML = rendered.HTML
	result.State = working
	log.Info("plan executed",
		zap.String("tier", tier.String()),
		zap.Int("components", rendered.Components),
		zap.Duration("deadline", deadline))
	return "completed", nil
}

// checkSpecVersion normalizes the plan's spec version and flags revisions
// this deployment does not list as supported.
func (m *Manager) checkSpecVersion(p *plan.Plan) ([]diag.Diagnostic, error) {
	declared := p.SpecVersion
	normalized := plan.NormalizeSpecVersion(declared)
	p.SpecVersion = normalized

	var diags []diag.Diagnostic
	if declared != "" && declared != normalized {
		diags = append(diags, diag.Warning(diag.CodePreflightSpecVersion,
			"spec version %q not recognized, normalized to %q", declared, normalized))
	}
	if len(m.opts.SupportedSpecVersions) > 0 && !contains(m.opts.SupportedSpecVersions, normalized) {
		d := diag.Warning(diag.CodePreflightSpecVersion,
			"spec version %q is not supported by this deployment", normalized)
		if m.opts.FailOnUnsupportedVersion {
			d.Level = diag.LevelError
			return append(diags, d), fmt.Errorf("%w: unsupported spec version %q", ErrInvalidPlan, normalized)
		}
		diags = append(diags, d)
	}
	return diags, nil
}

// negotiate selects the isolation tier and browser sandbox mode for a run.
func (m *Manager) negotiate(p *plan.Plan) (isolation.Tier, sandbox.Config, []diag.Diagnostic, error) {
	var diags []diag.Diagnostic

	selected := isolation.Select(isolation.Conditions{
		RequestedProfile:  p.Capabilities.ExecutionProfile,
		PolicyProfile:     string(m.checker.Policy().Profile),
		HasEmbeddedSource: p.Source != nil,
		RequestsNetwork:   len(p.Capabilities.NetworkHosts) > 0,
	})
	tier, fellBack, err := isolation.Negotiate(selected, isolation.Host{
		IsolatedAvailable: m.opts.IsolatedTierAvailable,
		AllowFallback:     m.opts.AllowIsolationFallback,
	})
	if err != nil {
		return tier, sandbox.Config{}, diags, err
	}
	if fellBack {
		diags = append(diags, diag.Warning(diag.CodeExecIsolationFallback,
			"isolated tier unavailable, running %s", tier))
	}

	requested, err := isolation.ParseMode(m.opts.SandboxMode)
	if err != nil {
		return tier, sandbox.Config{}, diags, err
	}
	supported := make([]isolation.Mode, 0, len(m.opts.SupportedSandboxModes))
	for _, name := range m.opts.SupportedSandboxModes {
		mode, parseErr := isolation.ParseMode(name)
		if parseErr != nil {
			continue
		}
		supported = append(supported, mode)
	}
	mode, downgraded, err := isolation.NegotiateMode(requested, supported, m.opts.SandboxFailClosed)
	if err != nil {
		diags = append(diags, diag.Error(diag.CodeExecSandboxRefused,
			"sandbox mode %q unavailable and downgrade is disabled", m.opts.SandboxMode))
		return tier, sandbox.Config{}, diags, err
	}
	if downgraded {
		diags = append(diags, diag.Warning(diag.CodeExecIsolationFallback,
			"sandbox mode downgraded from %s to %s", requested, mode))
	}

	cfg := m.sandboxed
	cfg.AllowTimers = p.Capabilities.Timers
	return tier, cfg, diags, nil
}

// runSource executes the embedded module against the working state. The
// export receives the state snapshot; a returned object is merged back in.
func (m *Manager) runSource(ctx context.Context, p *plan.Plan, tier isolation.Tier, cfg sandbox.Config, working map[string]interface{}, result *Result) error {
	inv := sandbox.Invocation{
		Code:   p.Source.Code,
		Export: p.Source.Export,
		Args:   []interface{}{engine.Clone(working)},
	}

	var (
		res *sandbox.Result
		err error
	)
	switch tier {
	case isolation.TierIsolated:
		// Dedicated runtime with its own heap, torn down after the run.
		rt, newErr := sandbox.New(cfg)
		if newErr != nil {
			return newErr
		}
		defer rt.Close()
		res, err = rt.Execute(ctx, inv)
	default:
		rt, acqErr := m.pool.Acquire(ctx)
		if acqErr != nil {
			return acqErr
		}
		defer func() {
			m.pool.Release(rt)
			m.metrics.SandboxPoolIdle.Set(float64(m.pool.Available()))
		}()
		res, err = rt.Execute(ctx, inv)
	}
	if err != nil {
		return err
	}

	if updates, ok := res.Value.(map[string]interface{}); ok {
		for key, value := range updates {
			if plan.ForbiddenSegment(key) {
				continue
			}
			working[key] = value
		}
	}
	result.Console = append(result.Console, res.Console...)
	return nil
}

// render walks the tree against the working state, honoring the plan's own
// component ceiling when it is tighter than the system limit.
func (m *Manager) render(p *plan.Plan, state map[string]interface{}) (*render.Result, error) {
	ceiling := m.checker.Policy().Limits.MaxComponentInvocations
	if p.Capabilities.MaxComponentInvocations != nil && *p.Capabilities.MaxComponentInvocations < ceiling {
		ceiling = *p.Capabilities.MaxComponentInvocations
	}
	renderer := render.New(render.WithComponentCeiling(ceiling))
	return renderer.Render(p.Root, state, p.ModuleManifest)
}

// DispatchEvent applies a plan's transition for one event type to a clone
// of the committed snapshot and commits the result. Events with no declared
// transition are ignored. A failed action rolls the state back.
func (m *Manager) DispatchEvent(ctx context.Context, planID string, ev plan.Event) (*Result, error) {
	start := time.Now()
	result := &Result{
		Phase:        PhaseReceived,
		InvocationID: uuid.NewString(),
		Diagnostics:  []diag.Diagnostic{},
	}

	p, err := m.store.Get(planID)
	if err != nil {
		result.Phase = PhaseFailed
		return result, invalidPlan(err)
	}

	// Dispatch runs under the same deadline rules as initial execution.
	ctx, cancel := context.WithTimeout(ctx, m.deadlineFor(p))
	defer cancel()

	lock := m.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		result.Phase = PhaseFailed
		if errors.Is(err, context.DeadlineExceeded) {
			result.Phase = PhaseTimedOut
			return result, fmt.Errorf("%w: %v", ErrTimedOut, err)
		}
		return result, err
	}

	snapshot, err := m.store.State(planID)
	if err != nil {
		result.Phase = PhaseFailed
		return result, executionError(err)
	}

	result.Phase = PhaseExecuting
	result.State = snapshot

	var actions []plan.Action
	if p.State != nil {
		actions = p.State.Transitions[ev.Type]
	}
	if len(actions) == 0 {
		// Unknown event type: ignored, committed state stands.
		result.Phase = PhaseCompleted
		result.Duration = time.Since(start)
		return result, nil
	}

	working := engine.Clone(snapshot)
	applied, err := engine.ApplyAll(actions, working, &ev, nil)
	if err != nil {
		result.Phase = PhaseFailed
		result.Diagnostics = append(result.Diagnostics, diag.Error(diag.CodeExecScriptError,
			"transition %q failed after %d action(s): %v", ev.Type, applied, err))
		return result, executionError(err)
	}

	rendered, err := m.render(p, working)
	if err != nil {
		result.Phase = PhaseFailed
		return result, executionError(err)
	}

	if err := m.store.CommitState(planID, working); err != nil {
		result.Phase = PhaseFailed
		return result, executionError(err)
	}

	m.metrics.EventsDispatched.Inc()
	m.metrics.ActionsApplied.Add(float64(applied))

	result.Phase = PhaseCompleted
	result.Root = p.Root
	result.HTML = rendered.HTML
	result.State = working
	result.HandledEvent = ev.Type
	result.AppliedActions = applied
	result.Duration = time.Since(start)
	return result, nil
}

// GetPlanState returns the committed snapshot for a plan.
func (m *Manager) GetPlanState(planID string) (map[string]interface{}, error) {
	state, err := m.store.State(planID)
	if err != nil {
		return nil, invalidPlan(err)
	}
	return state, nil
}

// GetPlan returns the latest registered version of a plan.
func (m *Manager) GetPlan(planID string) (*plan.Plan, error) {
	p, err := m.store.Get(planID)
	if err != nil {
		return nil, invalidPlan(err)
	}
	return p, nil
}

// ProbePlan runs the pre-execution phases against a copy of the plan and
// reports what execution would find, without registering the plan, pinning
// its manifest, or touching any state.
func (m *Manager) ProbePlan(ctx context.Context, p *plan.Plan) ([]diag.Diagnostic, error) {
	diags := []diag.Diagnostic{}

	if err := p.Validate(); err != nil {
		return append(diags, diag.Error(diag.CodePreflightResolveFailed,
			"plan is invalid: %v", err)), invalidPlan(err)
	}

	// Work on a shallow copy with its own manifest so pinning never leaks
	// back into the caller's plan.
	probe := *p
	probe.ModuleManifest = make(map[string]plan.ModuleDescriptor, len(p.ModuleManifest))
	for spec, desc := range p.ModuleManifest {
		probe.ModuleManifest[spec] = desc
	}

	versionDiags, err := m.checkSpecVersion(&probe)
	diags = append(diags, versionDiags...)
	if err != nil {
		return diags, err
	}

	m.resolver.AutoPin(ctx, &probe, m.checker.Policy().Rules.RequireModuleIntegrity)
	for _, spec := range resolver.CollectSpecifiers(&probe) {
		if _, pinned := probe.ModuleManifest[spec]; !pinned {
			diags = append(diags, diag.Warning(diag.CodePreflightResolveFailed,
				"specifier %q cannot be resolved", spec))
		}
	}

	// Probe findings carry probe codes, whatever level the checker assigned.
	report := m.checker.CheckPlan(&probe)
	for _, warn := range report.Diagnostics {
		d := warn
		d.Code = diag.CodePreflightPolicyIssue
		diags = append(diags, d)
	}
	for _, issue := range report.Issues {
		d := issue
		d.Code = diag.CodePreflightPolicyIssue
		d.Message = fmt.Sprintf("policy would reject: %s", issue.Message)
		diags = append(diags, d)
	}

	_, preflightDiags := m.preflight.Probe(ctx, &probe)
	diags = append(diags, preflightDiags...)

	return diags, nil
}

func contains(list []string, item string) bool {
	for _, entry := range list {
		if entry == item {
			return true
		}
	}
	return false
}
