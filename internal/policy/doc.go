/*
Package policy classifies a plan as safe or unsafe before anything runs.

# Profiles

Three named profiles plus structured overrides:

  - strict: every check enforced, integrity required for remote modules
  - balanced: explicit DOM write and module allow-list enforced, integrity
    recommended but not required
  - relaxed: undeclared DOM write downgrades to a warning diagnostic,
    allow-list enforcement off

Hard system ceilings (import count, component invocations, execution ms) are
enforced on every profile; no override can lift them.

# Verdict

CheckPlan returns issues (error-level findings that make the plan unsafe)
and diagnostics (warnings that do not). A plan is safe only with zero
issues. The orchestrator refuses to execute any plan that has not passed
this check.
*/
package policy
