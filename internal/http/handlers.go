package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/webllm/renderify/internal/logging"
	"github.com/webllm/renderify/internal/monitoring"
	"github.com/webllm/renderify/internal/plan"
	"github.com/webllm/renderify/internal/policy"
	"github.com/webllm/renderify/internal/resolver"
	"github.com/webllm/renderify/internal/runtime"
	"github.com/webllm/renderify/internal/sandbox"
	"github.com/webllm/renderify/internal/store"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	manager  *runtime.Manager
	store    store.Store
	checker  *policy.Checker
	resolver *resolver.Resolver
	pool     *sandbox.Pool
	metrics  *monitoring.Metrics
	log      *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(
	manager *runtime.Manager,
	st store.Store,
	checker *policy.Checker,
	res *resolver.Resolver,
	pool *sandbox.Pool,
	metrics *monitoring.Metrics,
	log *logging.Logger,
) *Handlers {
	return &Handlers{
		manager:  manager,
		store:    st,
		checker:  checker,
		resolver: res,
		pool:     pool,
		metrics:  metrics,
		log:      log.Component("http"),
	}
}

// Root handles the banner endpoint.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "renderify",
		"profile": string(h.checker.Policy().Profile),
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	h.metrics.UpdateUptime()
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"sandbox": gin.H{
			"pool_size": h.pool.Size(),
			"idle":      h.pool.Available(),
		},
		"plans":  len(h.store.List()),
		"policy": gin.H{"profile": string(h.checker.Policy().Profile)},
	})
}

// ExecutePlan runs a plan end to end and returns the rendered result.
func (h *Handlers) ExecutePlan(c *gin.Context) {
	p, ok := h.bindPlan(c)
	if !ok {
		return
	}

	result, err := h.manager.Execute(c.Request.Context(), p, tenantOf(c))
	if err != nil {
		h.fail(c, result, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plan_id": p.ID,
		"version": p.Version,
		"result":  result,
	})
}

// ProbePlan dry-runs the pre-execution phases without side effects.
func (h *Handlers) ProbePlan(c *gin.Context) {
	p, ok := h.bindPlan(c)
	if !ok {
		return
	}

	diags, err := h.manager.ProbePlan(c.Request.Context(), p)
	if err != nil && errors.Is(err, runtime.ErrInvalidPlan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "diagnostics": diags})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plan_id":     p.ID,
		"executable":  err == nil,
		"diagnostics": diags,
	})
}

// CheckPlan runs the policy checker alone and returns its report.
func (h *Handlers) CheckPlan(c *gin.Context) {
	p, ok := h.bindPlan(c)
	if !ok {
		return
	}

	report := h.checker.CheckPlan(p)
	c.JSON(http.StatusOK, gin.H{
		"plan_id": p.ID,
		"report":  report,
	})
}

// ListPlans lists the latest version of every registered plan.
func (h *Handlers) ListPlans(c *gin.Context) {
	plans := h.store.List()
	summaries := make([]gin.H, 0, len(plans))
	for _, p := range plans {
		summaries = append(summaries, gin.H{
			"id":           p.ID,
			"version":      p.Version,
			"spec_version": p.SpecVersion,
			"has_source":   p.Source != nil,
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": summaries})
}

// GetPlan returns the latest registered version of a plan.
func (h *Handlers) GetPlan(c *gin.Context) {
	p, err := h.manager.GetPlan(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetPlanState returns the committed state snapshot of a plan.
func (h *Handlers) GetPlanState(c *gin.Context) {
	state, err := h.manager.GetPlanState(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plan_id": c.Param("id"),
		"state":   state,
	})
}

// DispatchEvent applies one event against a plan's transitions.
func (h *Handlers) DispatchEvent(c *gin.Context) {
	var ev plan.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event: " + err.Error()})
		return
	}
	if ev.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event type is required"})
		return
	}

	result, err := h.manager.DispatchEvent(c.Request.Context(), c.Param("id"), ev)
	if err != nil {
		h.fail(c, result, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plan_id": c.Param("id"),
		"result":  result,
	})
}

// ResolveModule pins one bare specifier to a descriptor without executing
// anything. Clients use this to prefetch import maps.
func (h *Handlers) ResolveModule(c *gin.Context) {
	var req struct {
		Specifier string `json:"specifier" binding:"required"`
		Integrity bool   `json:"integrity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	desc, err := h.resolver.Resolve(c.Request.Context(), req.Specifier, req.Integrity)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"specifier":  req.Specifier,
		"descriptor": desc,
	})
}

// ModuleSource serves a cached module body so clients behind restrictive
// network policies can fetch dependencies through the engine.
func (h *Handlers) ModuleSource(c *gin.Context) {
	specifier := c.Query("specifier")
	if specifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "specifier query parameter is required"})
		return
	}

	mod, err := h.resolver.Load(c.Request.Context(), specifier)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Header("X-Module-URL", mod.URL)
	c.Data(http.StatusOK, "text/javascript; charset=utf-8", mod.Body)
}

// Metrics serves the Prometheus registry.
func (h *Handlers) Metrics() gin.HandlerFunc {
	handler := promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// bindPlan parses and minimally validates the request body as a plan.
func (h *Handlers) bindPlan(c *gin.Context) (*plan.Plan, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read request body"})
		return nil, false
	}

	p, err := plan.Parse(body)
	if err != nil {
		h.log.Debug("rejected malformed plan", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return p, true
}

// fail maps orchestrator error classes to HTTP statuses.
func (h *Handlers) fail(c *gin.Context, result *runtime.Result, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, runtime.ErrInvalidPlan):
		status = http.StatusBadRequest
	case errors.Is(err, runtime.ErrPolicyRejected):
		status = http.StatusForbidden
	case errors.Is(err, runtime.ErrQuotaDenied):
		status = http.StatusTooManyRequests
	case errors.Is(err, runtime.ErrTimedOut):
		status = http.StatusGatewayTimeout
	case errors.Is(err, runtime.ErrDependencyUnavailable):
		status = http.StatusBadGateway
	}

	payload := gin.H{"error": err.Error()}
	if result != nil {
		payload["result"] = result
	}
	c.JSON(status, payload)
}

// tenantOf extracts the caller's tenant for the quota gate.
func tenantOf(c *gin.Context) string {
	if tenant := c.GetHeader("X-Tenant"); tenant != "" {
		return tenant
	}
	return c.ClientIP()
}
