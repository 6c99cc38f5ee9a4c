package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsHeaders is what browser clients of the plan API actually send: JSON
// bodies plus the tenant header the quota gate keys on.
var corsHeaders = []string{
	"Content-Type",
	"Accept",
	"Origin",
	"X-Tenant",
}

// CORS builds the cross-origin policy from the configured origin list. An
// empty list or a single "*" admits every origin without credential
// sharing; explicit origins are echoed back and may carry credentials.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: corsHeaders,
		MaxAge:       12 * time.Hour,
	}
	if wildcard(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func wildcard(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
