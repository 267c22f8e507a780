// Package http holds the pieces the router needs from the composition root:
// the assembled App and the Module contract each bounded context implements.
package http

import (
	"context"

	"leadconsole_backend/platform/config"
	"leadconsole_backend/platform/httpkit"
	"leadconsole_backend/platform/logger"
	"leadconsole_backend/platform/metrics"

	"github.com/gin-gonic/gin"
)

// RouterConfig is the subset of configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Module is a bounded context that mounts its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups handed to each module.
type RouterContext struct {
	// Protected requires a valid access token.
	Protected *gin.RouterGroup
	// Admin additionally requires the admin role.
	Admin *gin.RouterGroup
	// BulkRateLimiter throttles multi-lead mutations per client IP.
	BulkRateLimiter *httpkit.IPRateLimiter
}

// App is populated by main and passed to the router.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health is usually the database pool. Nil skips the check.
	Health HealthChecker
	// Metrics is served on /metrics when set.
	Metrics *metrics.Registry
	Modules []Module
}
