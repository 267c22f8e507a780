// Package leads provides the lead workflow bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"time"

	"leadconsole_backend/internal/events"
	apphttp "leadconsole_backend/internal/http"
	"leadconsole_backend/internal/leads/audit"
	"leadconsole_backend/internal/leads/bulk"
	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/exports"
	"leadconsole_backend/internal/leads/handler"
	"leadconsole_backend/internal/leads/records"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/internal/leads/rules"
	"leadconsole_backend/internal/leads/transition"
	"leadconsole_backend/internal/leads/transport"
	"leadconsole_backend/platform/config"
	"leadconsole_backend/platform/lock"
	"leadconsole_backend/platform/logger"
	"leadconsole_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler     *handler.Handler
	records     *records.Service
	rules       *rules.Service
	transitions *transition.Service
	exports     *exports.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg config.LeadsConfig, locker lock.Locker, log *logger.Logger) (*Module, error) {
	return newModule(repository.New(pool), eventBus, val, cfg.GetQualifiedCategories(), cfg.GetBusinessLocation(), locker, log)
}

func newModule(store repository.Store, eventBus events.Bus, val *validator.Validator, qualifiedCategories []string, loc *time.Location, locker lock.Locker, log *logger.Logger) (*Module, error) {
	if err := transport.RegisterValidations(val); err != nil {
		return nil, err
	}

	qualified := domain.NewQualifiedSet(qualifiedCategories)

	// Focused services, one per workflow concern
	recordsSvc := records.New(store, qualified, eventBus, log)
	auditSvc := audit.New(store, eventBus, log)
	rulesSvc := rules.New(store, eventBus, log, loc)
	transitionSvc := transition.New(store, rulesSvc, locker, eventBus, log)
	exportsSvc := exports.New(store, qualified, eventBus, log)
	bulkSvc := bulk.New(transitionSvc, exportsSvc, log)

	h := handler.New(handler.Services{
		Records:     recordsSvc,
		Audit:       auditSvc,
		Rules:       rulesSvc,
		Transitions: transitionSvc,
		Bulk:        bulkSvc,
		Exports:     exportsSvc,
	}, val)

	return &Module{
		handler:     h,
		records:     recordsSvc,
		rules:       rulesSvc,
		transitions: transitionSvc,
		exports:     exportsSvc,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// SetManifestArchiver enables export manifest archiving.
func (m *Module) SetManifestArchiver(archiver exports.ManifestArchiver) {
	m.exports.WithArchiver(archiver)
}

// SetMessageSender enables campaign messaging to exported leads.
func (m *Module) SetMessageSender(sender exports.MessageSender, region string) {
	m.exports.WithSender(sender, region)
}

// ExportsService returns the export state machine for the background jobs.
func (m *Module) ExportsService() *exports.Service {
	return m.exports
}

// RulesService returns the assignment rule engine.
func (m *Module) RulesService() *rules.Service {
	return m.rules
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	bulkLimit := func(c *gin.Context) { c.Next() }
	if ctx.BulkRateLimiter != nil {
		bulkLimit = ctx.BulkRateLimiter.RateLimit()
	}

	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"), bulkLimit)
	m.handler.RegisterExportRoutes(ctx.Protected.Group("/exports"), bulkLimit)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
