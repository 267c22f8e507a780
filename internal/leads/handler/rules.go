package handler

import (
	"net/http"

	"leadconsole_backend/internal/leads/rules"
	"leadconsole_backend/internal/leads/transport"
	"leadconsole_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterAdminRoutes mounts rule administration and reconciliation on an
// admin-only group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/assignment-rules", h.ListRules)
	rg.POST("/assignment-rules", h.CreateRule)
	rg.PATCH("/assignment-rules/:id", h.UpdateRule)
	rg.POST("/exports/reconcile", h.Reconcile)
}

func (h *Handler) ListRules(c *gin.Context) {
	list, err := h.svc.Rules.ListRules(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": transport.ToRuleResponses(list)})
}

func (h *Handler) CreateRule(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	var req transport.CreateRuleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	start, err := transport.ParseDate(req.StartDate)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid startDate", nil)
		return
	}
	end, err := transport.ParseDate(req.EndDate)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid endDate", nil)
		return
	}

	res, err := h.svc.Rules.CreateRule(c.Request.Context(), act, rules.CreateRuleRequest{
		Name:              req.Name,
		Priority:          req.Priority,
		TriggerCategory:   req.TriggerCategory,
		TriggerStatus:     req.TriggerStatus,
		AssignedCounselor: req.AssignedCounselorID,
		StartDate:         start,
		EndDate:           end,
		Inactive:          req.IsActive != nil && !*req.IsActive,
		AllowCatchAll:     req.AllowCatchAll,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.CreateRuleResponse{
		Rule:    transport.ToRuleResponse(res.Rule),
		Warning: res.Warning,
	})
}

func (h *Handler) UpdateRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	var req transport.UpdateRuleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	rule, err := h.svc.Rules.SetActive(c.Request.Context(), id, *req.IsActive)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRuleResponse(rule))
}
