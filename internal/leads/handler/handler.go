package handler

import (
	"net/http"

	"leadconsole_backend/internal/leads/audit"
	"leadconsole_backend/internal/leads/bulk"
	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/exports"
	"leadconsole_backend/internal/leads/records"
	"leadconsole_backend/internal/leads/rules"
	"leadconsole_backend/internal/leads/transition"
	"leadconsole_backend/internal/leads/transport"
	"leadconsole_backend/platform/httpkit"
	"leadconsole_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Services groups the workflow services the handlers call.
type Services struct {
	Records     *records.Service
	Audit       *audit.Service
	Rules       *rules.Service
	Transitions *transition.Service
	Bulk        *bulk.Service
	Exports     *exports.Service
}

type Handler struct {
	svc Services
	val *validator.Validator
}

func New(svc Services, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the lead routes on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, bulkLimit gin.HandlerFunc) {
	rg.GET("", h.List)
	rg.GET("/counts", h.Counts)
	rg.POST("/bulk/assign", bulkLimit, h.BulkAssign)
	rg.POST("/bulk/status", bulkLimit, h.BulkStatus)
	rg.GET("/:sessionId", h.Get)
	rg.GET("/:sessionId/timeline", h.Timeline)
	rg.GET("/:sessionId/comments", h.ListComments)
	rg.POST("/:sessionId/comments", h.AddComment)
	rg.PATCH("/:sessionId/status", h.UpdateStatus)
	rg.PUT("/:sessionId/assign", h.Assign)
}

// actor returns the acting counselor, or false after aborting with 401.
func actor(c *gin.Context) (domain.Actor, bool) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return domain.Actor{}, false
	}
	return domain.CounselorActor(id.UserID(), id.DisplayName()), true
}

// bindJSON decodes and validates a request body.
func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

func (h *Handler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

func (h *Handler) List(c *gin.Context) {
	var q transport.ListLeadsQuery
	if !h.bindQuery(c, &q) {
		return
	}

	req := records.ListRequest{
		Segment:         q.Segment,
		Statuses:        q.Statuses,
		IncludeNotInCRM: q.IncludeNotInCRM,
		Categories:      q.Categories,
		Search:          q.Search,
		Page:            q.Page,
		PageSize:        q.PageSize,
	}
	if q.AssignedTo != "" {
		id, err := uuid.Parse(q.AssignedTo)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		req.AssignedTo = &id
	}

	res, err := h.svc.Records.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.LeadListResponse{
		Items:      transport.ToLeadResponses(res.Items, h.svc.Records.Qualified(), h.svc.Exports.Classifier()),
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
	})
}

func (h *Handler) Counts(c *gin.Context) {
	ctx := c.Request.Context()
	segments, err := h.svc.Records.Counts(ctx)
	if httpkit.HandleError(c, err) {
		return
	}
	funnel, err := h.svc.Records.FunnelCounts(ctx)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.CountsResponse{
		Segments: transport.SegmentCountsResponse(segments),
		Funnel:   transport.FunnelCountsResponse(funnel),
	})
}

func (h *Handler) Get(c *gin.Context) {
	lead, err := h.svc.Records.GetComposedLead(c.Request.Context(), c.Param("sessionId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead, h.svc.Records.Qualified(), h.svc.Exports.Classifier()))
}

func (h *Handler) Timeline(c *gin.Context) {
	items, err := h.svc.Records.Timeline(c.Request.Context(), c.Param("sessionId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": transport.ToTimelineResponse(items)})
}

func (h *Handler) ListComments(c *gin.Context) {
	entries, err := h.svc.Audit.List(c.Request.Context(), c.Param("sessionId"))
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, transport.ToAuditEntryResponse(e))
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) AddComment(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	var req transport.AddCommentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	entry, err := h.svc.Audit.AddComment(c.Request.Context(), act, c.Param("sessionId"), req.Comment)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToAuditEntryResponse(entry))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	var req transport.UpdateStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Transitions.ChangeStatus(c.Request.Context(), act, c.Param("sessionId"), req.Status, req.Comment)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToTransitionResponse(res))
}

func (h *Handler) Assign(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	var req transport.AssignLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if !req.CounselorID.Set {
		httpkit.Error(c, http.StatusBadRequest, "no counselor selected", nil)
		return
	}

	res, err := h.svc.Transitions.Assign(c.Request.Context(), act, c.Param("sessionId"), req.CounselorID.Value, req.Comment)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToTransitionResponse(res))
}

func bulkResponse(s bulk.Summary) transport.BulkResultResponse {
	return transport.BulkResultResponse{Total: s.Total, Completed: s.Completed, Unchanged: s.Unchanged}
}

func (h *Handler) BulkAssign(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	var req transport.BulkAssignRequest
	if !h.bindJSON(c, &req) {
		return
	}

	summary, err := h.svc.Bulk.BulkAssign(c.Request.Context(), act, req.SessionIDs, req.CounselorID, req.Comment)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, bulkResponse(summary))
}

func (h *Handler) BulkStatus(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	var req transport.BulkStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	summary, err := h.svc.Bulk.BulkChangeStatus(c.Request.Context(), act, req.SessionIDs, req.Status, req.Comment)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, bulkResponse(summary))
}
