package handler

import (
	"net/http"

	"leadconsole_backend/internal/leads/exports"
	"leadconsole_backend/internal/leads/transport"
	"leadconsole_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// RegisterExportRoutes mounts the campaign export routes on rg.
func (h *Handler) RegisterExportRoutes(rg *gin.RouterGroup, bulkLimit gin.HandlerFunc) {
	rg.GET("/buckets", h.BucketCounts)
	rg.GET("/buckets/:bucket", h.ListBucket)
	rg.GET("/stages", h.ListByStage)
	rg.POST("/export", bulkLimit, h.Export)
	rg.POST("/status", bulkLimit, h.SetExportStatus)
	rg.POST("/send-message", bulkLimit, h.SendMessage)
}

func (h *Handler) BucketCounts(c *gin.Context) {
	counts, err := h.svc.Exports.BucketCounts(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ExportBucketsResponse{
		NotBooked:      counts.NotBooked,
		BookedNearTerm: counts.BookedNearTerm,
		BookedFarTerm:  counts.BookedFarTerm,
		Exported:       counts.Exported,
		ByStage:        counts.ByStage,
	})
}

func (h *Handler) ListBucket(c *gin.Context) {
	bucket := exports.Bucket(c.Param("bucket"))
	if !exports.IsKnownBucket(bucket) {
		httpkit.Error(c, http.StatusNotFound, "unknown export bucket", nil)
		return
	}
	var q transport.ExportBucketQuery
	if !h.bindQuery(c, &q) {
		return
	}

	leads, err := h.svc.Exports.ListBucket(c.Request.Context(), bucket, q.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": transport.ToLeadResponses(leads, h.svc.Records.Qualified(), h.svc.Exports.Classifier())})
}

func (h *Handler) ListByStage(c *gin.Context) {
	var q transport.ExportStagesQuery
	if !h.bindQuery(c, &q) {
		return
	}

	leads, err := h.svc.Exports.ListByStage(c.Request.Context(), q.Statuses, q.IncludeNotInCRM, q.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": transport.ToLeadResponses(leads, h.svc.Records.Qualified(), h.svc.Exports.Classifier())})
}

func (h *Handler) Export(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	var req transport.ExportLeadsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	summary, err := h.svc.Bulk.BulkExport(c.Request.Context(), act, req.SessionIDs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, bulkResponse(summary))
}

func (h *Handler) SetExportStatus(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	var req transport.ExportStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	summary, err := h.svc.Bulk.BulkSetExportStatus(c.Request.Context(), act, req.SessionIDs, req.Status, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, bulkResponse(summary))
}

func (h *Handler) SendMessage(c *gin.Context) {
	act, ok := actor(c)
	if !ok {
		return
	}
	var req transport.SendMessageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	summary, err := h.svc.Bulk.BulkSendMessage(c.Request.Context(), act, req.SessionIDs, req.Message)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, bulkResponse(summary))
}

// Reconcile backfills missing export records on demand.
func (h *Handler) Reconcile(c *gin.Context) {
	res, err := h.svc.Exports.Reconcile(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ReconcileResponse{Created: res.Created, AlreadyPresent: res.AlreadyPresent})
}
