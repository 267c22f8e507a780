// Package bulk applies workflow operations to many leads. Per-lead
// operations run strictly in order and stop at the first failure; export
// operations delegate to the all-or-nothing export state machine.
package bulk

import (
	"context"

	"leadconsole_backend/internal/leads/audit"
	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/exports"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/internal/leads/transition"
	"leadconsole_backend/platform/apperr"
	"leadconsole_backend/platform/logger"

	"github.com/google/uuid"
)

// Transitions is the per-lead coordinator used by bulk calls.
type Transitions interface {
	ChangeStatus(ctx context.Context, actor domain.Actor, sessionID, status, comment string) (transition.Result, error)
	Assign(ctx context.Context, actor domain.Actor, sessionID string, counselorID *uuid.UUID, comment string) (transition.Result, error)
	ValidateAssignee(ctx context.Context, counselorID *uuid.UUID) (*repository.Counselor, error)
}

// ExportMachine is the export state machine used by bulk calls.
type ExportMachine interface {
	Export(ctx context.Context, actor domain.Actor, sessionIDs []string) (exports.BatchResult, error)
	SetStatus(ctx context.Context, actor domain.Actor, sessionIDs []string, target, notes string) (exports.BatchResult, error)
	SendCampaignMessage(ctx context.Context, actor domain.Actor, sessionIDs []string, message string) (exports.SendResult, error)
}

type Service struct {
	transitions Transitions
	exports     ExportMachine
	log         *logger.Logger
}

func New(transitions Transitions, exportMachine ExportMachine, log *logger.Logger) *Service {
	return &Service{transitions: transitions, exports: exportMachine, log: log}
}

// Summary reports a finished batch. Unchanged items count as completed.
type Summary struct {
	Total     int
	Completed int
	Unchanged int
}

func normalizeIDs(ids []string) ([]string, error) {
	unique := domain.UniqueSessionIDs(ids)
	if len(unique) == 0 {
		return nil, apperr.Validation("no leads selected")
	}
	return unique, nil
}

// BulkAssign assigns or unassigns every lead. counselor must be present;
// an explicit null clears the assignee.
func (s *Service) BulkAssign(ctx context.Context, actor domain.Actor, sessionIDs []string, counselor domain.OptionalUUID, comment string) (Summary, error) {
	if !counselor.Set {
		return Summary{}, apperr.Validation("no counselor selected")
	}
	ids, err := normalizeIDs(sessionIDs)
	if err != nil {
		return Summary{}, err
	}
	if _, err := audit.ValidateOptionalComment(comment); err != nil {
		return Summary{}, err
	}
	if _, err := s.transitions.ValidateAssignee(ctx, counselor.Value); err != nil {
		return Summary{}, err
	}

	return s.sequential(ctx, "bulk_assign", ids, func(id string) (transition.Result, error) {
		return s.transitions.Assign(ctx, actor, id, counselor.Value, comment)
	})
}

// BulkChangeStatus moves every lead to status with the same comment.
func (s *Service) BulkChangeStatus(ctx context.Context, actor domain.Actor, sessionIDs []string, status, comment string) (Summary, error) {
	if !domain.IsKnownStatus(status) {
		return Summary{}, apperr.Validation("unknown lead status: " + status)
	}
	ids, err := normalizeIDs(sessionIDs)
	if err != nil {
		return Summary{}, err
	}
	if _, err := audit.ValidateComment(comment); err != nil {
		return Summary{}, err
	}

	return s.sequential(ctx, "bulk_status", ids, func(id string) (transition.Result, error) {
		return s.transitions.ChangeStatus(ctx, actor, id, status, comment)
	})
}

func (s *Service) sequential(ctx context.Context, op string, ids []string, apply func(id string) (transition.Result, error)) (Summary, error) {
	summary := Summary{Total: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, &BulkError{Completed: summary.Completed, Total: summary.Total, FailedSessionID: id, Err: err}
		}
		res, err := apply(id)
		if err != nil {
			s.log.WithContext(ctx).Warn("bulk operation stopped",
				"op", op, "session_id", id, "completed", summary.Completed, "total", summary.Total, "error", err)
			return summary, &BulkError{Completed: summary.Completed, Total: summary.Total, FailedSessionID: id, Err: err}
		}
		summary.Completed++
		if !res.Changed {
			summary.Unchanged++
		}
	}
	s.log.WithContext(ctx).Info("bulk operation finished", "op", op, "total", summary.Total, "unchanged", summary.Unchanged)
	return summary, nil
}

// BulkExport exports the batch as a unit: completed is either all or none.
func (s *Service) BulkExport(ctx context.Context, actor domain.Actor, sessionIDs []string) (Summary, error) {
	ids, err := normalizeIDs(sessionIDs)
	if err != nil {
		return Summary{}, err
	}
	if _, err := s.exports.Export(ctx, actor, ids); err != nil {
		return Summary{Total: len(ids)}, &BulkError{Total: len(ids), Err: err}
	}
	return Summary{Total: len(ids), Completed: len(ids)}, nil
}

// BulkSetExportStatus moves the batch to target as a unit.
func (s *Service) BulkSetExportStatus(ctx context.Context, actor domain.Actor, sessionIDs []string, target, notes string) (Summary, error) {
	ids, err := normalizeIDs(sessionIDs)
	if err != nil {
		return Summary{}, err
	}
	if _, err := s.exports.SetStatus(ctx, actor, ids, target, notes); err != nil {
		return Summary{Total: len(ids)}, &BulkError{Total: len(ids), Err: err}
	}
	return Summary{Total: len(ids), Completed: len(ids)}, nil
}

// BulkSendMessage sends a campaign message to exported leads in order.
// Validation failures of the whole batch are returned as is.
func (s *Service) BulkSendMessage(ctx context.Context, actor domain.Actor, sessionIDs []string, message string) (Summary, error) {
	ids, err := normalizeIDs(sessionIDs)
	if err != nil {
		return Summary{}, err
	}
	res, err := s.exports.SendCampaignMessage(ctx, actor, ids, message)
	if err != nil {
		if res.FailedSessionID == "" {
			return Summary{Total: len(ids)}, err
		}
		return Summary{Total: res.Total, Completed: res.Sent}, &BulkError{
			Completed:       res.Sent,
			Total:           res.Total,
			FailedSessionID: res.FailedSessionID,
			Err:             err,
		}
	}
	return Summary{Total: res.Total, Completed: res.Sent}, nil
}
