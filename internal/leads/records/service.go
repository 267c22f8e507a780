// Package records composes intake, CRM and export records into lead views
// and owns idempotent creation of the CRM record.
package records

import (
	"context"
	"errors"
	"slices"
	"time"

	"leadconsole_backend/internal/events"
	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/platform/apperr"
	"leadconsole_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Timeline item kinds that are not audit entries.
const (
	TimelineFormSubmitted    = "form_submitted"
	TimelineCrmRecordCreated = "crm_record_created"
)

type Service struct {
	store     repository.Store
	qualified domain.QualifiedSet
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
	ensures   singleflight.Group
}

func New(store repository.Store, qualified domain.QualifiedSet, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, qualified: qualified, bus: bus, log: log, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Qualified exposes the configured qualified category set.
func (s *Service) Qualified() domain.QualifiedSet {
	return s.qualified
}

// GetComposedLead returns the merged view of one lead.
func (s *Service) GetComposedLead(ctx context.Context, sessionID string) (repository.Lead, error) {
	lead, err := s.store.GetLead(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		return repository.Lead{}, err
	}
	return lead, nil
}

// EnsureCrmRecord is the standalone form of Ensure. Concurrent calls for the
// same lead share one round-trip, which runs detached from any single
// caller's cancellation. A caller whose ctx ends stops waiting without
// aborting the others.
func (s *Service) EnsureCrmRecord(ctx context.Context, sessionID string) (repository.CrmRecord, error) {
	ch := s.ensures.DoChan(sessionID, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		rec, created, err := Ensure(shared, s.store, sessionID, s.now())
		if err != nil {
			return repository.CrmRecord{}, err
		}
		if created {
			s.bus.Publish(shared, events.LeadCrmRecordCreated{BaseEvent: events.NewBaseEventAt(rec.CreatedAt), SessionID: sessionID})
			s.log.LeadEvent("crm_record_created", sessionID)
		}
		return rec, nil
	})

	select {
	case <-ctx.Done():
		return repository.CrmRecord{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return repository.CrmRecord{}, res.Err
		}
		return res.Val.(repository.CrmRecord), nil
	}
}

// ListRequest filters the lead list. Zero values mean "no filter".
type ListRequest struct {
	Segment         string
	Statuses        []string
	IncludeNotInCRM bool
	Categories      []string
	AssignedTo      *uuid.UUID
	Search          string
	Page            int
	PageSize        int
}

type ListResult struct {
	Items      []repository.Lead
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	if req.Segment != "" && !domain.IsKnownSegment(req.Segment) {
		return ListResult{}, apperr.Validation("unknown segment")
	}
	for _, st := range req.Statuses {
		if !domain.IsKnownStatus(st) {
			return ListResult{}, apperr.Validation("unknown lead status: " + st)
		}
	}
	for _, c := range req.Categories {
		if !domain.IsKnownCategory(c) {
			return ListResult{}, apperr.Validation("unknown lead category: " + c)
		}
	}

	page := max(req.Page, 1)
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	items, total, err := s.store.ListLeads(ctx, repository.ListParams{
		Segment:             req.Segment,
		Statuses:            req.Statuses,
		IncludeNotInCRM:     req.IncludeNotInCRM,
		Categories:          req.Categories,
		AssignedTo:          req.AssignedTo,
		Search:              req.Search,
		QualifiedCategories: s.qualified.Slice(),
		Offset:              (page - 1) * pageSize,
		Limit:               pageSize,
	})
	if err != nil {
		return ListResult{}, err
	}

	return ListResult{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Counts returns the display segment counts.
func (s *Service) Counts(ctx context.Context) (repository.SegmentCounts, error) {
	return s.store.CountSegments(ctx, s.qualified.Slice())
}

// FunnelCounts returns the exact funnel partition of all intakes.
func (s *Service) FunnelCounts(ctx context.Context) (repository.FunnelCounts, error) {
	counts, err := s.store.CountFunnel(ctx, s.qualified.Slice())
	if err != nil {
		return repository.FunnelCounts{}, err
	}
	if sum := counts.Booked + counts.QualifiedNotBooked + counts.FormCompletedUnqualified + counts.Other; sum != counts.All {
		s.log.Error("funnel partition mismatch", "all", counts.All, "sum", sum)
		return repository.FunnelCounts{}, apperr.Internal("funnel counts are inconsistent")
	}
	return counts, nil
}

// TimelineItem is either an audit entry or a synthetic lifecycle event.
type TimelineItem struct {
	Kind        string
	At          time.Time
	AuditID     int64
	CounselorID *uuid.UUID
	AuthorName  string
	Comment     string
	LeadStatus  string
}

// Timeline merges audit entries with the form submission and CRM creation
// events, oldest first.
func (s *Service) Timeline(ctx context.Context, sessionID string) ([]TimelineItem, error) {
	lead, err := s.GetComposedLead(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListAuditEntries(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	items := make([]TimelineItem, 0, len(entries)+2)
	items = append(items, TimelineItem{Kind: TimelineFormSubmitted, At: lead.CreatedAt})
	if lead.CRM != nil {
		items = append(items, TimelineItem{
			Kind:       TimelineCrmRecordCreated,
			At:         lead.CRM.CreatedAt,
			LeadStatus: domain.DefaultStatus,
		})
	}
	for _, e := range entries {
		items = append(items, TimelineItem{
			Kind:        e.Kind,
			At:          e.CreatedAt,
			AuditID:     e.ID,
			CounselorID: e.CounselorID,
			AuthorName:  e.AuthorName,
			Comment:     e.Comment,
			LeadStatus:  e.LeadStatus,
		})
	}

	slices.SortStableFunc(items, func(a, b TimelineItem) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		switch {
		case a.AuditID < b.AuditID:
			return -1
		case a.AuditID > b.AuditID:
			return 1
		}
		return 0
	})
	return items, nil
}
