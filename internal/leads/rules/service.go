// Package rules evaluates and administers the prioritized, time-windowed
// auto-assignment rule set.
package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadconsole_backend/internal/events"
	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/platform/apperr"
	"leadconsole_backend/platform/logger"

	"github.com/google/uuid"
)

// CatchAllWarning is returned with every rule saved without a trigger.
const CatchAllWarning = "this rule has no trigger and matches every lead; its priority decides which leads other rules still see"

// Store is what the rule engine needs from the repository.
type Store interface {
	repository.RuleStore
	repository.CounselorReader
	WithinTx(ctx context.Context, fn func(tx repository.Store) error) error
}

type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
	loc   *time.Location
	now   func() time.Time
}

// New creates the rule service. loc is the business timezone that decides
// which calendar day "today" is.
func New(store Store, bus events.Bus, log *logger.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, bus: bus, log: log, loc: loc, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Today returns the current business day as a UTC midnight date.
func (s *Service) Today() time.Time {
	return civilDate(s.now().In(s.loc))
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FindMatchingRule returns the first effective rule that fires for the given
// category and status, or nil.
func (s *Service) FindMatchingRule(ctx context.Context, category *string, status string) (*repository.Rule, error) {
	ordered, err := s.store.ListEffectiveRules(ctx, s.Today())
	if err != nil {
		return nil, fmt.Errorf("load assignment rules: %w", err)
	}

	rule, ok := FirstMatch(ordered, category, status)
	if !ok {
		return nil, nil
	}
	if rule.IsCatchAll() {
		s.log.Warn("catch-all assignment rule matched",
			"rule_id", rule.ID.String(),
			"rule_name", rule.Name,
			"priority", rule.Priority,
			"status", status,
		)
	}
	return &rule, nil
}

// CreateRuleRequest describes a new rule. StartDate defaults to today.
type CreateRuleRequest struct {
	Name              string
	Priority          int
	TriggerCategory   *string
	TriggerStatus     *string
	AssignedCounselor *uuid.UUID
	StartDate         *time.Time
	EndDate           *time.Time
	Inactive          bool
	AllowCatchAll     bool
}

type CreateRuleResult struct {
	Rule    repository.Rule
	Warning string
}

// validate normalizes req in place and returns the first validation error.
func (s *Service) validate(req *CreateRuleRequest) error {
	if req.AssignedCounselor == nil || *req.AssignedCounselor == uuid.Nil {
		return apperr.Validation("no counselor selected")
	}

	start := s.Today()
	if req.StartDate != nil {
		start = civilDate(*req.StartDate)
	}
	req.StartDate = &start
	if req.EndDate != nil {
		end := civilDate(*req.EndDate)
		if end.Before(start) {
			return apperr.Validation("end date is before start date")
		}
		req.EndDate = &end
	}

	req.TriggerCategory = normalizeTrigger(req.TriggerCategory)
	req.TriggerStatus = normalizeTrigger(req.TriggerStatus)
	if req.TriggerCategory == nil && req.TriggerStatus == nil && !req.AllowCatchAll {
		return apperr.Validation("no trigger selected")
	}
	if req.TriggerCategory != nil && !domain.IsKnownCategory(*req.TriggerCategory) {
		return apperr.Validation("unknown lead category: " + *req.TriggerCategory)
	}
	if req.TriggerStatus != nil && !domain.IsKnownStatus(*req.TriggerStatus) {
		return apperr.Validation("unknown lead status: " + *req.TriggerStatus)
	}
	if req.Priority < 0 {
		return apperr.Validation("priority must not be negative")
	}
	req.Name = strings.TrimSpace(req.Name)
	return nil
}

func normalizeTrigger(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *Service) checkCounselor(ctx context.Context, store repository.CounselorReader, id uuid.UUID) error {
	counselor, err := store.GetCounselor(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("counselor not found")
		}
		return err
	}
	if !counselor.IsActive {
		return apperr.Validation("counselor is inactive")
	}
	return nil
}

func (s *Service) create(ctx context.Context, store repository.RuleStore, actor domain.Actor, req CreateRuleRequest) (repository.Rule, error) {
	rule, err := store.CreateRule(ctx, repository.CreateRuleParams{
		Name:              req.Name,
		Priority:          req.Priority,
		TriggerCategory:   req.TriggerCategory,
		TriggerStatus:     req.TriggerStatus,
		AssignedCounselor: *req.AssignedCounselor,
		StartDate:         *req.StartDate,
		EndDate:           req.EndDate,
		IsActive:          !req.Inactive,
		CreatedBy:         actor.CounselorID,
		CreatedAt:         s.now(),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Rule{}, apperr.NotFound("counselor not found")
	}
	return rule, err
}

// CreateRule validates and saves a rule.
func (s *Service) CreateRule(ctx context.Context, actor domain.Actor, req CreateRuleRequest) (CreateRuleResult, error) {
	if err := s.validate(&req); err != nil {
		return CreateRuleResult{}, err
	}
	if err := s.checkCounselor(ctx, s.store, *req.AssignedCounselor); err != nil {
		return CreateRuleResult{}, err
	}

	rule, err := s.create(ctx, s.store, actor, req)
	if err != nil {
		return CreateRuleResult{}, err
	}

	result := CreateRuleResult{Rule: rule}
	if rule.IsCatchAll() {
		result.Warning = CatchAllWarning
		s.log.Warn("catch-all assignment rule created", "rule_id", rule.ID.String(), "priority", rule.Priority)
	}
	s.bus.Publish(ctx, events.AssignmentRuleCreated{
		BaseEvent: events.NewBaseEventAt(rule.CreatedAt),
		RuleID:    rule.ID,
		CatchAll:  rule.IsCatchAll(),
	})
	return result, nil
}

func (s *Service) ListRules(ctx context.Context) ([]repository.Rule, error) {
	return s.store.ListRules(ctx)
}

// SetActive enables or disables a rule.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (repository.Rule, error) {
	rule, err := s.store.SetRuleActive(ctx, id, active)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Rule{}, apperr.NotFound("assignment rule not found")
		}
		return repository.Rule{}, err
	}
	s.log.Info("assignment rule toggled", "rule_id", id.String(), "active", active)
	return rule, nil
}
