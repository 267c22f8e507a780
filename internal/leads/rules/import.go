package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/platform/apperr"
)

// dateLayout is the calendar format used in rule seed files.
const dateLayout = "2006-01-02"

// RuleSpec is one rule in a seed file. The counselor is referenced by email
// so files stay portable between environments.
type RuleSpec struct {
	Name           string `yaml:"name"`
	Priority       int    `yaml:"priority"`
	Category       string `yaml:"category"`
	Status         string `yaml:"status"`
	CounselorEmail string `yaml:"counselor"`
	StartDate      string `yaml:"start_date"`
	EndDate        string `yaml:"end_date"`
	Inactive       bool   `yaml:"inactive"`
	AllowCatchAll  bool   `yaml:"allow_catch_all"`
}

type ImportResult struct {
	Created  []repository.Rule
	Warnings []string
}

func parseOptionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// ImportRules validates every spec first and then creates all of them in
// one transaction, so a bad file changes nothing.
func (s *Service) ImportRules(ctx context.Context, actor domain.Actor, specs []RuleSpec) (ImportResult, error) {
	if len(specs) == 0 {
		return ImportResult{}, apperr.Validation("no rules to import")
	}

	var result ImportResult
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		requests := make([]CreateRuleRequest, 0, len(specs))
		for i, spec := range specs {
			req, err := s.requestFromSpec(ctx, tx, spec)
			if err != nil {
				return wrapSpecError(i, spec, err)
			}
			requests = append(requests, req)
		}

		for _, req := range requests {
			rule, err := s.create(ctx, tx, actor, req)
			if err != nil {
				return err
			}
			result.Created = append(result.Created, rule)
			if rule.IsCatchAll() {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", rule.Name, CatchAllWarning))
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	s.log.Info("assignment rules imported", "count", len(result.Created))
	return result, nil
}

func (s *Service) requestFromSpec(ctx context.Context, store repository.Store, spec RuleSpec) (CreateRuleRequest, error) {
	if spec.CounselorEmail == "" {
		return CreateRuleRequest{}, apperr.Validation("no counselor selected")
	}
	counselor, err := store.GetCounselorByEmail(ctx, spec.CounselorEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return CreateRuleRequest{}, apperr.NotFound("counselor not found: " + spec.CounselorEmail)
		}
		return CreateRuleRequest{}, err
	}

	start, err := parseOptionalDate(spec.StartDate)
	if err != nil {
		return CreateRuleRequest{}, apperr.Validation("invalid start_date")
	}
	end, err := parseOptionalDate(spec.EndDate)
	if err != nil {
		return CreateRuleRequest{}, apperr.Validation("invalid end_date")
	}

	req := CreateRuleRequest{
		Name:              spec.Name,
		Priority:          spec.Priority,
		TriggerCategory:   optionalString(spec.Category),
		TriggerStatus:     optionalString(spec.Status),
		AssignedCounselor: &counselor.ID,
		StartDate:         start,
		EndDate:           end,
		Inactive:          spec.Inactive,
		AllowCatchAll:     spec.AllowCatchAll,
	}
	if err := s.validate(&req); err != nil {
		return CreateRuleRequest{}, err
	}
	if !counselor.IsActive {
		return CreateRuleRequest{}, apperr.Validation("counselor is inactive")
	}
	return req, nil
}

func wrapSpecError(index int, spec RuleSpec, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return apperr.New(appErr.Kind, fmt.Sprintf("rule %d (%s): %s", index+1, spec.Name, appErr.Message))
	}
	return fmt.Errorf("rule %d (%s): %w", index+1, spec.Name, err)
}
