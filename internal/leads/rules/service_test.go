package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/internal/leads/repository/memstore"
	"leadconsole_backend/platform/apperr"
	"leadconsole_backend/platform/events"
	"leadconsole_backend/platform/logger"

	"github.com/google/uuid"
)

type nopBus struct{ published int }

func (b *nopBus) Publish(context.Context, events.Event)           { b.published++ }
func (b *nopBus) PublishSync(context.Context, events.Event) error { b.published++; return nil }
func (b *nopBus) Subscribe(string, events.Handler)                {}

func strPtr(s string) *string { return &s }

var fixedNow = time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *memstore.Store, repository.Counselor) {
	t.Helper()
	store := memstore.New()
	c := repository.Counselor{ID: uuid.New(), Name: "C9", Email: "c9@example.org", IsActive: true}
	store.SeedCounselor(c)
	svc := New(store, &nopBus{}, logger.NewDiscard(), time.UTC).WithClock(func() time.Time { return fixedNow })
	return svc, store, c
}

func TestFirstMatchPrefersLowerPriority(t *testing.T) {
	r1 := repository.Rule{Name: "R1", Priority: 1, TriggerCategory: strPtr("A")}
	r2 := repository.Rule{Name: "R2", Priority: 2}

	for _, status := range domain.Statuses() {
		rule, ok := FirstMatch([]repository.Rule{r1, r2}, strPtr("A"), status)
		if !ok || rule.Name != "R1" {
			t.Fatalf("status %s: expected R1, got %q", status, rule.Name)
		}
	}

	rule, ok := FirstMatch([]repository.Rule{r1, r2}, nil, domain.StatusEnrolled)
	if !ok || rule.Name != "R2" {
		t.Fatalf("NULL category should only match the catch-all, got %q", rule.Name)
	}
}

func TestMatchesRequiresEveryTrigger(t *testing.T) {
	rule := repository.Rule{TriggerCategory: strPtr("bch"), TriggerStatus: strPtr(domain.StatusCounsellingCallBooked)}
	cases := []struct {
		category *string
		status   string
		want     bool
	}{
		{strPtr("bch"), domain.StatusCounsellingCallBooked, true},
		{strPtr("bch"), domain.StatusEnrolled, false},
		{strPtr("lc1"), domain.StatusCounsellingCallBooked, false},
		{nil, domain.StatusCounsellingCallBooked, false},
	}
	for _, tc := range cases {
		if got := Matches(rule, tc.category, tc.status); got != tc.want {
			t.Fatalf("Matches(%v, %s) = %v, want %v", tc.category, tc.status, got, tc.want)
		}
	}
}

func TestFindMatchingRuleHonoursWindowAndActiveFlag(t *testing.T) {
	svc, store, c := newService(t)
	yesterday := fixedNow.AddDate(0, 0, -1)
	tomorrow := fixedNow.AddDate(0, 0, 1)

	store.SeedRule(repository.Rule{Name: "future", Priority: 0, TriggerCategory: strPtr("bch"), AssignedCounselor: c.ID, StartDate: tomorrow, IsActive: true})
	store.SeedRule(repository.Rule{Name: "inactive", Priority: 0, TriggerCategory: strPtr("bch"), AssignedCounselor: c.ID, StartDate: yesterday})
	store.SeedRule(repository.Rule{Name: "expired", Priority: 0, TriggerCategory: strPtr("bch"), AssignedCounselor: c.ID, StartDate: yesterday.AddDate(0, 0, -5), EndDate: &yesterday, IsActive: true})
	store.SeedRule(repository.Rule{Name: "ends today", Priority: 5, TriggerCategory: strPtr("bch"), AssignedCounselor: c.ID, StartDate: yesterday, EndDate: &fixedNow, IsActive: true})

	rule, err := svc.FindMatchingRule(context.Background(), strPtr("bch"), domain.StatusEnrolled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule == nil || rule.Name != "ends today" {
		t.Fatalf("expected the rule ending today, got %+v", rule)
	}

	rule, err = svc.FindMatchingRule(context.Background(), strPtr("lc3"), domain.StatusEnrolled)
	if err != nil || rule != nil {
		t.Fatalf("expected no match, got %+v, %v", rule, err)
	}
}

func TestTodayUsesBusinessTimezone(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	svc := New(memstore.New(), &nopBus{}, logger.NewDiscard(), kolkata).WithClock(func() time.Time { return fixedNow })
	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if got := svc.Today(); !got.Equal(want) {
		t.Fatalf("Today() = %v, want %v", got, want)
	}
}

func TestFindMatchingRuleWrapsStoreFailure(t *testing.T) {
	svc, store, _ := newService(t)
	store.FailOn(memstore.OpListEffectiveRules, errors.New("connection refused"))
	if _, err := svc.FindMatchingRule(context.Background(), strPtr("bch"), domain.StatusEnrolled); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateRuleValidation(t *testing.T) {
	svc, store, c := newService(t)
	inactive := repository.Counselor{ID: uuid.New(), Name: "Gone"}
	store.SeedCounselor(inactive)
	unknown := uuid.New()
	before := fixedNow.AddDate(0, 0, -3)

	cases := []struct {
		name string
		req  CreateRuleRequest
		kind apperr.Kind
	}{
		{"no counselor", CreateRuleRequest{TriggerCategory: strPtr("bch")}, apperr.KindValidation},
		{"end before start", CreateRuleRequest{AssignedCounselor: &c.ID, TriggerCategory: strPtr("bch"), EndDate: &before}, apperr.KindValidation},
		{"no trigger", CreateRuleRequest{AssignedCounselor: &c.ID}, apperr.KindValidation},
		{"blank trigger", CreateRuleRequest{AssignedCounselor: &c.ID, TriggerCategory: strPtr("  ")}, apperr.KindValidation},
		{"unknown category", CreateRuleRequest{AssignedCounselor: &c.ID, TriggerCategory: strPtr("vip")}, apperr.KindValidation},
		{"unknown status", CreateRuleRequest{AssignedCounselor: &c.ID, TriggerStatus: strPtr("00_new")}, apperr.KindValidation},
		{"negative priority", CreateRuleRequest{AssignedCounselor: &c.ID, TriggerCategory: strPtr("bch"), Priority: -1}, apperr.KindValidation},
		{"inactive counselor", CreateRuleRequest{AssignedCounselor: &inactive.ID, TriggerCategory: strPtr("bch")}, apperr.KindValidation},
		{"unknown counselor", CreateRuleRequest{AssignedCounselor: &unknown, TriggerCategory: strPtr("bch")}, apperr.KindNotFound},
	}
	for _, tc := range cases {
		_, err := svc.CreateRule(context.Background(), domain.SystemActor(), tc.req)
		if !apperr.Is(err, tc.kind) {
			t.Fatalf("%s: expected kind %v, got %v", tc.name, tc.kind, err)
		}
	}

	rules, _ := store.ListRules(context.Background())
	if len(rules) != 0 {
		t.Fatalf("no rule should be saved, got %d", len(rules))
	}
}

func TestCreateRuleDefaultsAndCatchAllWarning(t *testing.T) {
	svc, _, c := newService(t)

	res, err := svc.CreateRule(context.Background(), domain.SystemActor(), CreateRuleRequest{
		Name:              " Booked BCH ",
		AssignedCounselor: &c.ID,
		TriggerCategory:   strPtr("bch"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Warning != "" || !res.Rule.IsActive || res.Rule.Name != "Booked BCH" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !res.Rule.StartDate.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start date should default to today, got %v", res.Rule.StartDate)
	}

	res, err = svc.CreateRule(context.Background(), domain.SystemActor(), CreateRuleRequest{
		Name:              "Everything else",
		Priority:          100,
		AssignedCounselor: &c.ID,
		AllowCatchAll:     true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Warning != CatchAllWarning {
		t.Fatalf("expected catch-all warning, got %q", res.Warning)
	}
}

func TestSetActive(t *testing.T) {
	svc, store, c := newService(t)
	rule := store.SeedRule(repository.Rule{Name: "r", TriggerCategory: strPtr("bch"), AssignedCounselor: c.ID, StartDate: fixedNow, IsActive: true})

	updated, err := svc.SetActive(context.Background(), rule.ID, false)
	if err != nil || updated.IsActive {
		t.Fatalf("expected rule to be disabled, got %+v, %v", updated, err)
	}
	if _, err := svc.SetActive(context.Background(), uuid.New(), true); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestImportRulesIsAllOrNothing(t *testing.T) {
	svc, store, _ := newService(t)

	specs := []RuleSpec{
		{Name: "bch booked", Priority: 1, Category: "bch", CounselorEmail: "C9@example.org", StartDate: "2026-03-01"},
		{Name: "broken", Priority: 2, Category: "lc1", CounselorEmail: "nobody@example.org"},
	}
	_, err := svc.ImportRules(context.Background(), domain.SystemActor(), specs)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for unknown counselor, got %v", err)
	}
	rules, _ := store.ListRules(context.Background())
	if len(rules) != 0 {
		t.Fatalf("failed import must not save rules, got %d", len(rules))
	}

	specs[1] = RuleSpec{Name: "fallback", Priority: 99, CounselorEmail: "c9@example.org", AllowCatchAll: true}
	res, err := svc.ImportRules(context.Background(), domain.SystemActor(), specs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Created) != 2 || len(res.Warnings) != 1 {
		t.Fatalf("unexpected import result: %+v", res)
	}

	bad := []RuleSpec{{Name: "bad date", Category: "bch", CounselorEmail: "c9@example.org", StartDate: "03/01/2026"}}
	if _, err := svc.ImportRules(context.Background(), domain.SystemActor(), bad); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for bad date, got %v", err)
	}
}
