// Package memstore is an in-memory repository.Store used by service tests and
// local tooling. Transactions snapshot the whole state and restore it when
// the unit of work fails.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Operation names accepted by FailOn.
const (
	OpGetIntake          = "GetIntake"
	OpInsertCrmRecord    = "InsertCrmRecord"
	OpUpdateStatus       = "UpdateStatus"
	OpAssignIfUnassigned = "AssignIfUnassigned"
	OpSetAssignee        = "SetAssignee"
	OpAppendAuditEntry   = "AppendAuditEntry"
	OpListEffectiveRules = "ListEffectiveRules"
	OpCreateExportRecord = "CreateExportRecord"
	OpTransitionExports  = "TransitionExports"
)

type state struct {
	intakes    map[string]repository.Intake
	crm        map[string]repository.CrmRecord
	exports    map[string]repository.ExportRecord
	counselors map[uuid.UUID]repository.Counselor
	rules      map[uuid.UUID]repository.Rule
	audit      []repository.AuditEntry
	nextAudit  int64
}

func (s *state) clone() *state {
	return &state{
		intakes:    maps.Clone(s.intakes),
		crm:        maps.Clone(s.crm),
		exports:    maps.Clone(s.exports),
		counselors: maps.Clone(s.counselors),
		rules:      maps.Clone(s.rules),
		audit:      slices.Clone(s.audit),
		nextAudit:  s.nextAudit,
	}
}

type failure struct {
	err       error
	sessionID string
}

type shared struct {
	// writer is held by the outermost unit of work and by every call made
	// outside one, so a rollback never drops another goroutine's write.
	writer   sync.Mutex
	mu       sync.Mutex
	st       *state
	failures map[string]*failure
	calls    map[string]int
}

// Store implements repository.Store.
type Store struct {
	sh   *shared
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{sh: &shared{
		st: &state{
			intakes:    make(map[string]repository.Intake),
			crm:        make(map[string]repository.CrmRecord),
			exports:    make(map[string]repository.ExportRecord),
			counselors: make(map[uuid.UUID]repository.Counselor),
			rules:      make(map[uuid.UUID]repository.Rule),
			nextAudit:  1,
		},
		failures: make(map[string]*failure),
		calls:    make(map[string]int),
	}}
}

// FailOn makes every later call of op return err.
func (s *Store) FailOn(op string, err error) {
	defer s.lock()()
	s.sh.failures[op] = &failure{err: err}
}

// FailOnSession makes op return err only when called for sessionID.
func (s *Store) FailOnSession(op, sessionID string, err error) {
	defer s.lock()()
	s.sh.failures[op] = &failure{err: err, sessionID: sessionID}
}

// ClearFailures removes all injected failures.
func (s *Store) ClearFailures() {
	defer s.lock()()
	s.sh.failures = make(map[string]*failure)
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	defer s.lock()()
	return s.sh.calls[op]
}

// lock serializes s against units of work running on other handles.
// Handles inside a unit of work already own the writer lock.
func (s *Store) lock() func() {
	if !s.inTx {
		s.sh.writer.Lock()
	}
	s.sh.mu.Lock()
	return func() {
		s.sh.mu.Unlock()
		if !s.inTx {
			s.sh.writer.Unlock()
		}
	}
}

// check must be called with the lock held.
func (s *Store) check(op, sessionID string) error {
	s.sh.calls[op]++
	f, ok := s.sh.failures[op]
	if !ok {
		return nil
	}
	if f.sessionID != "" && f.sessionID != sessionID {
		return nil
	}
	return f.err
}

// WithinTx snapshots the state and restores it if fn fails. Nested calls
// behave like savepoints. Units of work run one at a time; calls on the
// root handle wait until the running unit finishes.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.sh.writer.Lock()
		defer s.sh.writer.Unlock()
	}
	s.sh.mu.Lock()
	snapshot := s.sh.st.clone()
	s.sh.mu.Unlock()

	if err := fn(&Store{sh: s.sh, inTx: true}); err != nil {
		s.sh.mu.Lock()
		s.sh.st = snapshot
		s.sh.mu.Unlock()
		return err
	}
	return nil
}

// InTx reports whether the store handle belongs to a unit of work.
func (s *Store) InTx() bool { return s.inTx }

// =====================================
// Seeding helpers
// =====================================

func (s *Store) SeedIntake(in repository.Intake) {
	defer s.lock()()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	s.sh.st.intakes[in.SessionID] = in
}

func (s *Store) SeedCrm(rec repository.CrmRecord) {
	defer s.lock()()
	if rec.LeadStatus == "" {
		rec.LeadStatus = domain.DefaultStatus
	}
	s.sh.st.crm[rec.SessionID] = rec
}

func (s *Store) SeedExport(rec repository.ExportRecord) {
	defer s.lock()()
	s.sh.st.exports[rec.SessionID] = rec
}

func (s *Store) SeedCounselor(c repository.Counselor) {
	defer s.lock()()
	s.sh.st.counselors[c.ID] = c
}

func (s *Store) SeedRule(rule repository.Rule) repository.Rule {
	defer s.lock()()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	s.sh.st.rules[rule.ID] = rule
	return rule
}

// CrmRecord returns the stored CRM record for assertions.
func (s *Store) CrmRecord(sessionID string) (repository.CrmRecord, bool) {
	defer s.lock()()
	rec, ok := s.sh.st.crm[sessionID]
	return rec, ok
}

// ExportRecord returns the stored export record for assertions.
func (s *Store) ExportRecord(sessionID string) (repository.ExportRecord, bool) {
	defer s.lock()()
	rec, ok := s.sh.st.exports[sessionID]
	return rec, ok
}

// AuditEntries returns the stored audit entries for sessionID in id order.
func (s *Store) AuditEntries(sessionID string) []repository.AuditEntry {
	defer s.lock()()
	return s.auditFor(sessionID)
}

func (s *Store) auditFor(sessionID string) []repository.AuditEntry {
	out := make([]repository.AuditEntry, 0)
	for _, e := range s.sh.st.audit {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}

// =====================================
// IntakeReader
// =====================================

func (s *Store) GetIntake(_ context.Context, sessionID string) (repository.Intake, error) {
	defer s.lock()()
	if err := s.check(OpGetIntake, sessionID); err != nil {
		return repository.Intake{}, err
	}
	in, ok := s.sh.st.intakes[sessionID]
	if !ok {
		return repository.Intake{}, repository.ErrNotFound
	}
	return in, nil
}

func (s *Store) ListSessionIDsWithoutExport(_ context.Context) ([]string, error) {
	defer s.lock()()
	ids := make([]string, 0)
	for _, in := range s.sortedIntakes(true) {
		if _, ok := s.sh.st.exports[in.SessionID]; !ok {
			ids = append(ids, in.SessionID)
		}
	}
	return ids, nil
}

func (s *Store) sortedIntakes(ascending bool) []repository.Intake {
	out := slices.Collect(maps.Values(s.sh.st.intakes))
	slices.SortFunc(out, func(a, b repository.Intake) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			if ascending {
				return c
			}
			return -c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out
}

// =====================================
// LeadReader
// =====================================

func (s *Store) compose(in repository.Intake) repository.Lead {
	lead := repository.Lead{Intake: in}
	if rec, ok := s.sh.st.crm[in.SessionID]; ok {
		lead.CRM = &rec
		if rec.AssignedTo != nil {
			if c, ok := s.sh.st.counselors[*rec.AssignedTo]; ok {
				lead.Counselor = &c
			}
		}
	}
	if rec, ok := s.sh.st.exports[in.SessionID]; ok {
		lead.Export = &rec
	}
	return lead
}

func (s *Store) GetLead(_ context.Context, sessionID string) (repository.Lead, error) {
	defer s.lock()()
	in, ok := s.sh.st.intakes[sessionID]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return s.compose(in), nil
}

func matchesList(l repository.Lead, p repository.ListParams) bool {
	qualified := domain.NewQualifiedSet(p.QualifiedCategories)
	switch p.Segment {
	case domain.SegmentNewlySubmitted:
		if l.CRM != nil {
			return false
		}
	case domain.SegmentQualifiedNotBooked:
		if l.IsCounsellingBooked || !qualified.Contains(l.LeadCategory) {
			return false
		}
	case domain.SegmentBooked:
		if !l.IsCounsellingBooked {
			return false
		}
	case domain.SegmentUnassigned:
		if l.CRM != nil && l.CRM.AssignedTo != nil {
			return false
		}
	}

	if len(p.Statuses) > 0 || p.IncludeNotInCRM {
		inStatus := l.CRM != nil && slices.Contains(p.Statuses, l.CRM.LeadStatus)
		notInCRM := p.IncludeNotInCRM && l.CRM == nil
		if !inStatus && !notInCRM {
			return false
		}
	}
	if len(p.Categories) > 0 && (l.LeadCategory == nil || !slices.Contains(p.Categories, *l.LeadCategory)) {
		return false
	}
	if p.AssignedTo != nil && (l.CRM == nil || l.CRM.AssignedTo == nil || *l.CRM.AssignedTo != *p.AssignedTo) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(p.Search)); q != "" {
		hay := strings.ToLower(strings.Join([]string{l.StudentName, l.ParentName, l.Phone, l.Email, l.SessionID}, "\x00"))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

func (s *Store) ListLeads(_ context.Context, p repository.ListParams) ([]repository.Lead, int, error) {
	defer s.lock()()

	matched := make([]repository.Lead, 0)
	for _, in := range s.sortedIntakes(false) {
		lead := s.compose(in)
		if matchesList(lead, p) {
			matched = append(matched, lead)
		}
	}

	total := len(matched)
	start := min(p.Offset, total)
	end := total
	if p.Limit > 0 {
		end = min(start+p.Limit, total)
	}
	return matched[start:end], total, nil
}

func (s *Store) factsOf(in repository.Intake) domain.SegmentFacts {
	rec, hasCRM := s.sh.st.crm[in.SessionID]
	return domain.SegmentFacts{
		Category:     in.LeadCategory,
		IsBooked:     in.IsCounsellingBooked,
		IsFormFilled: in.IsFormFilled,
		HasCRM:       hasCRM,
		IsAssigned:   hasCRM && rec.AssignedTo != nil,
	}
}

func (s *Store) CountSegments(_ context.Context, qualifiedCategories []string) (repository.SegmentCounts, error) {
	defer s.lock()()

	qualified := domain.NewQualifiedSet(qualifiedCategories)
	var c repository.SegmentCounts
	for _, in := range s.sh.st.intakes {
		for _, seg := range domain.Segments(s.factsOf(in), qualified) {
			switch seg {
			case domain.SegmentAll:
				c.All++
			case domain.SegmentNewlySubmitted:
				c.NewlySubmitted++
			case domain.SegmentQualifiedNotBooked:
				c.QualifiedNotBooked++
			case domain.SegmentBooked:
				c.Booked++
			case domain.SegmentUnassigned:
				c.Unassigned++
			}
		}
	}
	return c, nil
}

func (s *Store) CountFunnel(_ context.Context, qualifiedCategories []string) (repository.FunnelCounts, error) {
	defer s.lock()()

	qualified := domain.NewQualifiedSet(qualifiedCategories)
	var c repository.FunnelCounts
	for _, in := range s.sh.st.intakes {
		c.All++
		switch domain.FunnelStage(s.factsOf(in), qualified) {
		case domain.FunnelBooked:
			c.Booked++
		case domain.FunnelQualifiedNotBooked:
			c.QualifiedNotBooked++
		case domain.FunnelFormCompletedUnqualified:
			c.FormCompletedUnqualified++
		default:
			c.Other++
		}
	}
	return c, nil
}

func (s *Store) CountByStage(_ context.Context, notInCRM string) (map[string]int, error) {
	defer s.lock()()

	counts := make(map[string]int)
	for id := range s.sh.st.intakes {
		if rec, ok := s.sh.st.crm[id]; ok {
			counts[rec.LeadStatus]++
		} else {
			counts[notInCRM]++
		}
	}
	return counts, nil
}

func (s *Store) ListExportCandidates(_ context.Context, f repository.ExportCandidateFilter) ([]repository.Lead, error) {
	defer s.lock()()

	out := make([]repository.Lead, 0)
	for _, in := range s.sortedIntakes(false) {
		if len(f.QualifiedCategories) > 0 && (in.LeadCategory == nil || !slices.Contains(f.QualifiedCategories, *in.LeadCategory)) {
			continue
		}
		lead := s.compose(in)
		if len(f.ExportStatuses) > 0 && (lead.Export == nil || !slices.Contains(f.ExportStatuses, lead.Export.ExportStatus)) {
			continue
		}
		out = append(out, lead)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// =====================================
// CrmStore
// =====================================

func (s *Store) GetCrmRecord(_ context.Context, sessionID string) (repository.CrmRecord, error) {
	defer s.lock()()
	rec, ok := s.sh.st.crm[sessionID]
	if !ok {
		return repository.CrmRecord{}, repository.ErrNotFound
	}
	return rec, nil
}

func (s *Store) InsertCrmRecord(_ context.Context, sessionID, status string, at time.Time) (bool, error) {
	defer s.lock()()
	if err := s.check(OpInsertCrmRecord, sessionID); err != nil {
		return false, err
	}
	if _, ok := s.sh.st.intakes[sessionID]; !ok {
		return false, repository.ErrNotFound
	}
	if _, ok := s.sh.st.crm[sessionID]; ok {
		return false, nil
	}
	s.sh.st.crm[sessionID] = repository.CrmRecord{
		SessionID:  sessionID,
		LeadStatus: status,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	return true, nil
}

func (s *Store) UpdateStatus(_ context.Context, sessionID, status string, touch bool, at time.Time) (repository.CrmRecord, error) {
	defer s.lock()()
	if err := s.check(OpUpdateStatus, sessionID); err != nil {
		return repository.CrmRecord{}, err
	}
	rec, ok := s.sh.st.crm[sessionID]
	if !ok {
		return repository.CrmRecord{}, repository.ErrNotFound
	}
	rec.LeadStatus = status
	rec.UpdatedAt = at
	if touch && (rec.LastContacted == nil || rec.LastContacted.Before(at)) {
		t := at
		rec.LastContacted = &t
	}
	s.sh.st.crm[sessionID] = rec
	return rec, nil
}

func (s *Store) AssignIfUnassigned(_ context.Context, sessionID string, counselorID uuid.UUID, at time.Time) (bool, error) {
	defer s.lock()()
	if err := s.check(OpAssignIfUnassigned, sessionID); err != nil {
		return false, err
	}
	rec, ok := s.sh.st.crm[sessionID]
	if !ok || rec.AssignedTo != nil {
		return false, nil
	}
	id := counselorID
	rec.AssignedTo = &id
	rec.UpdatedAt = at
	s.sh.st.crm[sessionID] = rec
	return true, nil
}

func (s *Store) SetAssignee(_ context.Context, sessionID string, counselorID *uuid.UUID, at time.Time) (repository.CrmRecord, error) {
	defer s.lock()()
	if err := s.check(OpSetAssignee, sessionID); err != nil {
		return repository.CrmRecord{}, err
	}
	rec, ok := s.sh.st.crm[sessionID]
	if !ok {
		return repository.CrmRecord{}, repository.ErrNotFound
	}
	if counselorID != nil {
		id := *counselorID
		rec.AssignedTo = &id
	} else {
		rec.AssignedTo = nil
	}
	rec.UpdatedAt = at
	s.sh.st.crm[sessionID] = rec
	return rec, nil
}

// =====================================
// AuditStore
// =====================================

func (s *Store) AppendAuditEntry(_ context.Context, p repository.CreateAuditEntryParams) (repository.AuditEntry, error) {
	defer s.lock()()
	if err := s.check(OpAppendAuditEntry, p.SessionID); err != nil {
		return repository.AuditEntry{}, err
	}
	if _, ok := s.sh.st.intakes[p.SessionID]; !ok {
		return repository.AuditEntry{}, repository.ErrNotFound
	}
	if strings.TrimSpace(p.Comment) == "" {
		return repository.AuditEntry{}, fmt.Errorf("audit comment must not be empty")
	}
	entry := repository.AuditEntry{
		ID:          s.sh.st.nextAudit,
		SessionID:   p.SessionID,
		CounselorID: p.CounselorID,
		AuthorName:  p.AuthorName,
		Kind:        p.Kind,
		Comment:     p.Comment,
		LeadStatus:  p.LeadStatus,
		CreatedAt:   p.CreatedAt,
	}
	s.sh.st.nextAudit++
	s.sh.st.audit = append(s.sh.st.audit, entry)
	return entry, nil
}

func (s *Store) ListAuditEntries(_ context.Context, sessionID string) ([]repository.AuditEntry, error) {
	defer s.lock()()
	return s.auditFor(sessionID), nil
}

// =====================================
// RuleStore
// =====================================

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sortRules(rules []repository.Rule) {
	slices.SortStableFunc(rules, func(a, b repository.Rule) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func (s *Store) ListEffectiveRules(_ context.Context, day time.Time) ([]repository.Rule, error) {
	defer s.lock()()
	if err := s.check(OpListEffectiveRules, ""); err != nil {
		return nil, err
	}
	today := dateOnly(day)
	out := make([]repository.Rule, 0)
	for _, r := range s.sh.st.rules {
		if !r.IsActive || dateOnly(r.StartDate).After(today) {
			continue
		}
		if r.EndDate != nil && dateOnly(*r.EndDate).Before(today) {
			continue
		}
		out = append(out, r)
	}
	sortRules(out)
	return out, nil
}

func (s *Store) ListRules(_ context.Context) ([]repository.Rule, error) {
	defer s.lock()()
	out := slices.Collect(maps.Values(s.sh.st.rules))
	sortRules(out)
	return out, nil
}

func (s *Store) GetRule(_ context.Context, id uuid.UUID) (repository.Rule, error) {
	defer s.lock()()
	r, ok := s.sh.st.rules[id]
	if !ok {
		return repository.Rule{}, repository.ErrNotFound
	}
	return r, nil
}

func (s *Store) CreateRule(_ context.Context, p repository.CreateRuleParams) (repository.Rule, error) {
	defer s.lock()()
	if _, ok := s.sh.st.counselors[p.AssignedCounselor]; !ok {
		return repository.Rule{}, repository.ErrNotFound
	}
	rule := repository.Rule{
		ID:                uuid.New(),
		Name:              p.Name,
		Priority:          p.Priority,
		TriggerCategory:   p.TriggerCategory,
		TriggerStatus:     p.TriggerStatus,
		AssignedCounselor: p.AssignedCounselor,
		StartDate:         dateOnly(p.StartDate),
		IsActive:          p.IsActive,
		CreatedBy:         p.CreatedBy,
		CreatedAt:         p.CreatedAt,
	}
	if p.EndDate != nil {
		end := dateOnly(*p.EndDate)
		rule.EndDate = &end
	}
	s.sh.st.rules[rule.ID] = rule
	return rule, nil
}

func (s *Store) SetRuleActive(_ context.Context, id uuid.UUID, active bool) (repository.Rule, error) {
	defer s.lock()()
	r, ok := s.sh.st.rules[id]
	if !ok {
		return repository.Rule{}, repository.ErrNotFound
	}
	r.IsActive = active
	s.sh.st.rules[id] = r
	return r, nil
}

// =====================================
// CounselorReader
// =====================================

func (s *Store) GetCounselor(_ context.Context, id uuid.UUID) (repository.Counselor, error) {
	defer s.lock()()
	c, ok := s.sh.st.counselors[id]
	if !ok {
		return repository.Counselor{}, repository.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetCounselorByEmail(_ context.Context, email string) (repository.Counselor, error) {
	defer s.lock()()
	for _, c := range s.sh.st.counselors {
		if strings.EqualFold(c.Email, email) {
			return c, nil
		}
	}
	return repository.Counselor{}, repository.ErrNotFound
}

// =====================================
// ExportStore
// =====================================

func (s *Store) GetExportRecords(_ context.Context, sessionIDs []string) (map[string]repository.ExportRecord, error) {
	defer s.lock()()
	out := make(map[string]repository.ExportRecord, len(sessionIDs))
	for _, id := range sessionIDs {
		if rec, ok := s.sh.st.exports[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (s *Store) CreateExportRecord(_ context.Context, sessionID string, at time.Time) error {
	defer s.lock()()
	if err := s.check(OpCreateExportRecord, sessionID); err != nil {
		return err
	}
	if _, ok := s.sh.st.intakes[sessionID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.sh.st.exports[sessionID]; ok {
		return repository.ErrDuplicate
	}
	s.sh.st.exports[sessionID] = repository.ExportRecord{
		SessionID:    sessionID,
		ExportStatus: domain.ExportStatusNotExported,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	return nil
}

func (s *Store) TransitionExports(_ context.Context, p repository.ExportTransitionParams) (int, error) {
	defer s.lock()()
	if err := s.check(OpTransitionExports, ""); err != nil {
		return 0, err
	}
	affected := 0
	for _, id := range p.SessionIDs {
		rec, ok := s.sh.st.exports[id]
		if !ok || rec.ExportStatus != p.From {
			continue
		}
		at := p.At
		rec.ExportStatus = p.To
		rec.UpdatedAt = at
		if p.SetExportDate {
			rec.ExportDate = &at
			rec.ExportedBy = p.ExportedBy
		}
		if p.SetMessageDate {
			rec.LastMessageDate = &at
		}
		if p.NoteFor != nil {
			if note := p.NoteFor(id); note != "" {
				if rec.Notes == "" {
					rec.Notes = note
				} else {
					rec.Notes += "\n" + note
				}
			}
		}
		s.sh.st.exports[id] = rec
		affected++
	}
	return affected, nil
}
