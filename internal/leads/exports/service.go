// Package exports drives leads through the WhatsApp campaign hand-off
// (not_exported, exported, message_sent) and derives the export buckets.
package exports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"leadconsole_backend/internal/events"
	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/platform/apperr"
	"leadconsole_backend/platform/logger"
	"leadconsole_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	// DefaultListLimit bounds bucket listings when the caller gives no limit.
	DefaultListLimit = 200
	MaxListLimit     = 1000

	maxCampaignMessageLength = 4096
	campaignSentNote         = "campaign message sent"
)

type Service struct {
	store      repository.Store
	classifier Classifier
	archiver   ManifestArchiver
	sender     MessageSender
	region     string
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
}

func New(store repository.Store, qualified domain.QualifiedSet, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		classifier: NewClassifier(qualified),
		region:     phone.DefaultRegion,
		bus:        bus,
		log:        log,
		now:        time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithArchiver enables manifest archiving of export batches.
func (s *Service) WithArchiver(archiver ManifestArchiver) *Service {
	s.archiver = archiver
	return s
}

// WithSender enables campaign messages. region is used for phone numbers
// written without a country code.
func (s *Service) WithSender(sender MessageSender, region string) *Service {
	s.sender = sender
	if region != "" {
		s.region = region
	}
	return s
}

func (s *Service) Classifier() Classifier {
	return s.classifier
}

// =====================================
// Bucket views
// =====================================

type BucketCounts struct {
	NotBooked      int
	BookedNearTerm int
	BookedFarTerm  int
	Exported       int
	ByStage        map[string]int
}

func (s *Service) BucketCounts(ctx context.Context) (BucketCounts, error) {
	eligible, err := s.store.ListExportCandidates(ctx, repository.ExportCandidateFilter{
		QualifiedCategories: s.classifier.qualified.Slice(),
		ExportStatuses:      []string{domain.ExportStatusNotExported},
	})
	if err != nil {
		return BucketCounts{}, err
	}

	var counts BucketCounts
	for _, lead := range eligible {
		bucket, ok := s.classifier.ActionableBucket(lead)
		if !ok {
			continue
		}
		switch bucket {
		case BucketNotBooked:
			counts.NotBooked++
		case BucketBookedNearTerm:
			counts.BookedNearTerm++
		case BucketBookedFarTerm:
			counts.BookedFarTerm++
		}
	}

	exported, err := s.store.ListExportCandidates(ctx, repository.ExportCandidateFilter{
		ExportStatuses: []string{domain.ExportStatusExported, domain.ExportStatusMessageSent},
	})
	if err != nil {
		return BucketCounts{}, err
	}
	counts.Exported = len(exported)

	counts.ByStage, err = s.store.CountByStage(ctx, StageNotInCRM)
	if err != nil {
		return BucketCounts{}, err
	}
	return counts, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}

// ListBucket returns the leads of one automatic bucket or of the exported
// bucket. by_stage is listed through ListByStage.
func (s *Service) ListBucket(ctx context.Context, bucket Bucket, limit int) ([]repository.Lead, error) {
	limit = clampLimit(limit)

	switch bucket {
	case BucketExported:
		return s.store.ListExportCandidates(ctx, repository.ExportCandidateFilter{
			ExportStatuses: []string{domain.ExportStatusExported, domain.ExportStatusMessageSent},
			Limit:          limit,
		})
	case BucketNotBooked, BucketBookedNearTerm, BucketBookedFarTerm:
	case BucketByStage:
		return nil, apperr.Validation("by_stage leads are listed per stage")
	default:
		return nil, apperr.Validation("unknown export bucket")
	}

	candidates, err := s.store.ListExportCandidates(ctx, repository.ExportCandidateFilter{
		QualifiedCategories: s.classifier.qualified.Slice(),
		ExportStatuses:      []string{domain.ExportStatusNotExported},
	})
	if err != nil {
		return nil, err
	}

	out := make([]repository.Lead, 0)
	for _, lead := range candidates {
		if b, ok := s.classifier.ActionableBucket(lead); ok && b == bucket {
			out = append(out, lead)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// ListByStage returns leads of any category whose CRM status is in
// statuses, plus leads without a CRM record when includeNotInCRM is set.
func (s *Service) ListByStage(ctx context.Context, statuses []string, includeNotInCRM bool, limit int) ([]repository.Lead, error) {
	for _, st := range statuses {
		if !domain.IsKnownStatus(st) {
			return nil, apperr.Validation("unknown lead status: " + st)
		}
	}
	if len(statuses) == 0 && !includeNotInCRM {
		return nil, apperr.Validation("select at least one stage")
	}

	leads, _, err := s.store.ListLeads(ctx, repository.ListParams{
		Statuses:        statuses,
		IncludeNotInCRM: includeNotInCRM,
		Limit:           clampLimit(limit),
	})
	return leads, err
}

// =====================================
// State machine
// =====================================

// BatchResult describes a committed export transition.
type BatchResult struct {
	SessionIDs []string
	From       string
	To         string
	At         time.Time
}

// Export moves every lead from not_exported to exported.
func (s *Service) Export(ctx context.Context, actor domain.Actor, sessionIDs []string) (BatchResult, error) {
	return s.transition(ctx, actor, sessionIDs, domain.ExportStatusExported, "")
}

// MarkMessageSent moves every lead from exported to message_sent.
func (s *Service) MarkMessageSent(ctx context.Context, actor domain.Actor, sessionIDs []string, notes string) (BatchResult, error) {
	return s.transition(ctx, actor, sessionIDs, domain.ExportStatusMessageSent, notes)
}

// SetStatus dispatches on target. There is no way back to not_exported.
func (s *Service) SetStatus(ctx context.Context, actor domain.Actor, sessionIDs []string, target, notes string) (BatchResult, error) {
	switch target {
	case domain.ExportStatusExported:
		return s.transition(ctx, actor, sessionIDs, target, notes)
	case domain.ExportStatusMessageSent:
		return s.MarkMessageSent(ctx, actor, sessionIDs, notes)
	case domain.ExportStatusNotExported:
		return BatchResult{}, apperr.Validation("export status cannot move back to not_exported")
	default:
		return BatchResult{}, apperr.Validation("unknown export status: " + target)
	}
}

// TransitionNote formats the line appended to an export record's notes.
func TransitionNote(at time.Time, from, to, actor, notes string) string {
	line := fmt.Sprintf("[%s] export_status: %s -> %s by %s", at.UTC().Format(time.RFC3339), from, to, actor)
	if notes = strings.TrimSpace(notes); notes != "" {
		line += ": " + notes
	}
	return line
}

// offending returns the ids whose export record is missing or not in from.
func offending(ids []string, records map[string]repository.ExportRecord, from string) []string {
	out := make([]string, 0)
	for _, id := range ids {
		rec, ok := records[id]
		if !ok || rec.ExportStatus != from {
			out = append(out, id)
		}
	}
	return out
}

func conflictFor(from, to string, ids []string) error {
	return apperr.StateConflict(
		fmt.Sprintf("%d lead(s) are not in %s and cannot move to %s", len(ids), from, to),
		ids,
	)
}

func (s *Service) transition(ctx context.Context, actor domain.Actor, sessionIDs []string, target, notes string) (BatchResult, error) {
	return s.transitionThen(ctx, actor, sessionIDs, target, notes, nil)
}

// transitionThen moves the batch and, when then is set, runs it inside the
// same unit of work after every lead has been claimed. An error from then
// rolls the whole batch back.
func (s *Service) transitionThen(ctx context.Context, actor domain.Actor, sessionIDs []string, target, notes string, then func() error) (BatchResult, error) {
	ids := domain.UniqueSessionIDs(sessionIDs)
	if len(ids) == 0 {
		return BatchResult{}, apperr.Validation("no leads selected")
	}
	from, ok := domain.ExportSourceStatus(target)
	if !ok {
		return BatchResult{}, apperr.Validation("unknown export status: " + target)
	}
	if utf8.RuneCountInString(notes) > domain.MaxCommentLength {
		return BatchResult{}, apperr.Validation(fmt.Sprintf("notes must be at most %d characters", domain.MaxCommentLength))
	}

	records, err := s.store.GetExportRecords(ctx, ids)
	if err != nil {
		return BatchResult{}, err
	}
	if bad := offending(ids, records, from); len(bad) > 0 {
		return BatchResult{}, conflictFor(from, target, bad)
	}

	at := s.now()
	actorName := actor.DisplayName()
	params := repository.ExportTransitionParams{
		SessionIDs:     ids,
		From:           from,
		To:             target,
		At:             at,
		SetExportDate:  target == domain.ExportStatusExported,
		SetMessageDate: target == domain.ExportStatusMessageSent,
		NoteFor: func(string) string {
			return TransitionNote(at, from, target, actorName, notes)
		},
	}
	if params.SetExportDate {
		params.ExportedBy = &actorName
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		n, err := tx.TransitionExports(ctx, params)
		if err != nil {
			return err
		}
		if n == len(ids) {
			if then != nil {
				return then()
			}
			return nil
		}
		// Another writer moved some leads after validation.
		current, err := tx.GetExportRecords(ctx, ids)
		if err != nil {
			return err
		}
		bad := offending(ids, current, from)
		if len(bad) == 0 {
			bad = ids
		}
		return conflictFor(from, target, bad)
	})
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{SessionIDs: ids, From: from, To: target, At: at}
	s.bus.Publish(ctx, events.LeadsExportTransitioned{
		BaseEvent:  events.NewBaseEventAt(at),
		SessionIDs: ids,
		From:       from,
		To:         target,
		Actor:      actorName,
	})
	s.log.WithContext(ctx).Info("export batch transitioned", "from", from, "to", target, "count", len(ids))

	if target == domain.ExportStatusExported {
		s.archive(ctx, result, actorName)
	}
	return result, nil
}

// archive stores a manifest of the batch. Failures are logged only.
func (s *Service) archive(ctx context.Context, batch BatchResult, actorName string) {
	if s.archiver == nil {
		return
	}

	manifest := Manifest{
		BatchID:    uuid.New(),
		ExportedAt: batch.At,
		ExportedBy: actorName,
		Leads:      make([]ManifestLead, 0, len(batch.SessionIDs)),
	}
	for _, id := range batch.SessionIDs {
		lead, err := s.store.GetLead(ctx, id)
		if err != nil {
			s.log.WithContext(ctx).AuxiliaryFailure("export_manifest", id, err)
			return
		}
		bucket := automaticBucket(lead)
		manifest.Leads = append(manifest.Leads, ManifestLead{
			SessionID:    id,
			StudentName:  lead.StudentName,
			ParentName:   lead.ParentName,
			Phone:        phone.NormalizeE164(lead.Phone, s.region),
			Category:     lead.LeadCategory,
			Booked:       lead.IsCounsellingBooked,
			SelectedDate: lead.SelectedDate,
			Bucket:       bucket,
		})
	}

	key, err := s.archiver.ArchiveManifest(ctx, manifest)
	if err != nil {
		s.log.WithContext(ctx).AuxiliaryFailure("export_manifest", manifest.BatchID.String(), err)
		return
	}
	s.log.WithContext(ctx).Info("export manifest archived", "key", key, "count", len(manifest.Leads))
}

// =====================================
// Reconciliation
// =====================================

type ReconcileResult struct {
	Created        int
	AlreadyPresent int
}

// Reconcile gives every intake without an export record a not_exported
// one. Safe to run repeatedly; a record created concurrently counts as
// already present. Any other failure stops the pass.
func (s *Service) Reconcile(ctx context.Context) (ReconcileResult, error) {
	ids, err := s.store.ListSessionIDsWithoutExport(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list intakes without export record: %w", err)
	}

	var result ReconcileResult
	at := s.now()
	for _, id := range ids {
		err := s.store.CreateExportRecord(ctx, id, at)
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, repository.ErrDuplicate):
			result.AlreadyPresent++
		default:
			return result, fmt.Errorf("create export record for %s: %w", id, err)
		}
	}

	s.bus.Publish(ctx, events.ExportRecordsReconciled{
		BaseEvent:      events.NewBaseEventAt(at),
		Created:        result.Created,
		AlreadyPresent: result.AlreadyPresent,
	})
	s.log.Info("export records reconciled", "created", result.Created, "already_present", result.AlreadyPresent)
	return result, nil
}

// =====================================
// Campaign messages
// =====================================

// SendResult reports how far a campaign send got.
type SendResult struct {
	Total           int
	Sent            int
	FailedSessionID string
}

// SendCampaignMessage requires every lead to be exported, then messages
// each lead in order. A lead is claimed as message_sent before its message
// goes out, and the claim is rolled back if the gateway refuses it, so a
// lead is never messaged twice. It stops at the first failure; leads
// already sent stay sent.
func (s *Service) SendCampaignMessage(ctx context.Context, actor domain.Actor, sessionIDs []string, message string) (SendResult, error) {
	ids := domain.UniqueSessionIDs(sessionIDs)
	if len(ids) == 0 {
		return SendResult{}, apperr.Validation("no leads selected")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return SendResult{}, apperr.Validation("message is required")
	}
	if utf8.RuneCountInString(message) > maxCampaignMessageLength {
		return SendResult{}, apperr.Validation(fmt.Sprintf("message must be at most %d characters", maxCampaignMessageLength))
	}
	if s.sender == nil {
		return SendResult{}, apperr.BadRequest("campaign messaging is not configured")
	}

	records, err := s.store.GetExportRecords(ctx, ids)
	if err != nil {
		return SendResult{}, err
	}
	if bad := offending(ids, records, domain.ExportStatusExported); len(bad) > 0 {
		return SendResult{}, conflictFor(domain.ExportStatusExported, domain.ExportStatusMessageSent, bad)
	}

	result := SendResult{Total: len(ids)}
	for _, id := range ids {
		if err := s.sendOne(ctx, actor, id, message); err != nil {
			result.FailedSessionID = id
			return result, err
		}
		result.Sent++
	}
	return result, nil
}

func (s *Service) sendOne(ctx context.Context, actor domain.Actor, sessionID, message string) error {
	lead, err := s.store.GetLead(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found")
		}
		return err
	}
	if !phone.IsDialable(lead.Phone, s.region) {
		return apperr.Validation("lead has no dialable phone number")
	}

	to := phone.NormalizeE164(lead.Phone, s.region)
	_, err = s.transitionThen(ctx, actor, []string{sessionID}, domain.ExportStatusMessageSent, campaignSentNote, func() error {
		if err := s.sender.SendMessage(ctx, to, message); err != nil {
			return fmt.Errorf("send campaign message: %w", err)
		}
		return nil
	})
	return err
}
