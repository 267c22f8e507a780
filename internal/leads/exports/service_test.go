package exports

import (
	"context"
	"errors"
	"strings"
	"sync"
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

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeArchiver struct {
	manifests []Manifest
	err       error
}

func (a *fakeArchiver) ArchiveManifest(_ context.Context, m Manifest) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.manifests = append(a.manifests, m)
	return "exports/" + m.BatchID.String() + ".json", nil
}

type fakeSender struct {
	sent   []string
	failOn string
}

func (s *fakeSender) SendMessage(_ context.Context, phoneNumber, _ string) error {
	if phoneNumber == s.failOn {
		return errors.New("gateway unavailable")
	}
	s.sent = append(s.sent, phoneNumber)
	return nil
}

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T) (*Service, *memstore.Store, *recordingBus) {
	t.Helper()
	store := memstore.New()
	bus := &recordingBus{}
	svc := New(store, domain.NewQualifiedSet(domain.DefaultQualifiedCategories), bus, logger.NewDiscard()).
		WithClock(func() time.Time { return fixedNow })
	return svc, store, bus
}

func seedLead(store *memstore.Store, id, category string, exportStatus string) {
	in := repository.Intake{
		SessionID:   id,
		StudentName: "Student " + id,
		ParentName:  "Parent " + id,
		Phone:       "98765 43210",
		CreatedAt:   fixedNow.Add(-48 * time.Hour),
	}
	if category != "" {
		in.LeadCategory = strPtr(category)
	}
	store.SeedIntake(in)
	if exportStatus != "" {
		store.SeedExport(repository.ExportRecord{SessionID: id, ExportStatus: exportStatus, CreatedAt: in.CreatedAt})
	}
}

func TestSlotDistanceDaysRoundsUp(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	slot := created.Add(5*24*time.Hour + time.Minute)
	days, ok := SlotDistanceDays(repository.Intake{CreatedAt: created, SelectedDate: &slot})
	if !ok || days != 6 {
		t.Fatalf("expected 6 days, got %d (ok=%v)", days, ok)
	}
}

func TestClassifierBuckets(t *testing.T) {
	c := NewClassifier(domain.NewQualifiedSet(domain.DefaultQualifiedCategories))
	created := fixedNow
	near := created.Add(5 * 24 * time.Hour)
	far := created.Add(5*24*time.Hour + time.Hour)

	lead := func(category string, booked bool, slot *time.Time, status string) repository.Lead {
		return repository.Lead{
			Intake: repository.Intake{
				LeadCategory:        strPtr(category),
				IsCounsellingBooked: booked,
				SelectedDate:        slot,
				CreatedAt:           created,
			},
			Export: &repository.ExportRecord{ExportStatus: status},
		}
	}

	cases := []struct {
		name string
		lead repository.Lead
		want Bucket
		ok   bool
	}{
		{"not booked", lead("bch", false, nil, domain.ExportStatusNotExported), BucketNotBooked, true},
		{"near term at five days", lead("lc1", true, &near, domain.ExportStatusNotExported), BucketBookedNearTerm, true},
		{"far term past five days", lead("lc2", true, &far, domain.ExportStatusNotExported), BucketBookedFarTerm, true},
		{"booked without slot", lead("bch", true, nil, domain.ExportStatusNotExported), BucketBookedFarTerm, true},
		{"unqualified", lead("nurture", false, nil, domain.ExportStatusNotExported), "", false},
		{"already exported", lead("bch", false, nil, domain.ExportStatusExported), "", false},
	}
	for _, tc := range cases {
		got, ok := c.ActionableBucket(tc.lead)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: got (%q, %v), want (%q, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}

	if c.Eligible(repository.Lead{Intake: repository.Intake{LeadCategory: strPtr("bch")}}) {
		t.Fatal("lead without export record must not be eligible")
	}

	exported := lead("nurture", false, nil, domain.ExportStatusMessageSent)
	buckets := c.Buckets(exported)
	if len(buckets) != 2 || buckets[0] != BucketByStage || buckets[1] != BucketExported {
		t.Fatalf("unexpected buckets for sent lead: %v", buckets)
	}
}

func TestExportMovesEveryLeadAndAppendsNote(t *testing.T) {
	svc, store, bus := newTestService(t)
	archiver := &fakeArchiver{}
	svc.WithArchiver(archiver)
	seedLead(store, "S1", "bch", domain.ExportStatusNotExported)
	seedLead(store, "S2", "lc1", domain.ExportStatusNotExported)

	actor := domain.CounselorActor(uuid.New(), "Asha")
	res, err := svc.Export(context.Background(), actor, []string{"S1", "S2", "S1", " "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.SessionIDs) != 2 {
		t.Fatalf("expected deduplicated ids, got %v", res.SessionIDs)
	}

	for _, id := range []string{"S1", "S2"} {
		rec, _ := store.ExportRecord(id)
		if rec.ExportStatus != domain.ExportStatusExported {
			t.Fatalf("%s: expected exported, got %s", id, rec.ExportStatus)
		}
		if rec.ExportDate == nil || !rec.ExportDate.Equal(fixedNow) {
			t.Fatalf("%s: expected export date to be set", id)
		}
		if rec.ExportedBy == nil || *rec.ExportedBy != "Asha" {
			t.Fatalf("%s: expected exported_by Asha", id)
		}
		want := "[2026-03-10T09:30:00Z] export_status: not_exported -> exported by Asha"
		if rec.Notes != want {
			t.Fatalf("%s: notes = %q, want %q", id, rec.Notes, want)
		}
	}
	if n := len(bus.named("leads.export.transitioned")); n != 1 {
		t.Fatalf("expected one transition event, got %d", n)
	}
	if len(archiver.manifests) != 1 || len(archiver.manifests[0].Leads) != 2 {
		t.Fatalf("expected one manifest with two leads, got %+v", archiver.manifests)
	}
	if archiver.manifests[0].Leads[0].Phone != "+919876543210" {
		t.Fatalf("expected E.164 phone in manifest, got %q", archiver.manifests[0].Leads[0].Phone)
	}
}

func TestExportRejectsWholeBatchWhenOneLeadIsOutOfState(t *testing.T) {
	svc, store, bus := newTestService(t)
	seedLead(store, "S1", "bch", domain.ExportStatusNotExported)
	seedLead(store, "S2", "bch", domain.ExportStatusExported)
	seedLead(store, "S3", "bch", "")

	_, err := svc.Export(context.Background(), domain.SystemActor(), []string{"S1", "S2", "S3"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected apperr.Error, got %T", err)
	}
	details := appErr.Details.(map[string]any)
	ids := details["offendingSessionIds"].([]string)
	if len(ids) != 2 || ids[0] != "S2" || ids[1] != "S3" {
		t.Fatalf("unexpected offending ids: %v", ids)
	}

	rec, _ := store.ExportRecord("S1")
	if rec.ExportStatus != domain.ExportStatusNotExported || rec.Notes != "" {
		t.Fatalf("S1 must be untouched, got %+v", rec)
	}
	if store.Calls(memstore.OpTransitionExports) != 0 {
		t.Fatal("no write should be attempted")
	}
	if len(bus.events) != 0 {
		t.Fatal("no event should be published")
	}
}

// shortStore simulates a concurrent writer moving one lead between the
// validation read and the conditional update.
type shortStore struct {
	repository.Store
	steal string
}

func (s *shortStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(&shortStore{Store: tx, steal: s.steal})
	})
}

func (s *shortStore) TransitionExports(ctx context.Context, p repository.ExportTransitionParams) (int, error) {
	if tx, ok := s.Store.(*memstore.Store); ok {
		rec, _ := tx.ExportRecord(s.steal)
		rec.ExportStatus = domain.ExportStatusExported
		tx.SeedExport(rec)
	}
	return s.Store.TransitionExports(ctx, p)
}

func TestExportRollsBackWhenConditionalUpdateFallsShort(t *testing.T) {
	mem := memstore.New()
	seedLead(mem, "S1", "bch", domain.ExportStatusNotExported)
	seedLead(mem, "S2", "bch", domain.ExportStatusNotExported)
	store := &shortStore{Store: mem, steal: "S2"}
	svc := New(store, domain.NewQualifiedSet(domain.DefaultQualifiedCategories), &recordingBus{}, logger.NewDiscard())

	_, err := svc.Export(context.Background(), domain.SystemActor(), []string{"S1", "S2"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	rec, _ := mem.ExportRecord("S1")
	if rec.ExportStatus != domain.ExportStatusNotExported {
		t.Fatalf("S1 must be rolled back, got %s", rec.ExportStatus)
	}
}

func TestMarkMessageSentRequiresExported(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedLead(store, "S1", "bch", domain.ExportStatusExported)
	seedLead(store, "S2", "bch", domain.ExportStatusNotExported)

	if _, err := svc.MarkMessageSent(context.Background(), domain.SystemActor(), []string{"S1", "S2"}, ""); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := svc.MarkMessageSent(context.Background(), domain.SystemActor(), []string{"S1"}, "template B"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, _ := store.ExportRecord("S1")
	if rec.ExportStatus != domain.ExportStatusMessageSent || rec.LastMessageDate == nil {
		t.Fatalf("expected message_sent with date, got %+v", rec)
	}
	if !strings.HasSuffix(rec.Notes, "exported -> message_sent by System: template B") {
		t.Fatalf("unexpected notes %q", rec.Notes)
	}
}

func TestExportThenMarkMessageSentKeepsBothNotes(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedLead(store, "S1", "bch", domain.ExportStatusNotExported)
	actor := domain.CounselorActor(uuid.New(), "Asha")

	if _, err := svc.Export(context.Background(), actor, []string{"S1"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := svc.MarkMessageSent(context.Background(), actor, []string{"S1"}, "template B"); err != nil {
		t.Fatalf("mark message sent: %v", err)
	}

	rec, _ := store.ExportRecord("S1")
	lines := strings.Split(rec.Notes, "\n")
	want := []string{
		"[2026-03-10T09:30:00Z] export_status: not_exported -> exported by Asha",
		"[2026-03-10T09:30:00Z] export_status: exported -> message_sent by Asha: template B",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d note lines, got %q", len(want), rec.Notes)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
	if rec.ExportDate == nil || rec.LastMessageDate == nil {
		t.Fatalf("expected both dates to be set, got %+v", rec)
	}
}

func TestSetStatusNeverMovesBackwards(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedLead(store, "S1", "bch", domain.ExportStatusExported)

	_, err := svc.SetStatus(context.Background(), domain.SystemActor(), []string{"S1"}, domain.ExportStatusNotExported, "")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.SetStatus(context.Background(), domain.SystemActor(), []string{"S1"}, domain.ExportStatusExported, "")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("re-exporting must conflict, got %v", err)
	}
	if _, err := svc.SetStatus(context.Background(), domain.SystemActor(), nil, domain.ExportStatusExported, ""); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("empty batch must be a validation error, got %v", err)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	svc, store, bus := newTestService(t)
	seedLead(store, "S1", "bch", "")
	seedLead(store, "S2", "nurture", "")
	seedLead(store, "S3", "bch", domain.ExportStatusExported)

	res, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 2 || res.AlreadyPresent != 0 {
		t.Fatalf("unexpected first pass: %+v", res)
	}
	rec, ok := store.ExportRecord("S2")
	if !ok || rec.ExportStatus != domain.ExportStatusNotExported {
		t.Fatalf("expected not_exported record, got %+v", rec)
	}

	res, err = svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 0 {
		t.Fatalf("second pass must create nothing, got %+v", res)
	}
	if n := len(bus.named("leads.export.reconciled")); n != 2 {
		t.Fatalf("expected two reconcile events, got %d", n)
	}
}

func TestReconcileCountsConcurrentInsertAsPresent(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedLead(store, "S1", "bch", "")
	seedLead(store, "S2", "bch", "")
	store.FailOnSession(memstore.OpCreateExportRecord, "S2", repository.ErrDuplicate)

	res, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 1 || res.AlreadyPresent != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	store.FailOnSession(memstore.OpCreateExportRecord, "S2", errors.New("connection reset"))
	if _, err := svc.Reconcile(context.Background()); err == nil {
		t.Fatal("expected other failures to surface")
	}
}

func TestBucketCounts(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedLead(store, "S1", "bch", domain.ExportStatusNotExported)
	seedLead(store, "S2", "nurture", domain.ExportStatusNotExported)
	seedLead(store, "S3", "nurture", domain.ExportStatusMessageSent)
	store.SeedCrm(repository.CrmRecord{SessionID: "S1", LeadStatus: domain.StatusYetToContact})

	counts, err := svc.BucketCounts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.NotBooked != 1 || counts.Exported != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if counts.ByStage[StageNotInCRM] != 2 || counts.ByStage[domain.StatusYetToContact] != 1 {
		t.Fatalf("unexpected by-stage counts: %v", counts.ByStage)
	}

	leads, err := svc.ListBucket(context.Background(), BucketNotBooked, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leads) != 1 || leads[0].SessionID != "S1" {
		t.Fatalf("unexpected not_booked listing: %+v", leads)
	}
}

func TestSendCampaignMessageStopsAtFirstFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	sender := &fakeSender{}
	svc.WithSender(sender, "IN")
	seedLead(store, "S1", "bch", domain.ExportStatusExported)
	seedLead(store, "S2", "bch", domain.ExportStatusExported)
	seedLead(store, "S3", "bch", domain.ExportStatusExported)
	store.SeedIntake(repository.Intake{SessionID: "S2", Phone: "98765 00000", CreatedAt: fixedNow})
	sender.failOn = "+919876500000"

	res, err := svc.SendCampaignMessage(context.Background(), domain.SystemActor(), []string{"S1", "S2", "S3"}, "Hello from the counselling team")
	if err == nil {
		t.Fatal("expected send failure")
	}
	if res.Total != 3 || res.Sent != 1 || res.FailedSessionID != "S2" {
		t.Fatalf("unexpected result: %+v", res)
	}
	rec, _ := store.ExportRecord("S1")
	if rec.ExportStatus != domain.ExportStatusMessageSent {
		t.Fatalf("S1 should stay sent, got %s", rec.ExportStatus)
	}
	rec, _ = store.ExportRecord("S2")
	if rec.ExportStatus != domain.ExportStatusExported || rec.LastMessageDate != nil || rec.Notes != "" {
		t.Fatalf("S2 claim should be rolled back after the gateway refused it, got %+v", rec)
	}
	rec, _ = store.ExportRecord("S3")
	if rec.ExportStatus != domain.ExportStatusExported {
		t.Fatalf("S3 should be untouched, got %s", rec.ExportStatus)
	}
}

func TestSendCampaignMessageNeverMessagesALeadTwice(t *testing.T) {
	svc, store, _ := newTestService(t)
	sender := &fakeSender{}
	svc.WithSender(sender, "IN")
	seedLead(store, "S1", "bch", domain.ExportStatusExported)
	store.FailOn(memstore.OpTransitionExports, errors.New("db down"))

	res, err := svc.SendCampaignMessage(context.Background(), domain.SystemActor(), []string{"S1"}, "Hello from the counselling team")
	if err == nil {
		t.Fatal("expected the store failure to surface")
	}
	if res.Sent != 0 || len(sender.sent) != 0 {
		t.Fatalf("nothing may be sent when the lead cannot be claimed, got %+v sent=%v", res, sender.sent)
	}
	rec, _ := store.ExportRecord("S1")
	if rec.ExportStatus != domain.ExportStatusExported {
		t.Fatalf("S1 should stay exported, got %s", rec.ExportStatus)
	}

	store.ClearFailures()
	if _, err := svc.SendCampaignMessage(context.Background(), domain.SystemActor(), []string{"S1"}, "Hello from the counselling team"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, err := svc.SendCampaignMessage(context.Background(), domain.SystemActor(), []string{"S1"}, "Hello from the counselling team"); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("a second send must be rejected, got %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one message, got %v", sender.sent)
	}
	rec, _ = store.ExportRecord("S1")
	if rec.ExportStatus != domain.ExportStatusMessageSent {
		t.Fatalf("expected message_sent, got %s", rec.ExportStatus)
	}
}

func TestSendCampaignMessageWithoutSender(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedLead(store, "S1", "bch", domain.ExportStatusExported)
	_, err := svc.SendCampaignMessage(context.Background(), domain.SystemActor(), []string{"S1"}, "hello there")
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}
