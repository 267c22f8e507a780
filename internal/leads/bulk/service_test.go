package bulk

import (
	"context"
	"errors"
	"testing"

	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/exports"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/internal/leads/transition"
	"leadconsole_backend/platform/apperr"
	"leadconsole_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeTransitions struct {
	calls     []string
	failOn    string
	unchanged map[string]bool
	assignErr error
}

func (f *fakeTransitions) result(id string) (transition.Result, error) {
	f.calls = append(f.calls, id)
	if id == f.failOn {
		return transition.Result{}, apperr.NotFound("lead not found")
	}
	return transition.Result{SessionID: id, Changed: !f.unchanged[id]}, nil
}

func (f *fakeTransitions) ChangeStatus(_ context.Context, _ domain.Actor, id, _, _ string) (transition.Result, error) {
	return f.result(id)
}

func (f *fakeTransitions) Assign(_ context.Context, _ domain.Actor, id string, _ *uuid.UUID, _ string) (transition.Result, error) {
	return f.result(id)
}

func (f *fakeTransitions) ValidateAssignee(context.Context, *uuid.UUID) (*repository.Counselor, error) {
	return nil, f.assignErr
}

type fakeExports struct {
	exportErr error
	send      exports.SendResult
	sendErr   error
	batches   [][]string
}

func (f *fakeExports) Export(_ context.Context, _ domain.Actor, ids []string) (exports.BatchResult, error) {
	f.batches = append(f.batches, ids)
	return exports.BatchResult{SessionIDs: ids}, f.exportErr
}

func (f *fakeExports) SetStatus(_ context.Context, _ domain.Actor, ids []string, _, _ string) (exports.BatchResult, error) {
	f.batches = append(f.batches, ids)
	return exports.BatchResult{SessionIDs: ids}, f.exportErr
}

func (f *fakeExports) SendCampaignMessage(context.Context, domain.Actor, []string, string) (exports.SendResult, error) {
	return f.send, f.sendErr
}

func newService(tr *fakeTransitions, ex *fakeExports) *Service {
	return New(tr, ex, logger.NewDiscard())
}

func TestBulkChangeStatusStopsAtFirstFailure(t *testing.T) {
	tr := &fakeTransitions{failOn: "S3", unchanged: map[string]bool{"S2": true}}
	svc := newService(tr, &fakeExports{})

	summary, err := svc.BulkChangeStatus(context.Background(), domain.SystemActor(),
		[]string{"S1", "S2", "S1", "S3", "S4"}, domain.StatusFailedToContact, "Tried twice, no answer")

	var bulkErr *BulkError
	if !errors.As(err, &bulkErr) {
		t.Fatalf("expected BulkError, got %v", err)
	}
	if bulkErr.Completed != 2 || bulkErr.Total != 4 || bulkErr.FailedSessionID != "S3" {
		t.Fatalf("unexpected bulk error: %+v", bulkErr)
	}
	if summary.Completed != 2 || summary.Unchanged != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(tr.calls) != 3 {
		t.Fatalf("S4 must not be attempted, calls=%v", tr.calls)
	}
}

func TestBulkErrorMapsToTypedError(t *testing.T) {
	err := error(&BulkError{Completed: 1, Total: 3, FailedSessionID: "S2", Err: apperr.NotFound("lead not found")})

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected errors.As to yield an apperr.Error")
	}
	if appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected cause kind, got %v", appErr.Kind)
	}
	details := appErr.Details.(map[string]any)
	if details["completed"] != 1 || details["total"] != 3 || details["failedSessionId"] != "S2" {
		t.Fatalf("unexpected details: %v", details)
	}

	plain := &BulkError{Total: 2, Err: errors.New("boom")}
	if plain.AppError().Kind != apperr.KindInternal {
		t.Fatal("untyped causes should map to internal")
	}

	conflict := &BulkError{Total: 2, Err: apperr.StateConflict("not exported", []string{"S9"})}
	merged := conflict.AppError().Details.(map[string]any)
	if ids, ok := merged["offendingSessionIds"].([]string); !ok || ids[0] != "S9" {
		t.Fatalf("cause details must be kept, got %v", merged)
	}
}

func TestBulkValidationHappensBeforeAnyWrite(t *testing.T) {
	tr := &fakeTransitions{}
	svc := newService(tr, &fakeExports{})
	ctx := context.Background()

	if _, err := svc.BulkChangeStatus(ctx, domain.SystemActor(), nil, domain.StatusEnrolled, "Enrolled for fall intake"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("empty ids: expected validation error, got %v", err)
	}
	if _, err := svc.BulkChangeStatus(ctx, domain.SystemActor(), []string{"S1"}, domain.StatusEnrolled, "short"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("short comment: expected validation error, got %v", err)
	}
	if _, err := svc.BulkAssign(ctx, domain.SystemActor(), []string{"S1"}, domain.OptionalUUID{}, ""); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("missing counselor: expected validation error, got %v", err)
	}

	tr.assignErr = apperr.Validation("counselor is inactive")
	id := uuid.New()
	if _, err := svc.BulkAssign(ctx, domain.SystemActor(), []string{"S1"}, domain.SomeUUID(&id), ""); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("inactive counselor: expected validation error, got %v", err)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("no lead should be touched, calls=%v", tr.calls)
	}
}

func TestBulkAssignExplicitNullUnassigns(t *testing.T) {
	tr := &fakeTransitions{}
	svc := newService(tr, &fakeExports{})

	summary, err := svc.BulkAssign(context.Background(), domain.SystemActor(), []string{"S1", "S2"}, domain.SomeUUID(nil), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Completed != 2 || summary.Total != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestBulkExportIsAllOrNothing(t *testing.T) {
	ex := &fakeExports{exportErr: apperr.StateConflict("already exported", []string{"S2"})}
	svc := newService(&fakeTransitions{}, ex)

	summary, err := svc.BulkExport(context.Background(), domain.SystemActor(), []string{"S1", "S2"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if summary.Completed != 0 || summary.Total != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	ex.exportErr = nil
	summary, err = svc.BulkSetExportStatus(context.Background(), domain.SystemActor(), []string{"S1", "S2"}, domain.ExportStatusMessageSent, "")
	if err != nil || summary.Completed != 2 {
		t.Fatalf("unexpected result: %+v, %v", summary, err)
	}
}

func TestBulkSendMessageReportsProgress(t *testing.T) {
	ex := &fakeExports{
		send:    exports.SendResult{Total: 3, Sent: 1, FailedSessionID: "S2"},
		sendErr: errors.New("gateway unavailable"),
	}
	svc := newService(&fakeTransitions{}, ex)

	_, err := svc.BulkSendMessage(context.Background(), domain.SystemActor(), []string{"S1", "S2", "S3"}, "hello")
	var bulkErr *BulkError
	if !errors.As(err, &bulkErr) || bulkErr.Completed != 1 || bulkErr.FailedSessionID != "S2" {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.send = exports.SendResult{}
	ex.sendErr = apperr.BadRequest("campaign messaging is not configured")
	_, err = svc.BulkSendMessage(context.Background(), domain.SystemActor(), []string{"S1"}, "hello")
	if errors.As(err, &bulkErr) && bulkErr.FailedSessionID != "" {
		t.Fatal("batch-level failures should not be wrapped with progress")
	}
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}
