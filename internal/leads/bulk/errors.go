package bulk

import (
	"fmt"
	"maps"

	"leadconsole_backend/platform/apperr"
)

// BulkError reports a batch that stopped part way. Items before
// FailedSessionID were committed and stay committed.
type BulkError struct {
	Completed       int
	Total           int
	FailedSessionID string
	Err             error
}

func (e *BulkError) Error() string {
	if e.FailedSessionID == "" {
		return fmt.Sprintf("bulk operation stopped after %d of %d: %v", e.Completed, e.Total, e.Err)
	}
	return fmt.Sprintf("bulk operation stopped at %s after %d of %d: %v", e.FailedSessionID, e.Completed, e.Total, e.Err)
}

func (e *BulkError) Unwrap() error {
	return e.Err
}

// As lets errors.As(err, **apperr.Error) see the progress details alongside
// the cause, so the HTTP layer needs no special case.
func (e *BulkError) As(target any) bool {
	t, ok := target.(**apperr.Error)
	if !ok {
		return false
	}
	*t = e.AppError()
	return true
}

// AppError converts the failure into a typed error whose details carry the
// progress counters plus any details of the cause.
func (e *BulkError) AppError() *apperr.Error {
	details := map[string]any{
		"completed":       e.Completed,
		"total":           e.Total,
		"failedSessionId": e.FailedSessionID,
	}

	kind := apperr.KindInternal
	message := "bulk operation failed"
	if cause := asApp(e.Err); cause != nil {
		kind = cause.Kind
		message = cause.Message
		if inner, ok := cause.Details.(map[string]any); ok {
			merged := maps.Clone(inner)
			maps.Copy(merged, details)
			details = merged
		}
	}
	return &apperr.Error{Kind: kind, Message: message, Err: e.Err, Details: details}
}

// asApp walks the cause chain without going through BulkError.As.
func asApp(err error) *apperr.Error {
	for err != nil {
		if app, ok := err.(*apperr.Error); ok {
			return app
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}
