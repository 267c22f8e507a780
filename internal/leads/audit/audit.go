// Package audit owns the append-only lead audit trail.
// Every status or assignment change writes exactly one entry here, stamped
// with the lead status at the moment the entry was written.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/platform/apperr"
)

// Entry is an audit entry about to be written.
type Entry struct {
	SessionID  string
	Actor      domain.Actor
	Kind       string
	Comment    string
	LeadStatus string
	At         time.Time
}

// ValidateComment trims text and checks it against the length bounds.
func ValidateComment(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", apperr.Validation("comment is required")
	}
	n := utf8.RuneCountInString(trimmed)
	if n < domain.MinCommentLength {
		return "", apperr.Validation(fmt.Sprintf("comment must be at least %d characters", domain.MinCommentLength))
	}
	if n > domain.MaxCommentLength {
		return "", apperr.Validation(fmt.Sprintf("comment must be at most %d characters", domain.MaxCommentLength))
	}
	return trimmed, nil
}

// ValidateOptionalComment accepts an empty comment and otherwise applies
// ValidateComment.
func ValidateOptionalComment(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return ValidateComment(text)
}

// Record appends e through store, which is usually a transaction.
func Record(ctx context.Context, store repository.AuditStore, e Entry) (repository.AuditEntry, error) {
	if strings.TrimSpace(e.Comment) == "" {
		return repository.AuditEntry{}, errors.New("audit entry requires a comment")
	}
	return store.AppendAuditEntry(ctx, repository.CreateAuditEntryParams{
		SessionID:   e.SessionID,
		CounselorID: e.Actor.CounselorID,
		AuthorName:  e.Actor.DisplayName(),
		Kind:        e.Kind,
		Comment:     e.Comment,
		LeadStatus:  e.LeadStatus,
		CreatedAt:   e.At,
	})
}

// AssignmentText is the system text used when a manual assignment carries
// no comment.
func AssignmentText(previous, next *repository.Counselor) string {
	switch {
	case previous == nil && next != nil:
		return fmt.Sprintf("Lead assigned to %s", next.Name)
	case previous != nil && next == nil:
		return fmt.Sprintf("Lead unassigned from %s", previous.Name)
	case previous != nil && next != nil:
		return fmt.Sprintf("Lead reassigned from %s to %s", previous.Name, next.Name)
	default:
		return "Lead assignment cleared"
	}
}

// AutoAssignmentText documents which rule fired.
func AutoAssignmentText(rule repository.Rule, counselorName string) string {
	name := rule.Name
	if name == "" {
		name = rule.ID.String()
	}
	text := fmt.Sprintf("Auto-assigned to %s by rule %q (priority %d)", counselorName, name, rule.Priority)
	if rule.IsCatchAll() {
		text += " [catch-all]"
	}
	return text
}
