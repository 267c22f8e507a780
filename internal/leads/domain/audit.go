package domain

// Audit entry kinds.
const (
	AuditKindComment        = "comment"
	AuditKindStatusChange   = "status_change"
	AuditKindAssignment     = "assignment"
	AuditKindAutoAssignment = "auto_assignment"
)

// Comment length bounds, counted in characters after trimming.
const (
	MinCommentLength = 10
	MaxCommentLength = 2000
)

// SystemAuthorName is the author recorded on entries written by the engine.
const SystemAuthorName = "System"
