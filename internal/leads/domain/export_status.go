package domain

// Export campaign states. Progression is forward-only.
const (
	ExportStatusNotExported = "not_exported"
	ExportStatusExported    = "exported"
	ExportStatusMessageSent = "message_sent"
)

func IsKnownExportStatus(status string) bool {
	switch status {
	case ExportStatusNotExported, ExportStatusExported, ExportStatusMessageSent:
		return true
	}
	return false
}

// ExportSourceStatus returns the state a lead must be in to move to target.
// ok is false when no forward transition leads to target.
func ExportSourceStatus(target string) (source string, ok bool) {
	switch target {
	case ExportStatusExported:
		return ExportStatusNotExported, true
	case ExportStatusMessageSent:
		return ExportStatusExported, true
	}
	return "", false
}
