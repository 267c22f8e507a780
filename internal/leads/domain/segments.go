package domain

// Display segments shown as list tabs. A lead may be in several.
const (
	SegmentAll                = "all"
	SegmentNewlySubmitted     = "newly_submitted"
	SegmentQualifiedNotBooked = "qualified_not_booked"
	SegmentBooked             = "booked"
	SegmentUnassigned         = "unassigned"
)

func IsKnownSegment(segment string) bool {
	switch segment {
	case SegmentAll, SegmentNewlySubmitted, SegmentQualifiedNotBooked, SegmentBooked, SegmentUnassigned:
		return true
	}
	return false
}

// Funnel stages partition every intake exactly once.
const (
	FunnelBooked                   = "booked"
	FunnelQualifiedNotBooked       = "qualified_not_booked"
	FunnelFormCompletedUnqualified = "form_completed_unqualified"
	FunnelOther                    = "other"
)

// SegmentFacts is the subset of a lead that segment membership depends on.
type SegmentFacts struct {
	Category     *string
	IsBooked     bool
	IsFormFilled bool
	HasCRM       bool
	IsAssigned   bool
}

// Segments lists the display segments a lead belongs to, SegmentAll first.
func Segments(f SegmentFacts, qualified QualifiedSet) []string {
	out := []string{SegmentAll}
	if !f.HasCRM {
		out = append(out, SegmentNewlySubmitted)
	}
	if f.IsBooked {
		out = append(out, SegmentBooked)
	} else if qualified.Contains(f.Category) {
		out = append(out, SegmentQualifiedNotBooked)
	}
	if !f.HasCRM || !f.IsAssigned {
		out = append(out, SegmentUnassigned)
	}
	return out
}

// FunnelStage returns the single funnel stage of a lead. Booking wins over
// qualification.
func FunnelStage(f SegmentFacts, qualified QualifiedSet) string {
	switch {
	case f.IsBooked:
		return FunnelBooked
	case qualified.Contains(f.Category):
		return FunnelQualifiedNotBooked
	case f.IsFormFilled:
		return FunnelFormCompletedUnqualified
	default:
		return FunnelOther
	}
}
