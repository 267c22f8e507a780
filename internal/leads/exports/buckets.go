package exports

import (
	"math"

	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/repository"
)

// Bucket is a recomputed classification of a lead. Buckets are never stored.
type Bucket string

const (
	BucketNotBooked      Bucket = "not_booked"
	BucketBookedNearTerm Bucket = "booked_near_term"
	BucketBookedFarTerm  Bucket = "booked_far_term"
	BucketByStage        Bucket = "by_stage"
	BucketExported       Bucket = "exported"
)

// NearTermDays is the largest slot distance, in whole days rounded up,
// that still counts as near-term.
const NearTermDays = 5

// StageNotInCRM groups leads without a CRM record in the by-stage view.
const StageNotInCRM = "not_in_crm"

// AutomaticBuckets are the buckets an eligible lead is actioned from.
var AutomaticBuckets = []Bucket{BucketNotBooked, BucketBookedNearTerm, BucketBookedFarTerm}

func IsKnownBucket(b Bucket) bool {
	switch b {
	case BucketNotBooked, BucketBookedNearTerm, BucketBookedFarTerm, BucketByStage, BucketExported:
		return true
	}
	return false
}

// Classifier derives bucket membership from a composed lead.
type Classifier struct {
	qualified domain.QualifiedSet
}

func NewClassifier(qualified domain.QualifiedSet) Classifier {
	return Classifier{qualified: qualified}
}

// Eligible reports whether a lead can be exported into a campaign.
func (c Classifier) Eligible(lead repository.Lead) bool {
	return c.qualified.Contains(lead.LeadCategory) &&
		lead.Export != nil &&
		lead.Export.ExportStatus == domain.ExportStatusNotExported
}

// SlotDistanceDays returns ceil(selected_date - created_at) in days. ok is
// false when the lead has no selected slot.
func SlotDistanceDays(in repository.Intake) (days int, ok bool) {
	if in.SelectedDate == nil {
		return 0, false
	}
	diff := in.SelectedDate.Sub(in.CreatedAt).Hours() / 24
	return int(math.Ceil(diff)), true
}

// automaticBucket classifies an eligible lead. Booked leads without a slot
// are far-term.
func automaticBucket(lead repository.Lead) Bucket {
	if !lead.IsCounsellingBooked {
		return BucketNotBooked
	}
	if days, ok := SlotDistanceDays(lead.Intake); ok && days <= NearTermDays {
		return BucketBookedNearTerm
	}
	return BucketBookedFarTerm
}

// StageOf returns the by-stage group of a lead.
func StageOf(lead repository.Lead) string {
	if lead.CRM == nil {
		return StageNotInCRM
	}
	return lead.CRM.LeadStatus
}

func isExported(lead repository.Lead) bool {
	return lead.Export != nil &&
		(lead.Export.ExportStatus == domain.ExportStatusExported || lead.Export.ExportStatus == domain.ExportStatusMessageSent)
}

// Buckets lists every bucket lead belongs to. Every lead is in by_stage.
func (c Classifier) Buckets(lead repository.Lead) []Bucket {
	out := make([]Bucket, 0, 3)
	if c.Eligible(lead) {
		out = append(out, automaticBucket(lead))
	}
	out = append(out, BucketByStage)
	if isExported(lead) {
		out = append(out, BucketExported)
	}
	return out
}

// ActionableBucket returns the automatic bucket an eligible lead can be
// exported from. ok is false for leads that are not eligible.
func (c Classifier) ActionableBucket(lead repository.Lead) (Bucket, bool) {
	if !c.Eligible(lead) {
		return "", false
	}
	return automaticBucket(lead), true
}
