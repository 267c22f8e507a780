package domain

// Lead workflow stages in display order. Any stage may follow any other;
// counselors use out-of-order moves to correct mistakes.
const (
	StatusYetToContact            = "01_yet_to_contact"
	StatusFailedToContact         = "02_failed_to_contact"
	StatusCounsellingCallBooked   = "03_counselling_call_booked"
	StatusCounsellingCallDone     = "04_counselling_call_done"
	StatusFollowupScheduled       = "05_followup_scheduled"
	StatusInterestedInApplication = "06_interested_in_application"
	StatusDocumentsPending        = "07_documents_pending"
	StatusApplicationStarted      = "08_application_started"
	StatusApplicationSubmitted    = "09_application_submitted"
	StatusOfferReceived           = "10_offer_received"
	StatusDepositPaid             = "11_deposit_paid"
	StatusEnrolled                = "12_enrolled"
	StatusNotInterested           = "13_not_interested"
	StatusNotQualified            = "14_not_qualified"
	StatusDuplicateLead           = "15_duplicate_lead"

	// DefaultStatus is the stage of a freshly created CRM record.
	DefaultStatus = StatusYetToContact
)

var orderedStatuses = []string{
	StatusYetToContact,
	StatusFailedToContact,
	StatusCounsellingCallBooked,
	StatusCounsellingCallDone,
	StatusFollowupScheduled,
	StatusInterestedInApplication,
	StatusDocumentsPending,
	StatusApplicationStarted,
	StatusApplicationSubmitted,
	StatusOfferReceived,
	StatusDepositPaid,
	StatusEnrolled,
	StatusNotInterested,
	StatusNotQualified,
	StatusDuplicateLead,
}

var knownStatuses = func() map[string]struct{} {
	m := make(map[string]struct{}, len(orderedStatuses))
	for _, s := range orderedStatuses {
		m[s] = struct{}{}
	}
	return m
}()

// Reaching one of these stages means somebody spoke to the family.
var contactImplyingStatuses = map[string]struct{}{
	StatusCounsellingCallBooked:   {},
	StatusCounsellingCallDone:     {},
	StatusFollowupScheduled:       {},
	StatusInterestedInApplication: {},
}

// Statuses returns every stage in display order.
func Statuses() []string {
	out := make([]string, len(orderedStatuses))
	copy(out, orderedStatuses)
	return out
}

func IsKnownStatus(status string) bool {
	_, ok := knownStatuses[status]
	return ok
}

func IsContactImplyingStatus(status string) bool {
	_, ok := contactImplyingStatuses[status]
	return ok
}

// CurrentStatus resolves the effective stage of a lead that may not have a
// CRM record yet.
func CurrentStatus(crmStatus *string) string {
	if crmStatus == nil || *crmStatus == "" {
		return DefaultStatus
	}
	return *crmStatus
}
