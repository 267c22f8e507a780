package transport

import (
	"time"

	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/exports"
	"leadconsole_backend/internal/leads/records"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/internal/leads/transition"
)

const dateLayout = "2006-01-02"

func ToLeadResponse(lead repository.Lead, qualified domain.QualifiedSet, classifier exports.Classifier) LeadResponse {
	resp := LeadResponse{
		SessionID:           lead.SessionID,
		StudentName:         lead.StudentName,
		ParentName:          lead.ParentName,
		Phone:               lead.Phone,
		Email:               lead.Email,
		City:                lead.City,
		CurrentGrade:        lead.CurrentGrade,
		Curriculum:          lead.Curriculum,
		TargetDegree:        lead.TargetDegree,
		TargetCountries:     lead.TargetCountries,
		LeadCategory:        lead.LeadCategory,
		IsFormFilled:        lead.IsFormFilled,
		IsCounsellingBooked: lead.IsCounsellingBooked,
		SelectedDate:        lead.SelectedDate,
		CreatedAt:           lead.CreatedAt,
		LeadStatus:          domain.CurrentStatus(lead.CrmStatus()),
		InCRM:               lead.CRM != nil,
	}

	if lead.CRM != nil {
		resp.CRM = &CrmResponse{
			LeadStatus:    lead.CRM.LeadStatus,
			AssignedTo:    lead.CRM.AssignedTo,
			LastContacted: lead.CRM.LastContacted,
			CreatedAt:     lead.CRM.CreatedAt,
			UpdatedAt:     lead.CRM.UpdatedAt,
		}
		if lead.Counselor != nil {
			resp.CRM.AssignedToName = &lead.Counselor.Name
		}
	}
	if lead.Export != nil {
		resp.Export = &ExportResponse{
			Status:          lead.Export.ExportStatus,
			ExportDate:      lead.Export.ExportDate,
			ExportedBy:      lead.Export.ExportedBy,
			LastMessageDate: lead.Export.LastMessageDate,
			Notes:           lead.Export.Notes,
		}
	}

	facts := domain.SegmentFacts{
		Category:     lead.LeadCategory,
		IsBooked:     lead.IsCounsellingBooked,
		IsFormFilled: lead.IsFormFilled,
		HasCRM:       lead.CRM != nil,
		IsAssigned:   lead.CRM != nil && lead.CRM.AssignedTo != nil,
	}
	resp.Segments = domain.Segments(facts, qualified)
	resp.FunnelStage = domain.FunnelStage(facts, qualified)

	buckets := classifier.Buckets(lead)
	resp.ExportBuckets = make([]string, 0, len(buckets))
	for _, b := range buckets {
		resp.ExportBuckets = append(resp.ExportBuckets, string(b))
	}
	return resp
}

func ToLeadResponses(leads []repository.Lead, qualified domain.QualifiedSet, classifier exports.Classifier) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead, qualified, classifier))
	}
	return out
}

func ToAuditEntryResponse(e repository.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:          e.ID,
		Kind:        e.Kind,
		CounselorID: e.CounselorID,
		AuthorName:  e.AuthorName,
		Comment:     e.Comment,
		LeadStatus:  e.LeadStatus,
		CreatedAt:   e.CreatedAt,
	}
}

func ToTimelineResponse(items []records.TimelineItem) []TimelineItemResponse {
	out := make([]TimelineItemResponse, 0, len(items))
	for _, item := range items {
		resp := TimelineItemResponse{
			Kind:        item.Kind,
			At:          item.At,
			CounselorID: item.CounselorID,
			AuthorName:  item.AuthorName,
			Comment:     item.Comment,
			LeadStatus:  item.LeadStatus,
		}
		if item.AuditID != 0 {
			id := item.AuditID
			resp.AuditID = &id
		}
		out = append(out, resp)
	}
	return out
}

func ToTransitionResponse(res transition.Result) TransitionResponse {
	resp := TransitionResponse{
		SessionID:      res.SessionID,
		Changed:        res.Changed,
		PreviousStatus: res.PreviousStatus,
		Status:         res.Status,
		AssignedTo:     res.AssignedTo,
		LastContacted:  res.LastContacted,
		Entries:        make([]AuditEntryResponse, 0, len(res.Entries)),
	}
	if !res.Changed {
		resp.Message = "nothing to do"
	}
	if res.AutoAssigned != nil {
		resp.AutoAssigned = &AutoAssignmentResponse{
			RuleID:      res.AutoAssigned.RuleID,
			RuleName:    res.AutoAssigned.RuleName,
			CounselorID: res.AutoAssigned.CounselorID,
			CatchAll:    res.AutoAssigned.CatchAll,
		}
	}
	for _, e := range res.Entries {
		resp.Entries = append(resp.Entries, ToAuditEntryResponse(e))
	}
	return resp
}

func ToRuleResponse(r repository.Rule) RuleResponse {
	resp := RuleResponse{
		ID:                  r.ID,
		Name:                r.Name,
		Priority:            r.Priority,
		TriggerCategory:     r.TriggerCategory,
		TriggerStatus:       r.TriggerStatus,
		AssignedCounselorID: r.AssignedCounselor,
		StartDate:           r.StartDate.Format(dateLayout),
		IsActive:            r.IsActive,
		IsCatchAll:          r.IsCatchAll(),
		CreatedBy:           r.CreatedBy,
		CreatedAt:           r.CreatedAt,
	}
	if r.EndDate != nil {
		end := r.EndDate.Format(dateLayout)
		resp.EndDate = &end
	}
	return resp
}

func ToRuleResponses(rules []repository.Rule) []RuleResponse {
	out := make([]RuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, ToRuleResponse(r))
	}
	return out
}

// ParseDate parses an optional yyyy-mm-dd value.
func ParseDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
