package leads

import (
	"context"
	"strconv"

	"leadconsole_backend/internal/events"
	"leadconsole_backend/platform/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "leads"

// workflowMetrics turns committed workflow events into counters.
type workflowMetrics struct {
	statusChanges   *prometheus.CounterVec
	autoAssignments *prometheus.CounterVec
	assignments     *prometheus.CounterVec
	comments        *prometheus.CounterVec
	crmRecords      *prometheus.CounterVec
	exportMoves     *prometheus.CounterVec
	reconciled      *prometheus.CounterVec
}

// RegisterMetrics registers the workflow counters on reg and feeds them from bus.
func RegisterMetrics(reg *metrics.Registry, bus events.Bus) {
	newWorkflowMetrics(reg).subscribe(bus)
}

func newWorkflowMetrics(reg *metrics.Registry) *workflowMetrics {
	return &workflowMetrics{
		statusChanges:   reg.NewCounterVec(metricsSubsystem, "status_changes_total", "Committed lead status changes.", "status"),
		autoAssignments: reg.NewCounterVec(metricsSubsystem, "auto_assignments_total", "Leads assigned by an assignment rule.", "catch_all"),
		assignments:     reg.NewCounterVec(metricsSubsystem, "assignments_total", "Manual assignments and unassignments.", "kind"),
		comments:        reg.NewCounterVec(metricsSubsystem, "comments_total", "Free-text audit comments."),
		crmRecords:      reg.NewCounterVec(metricsSubsystem, "crm_records_created_total", "Leads that entered the CRM."),
		exportMoves:     reg.NewCounterVec(metricsSubsystem, "export_transitions_total", "Leads moved between export states.", "to"),
		reconciled:      reg.NewCounterVec(metricsSubsystem, "export_records_reconciled_total", "Export records created by reconciliation."),
	}
}

func (m *workflowMetrics) subscribe(bus events.Bus) {
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), events.HandlerFunc(m.onStatusChanged))
	bus.Subscribe(events.LeadAutoAssigned{}.EventName(), events.HandlerFunc(m.onAutoAssigned))
	bus.Subscribe(events.LeadAssigned{}.EventName(), events.HandlerFunc(m.onAssigned))
	bus.Subscribe(events.LeadCommented{}.EventName(), events.HandlerFunc(m.onCommented))
	bus.Subscribe(events.LeadCrmRecordCreated{}.EventName(), events.HandlerFunc(m.onCrmRecordCreated))
	bus.Subscribe(events.LeadsExportTransitioned{}.EventName(), events.HandlerFunc(m.onExportTransitioned))
	bus.Subscribe(events.ExportRecordsReconciled{}.EventName(), events.HandlerFunc(m.onReconciled))
}

func (m *workflowMetrics) onStatusChanged(_ context.Context, event events.Event) error {
	if e, ok := event.(events.LeadStatusChanged); ok {
		m.statusChanges.WithLabelValues(e.NewStatus).Inc()
	}
	return nil
}

func (m *workflowMetrics) onAutoAssigned(_ context.Context, event events.Event) error {
	if e, ok := event.(events.LeadAutoAssigned); ok {
		m.autoAssignments.WithLabelValues(strconv.FormatBool(e.CatchAll)).Inc()
	}
	return nil
}

func (m *workflowMetrics) onAssigned(_ context.Context, event events.Event) error {
	e, ok := event.(events.LeadAssigned)
	if !ok {
		return nil
	}
	kind := "assign"
	if e.NewAgent == nil {
		kind = "unassign"
	}
	m.assignments.WithLabelValues(kind).Inc()
	return nil
}

func (m *workflowMetrics) onCommented(_ context.Context, event events.Event) error {
	if _, ok := event.(events.LeadCommented); ok {
		m.comments.WithLabelValues().Inc()
	}
	return nil
}

func (m *workflowMetrics) onCrmRecordCreated(_ context.Context, event events.Event) error {
	if _, ok := event.(events.LeadCrmRecordCreated); ok {
		m.crmRecords.WithLabelValues().Inc()
	}
	return nil
}

func (m *workflowMetrics) onExportTransitioned(_ context.Context, event events.Event) error {
	if e, ok := event.(events.LeadsExportTransitioned); ok {
		m.exportMoves.WithLabelValues(e.To).Add(float64(len(e.SessionIDs)))
	}
	return nil
}

func (m *workflowMetrics) onReconciled(_ context.Context, event events.Event) error {
	if e, ok := event.(events.ExportRecordsReconciled); ok && e.Created > 0 {
		m.reconciled.WithLabelValues().Add(float64(e.Created))
	}
	return nil
}
