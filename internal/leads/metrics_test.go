package leads

import (
	"context"
	"testing"

	"leadconsole_backend/internal/events"
	"leadconsole_backend/platform/logger"
	"leadconsole_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWorkflowMetricsCountCommittedEvents(t *testing.T) {
	m := newWorkflowMetrics(metrics.New())
	bus := events.NewInMemoryBus(logger.NewDiscard())
	m.subscribe(bus)
	ctx := context.Background()

	counselor := uuid.New()
	published := []events.Event{
		events.LeadStatusChanged{SessionID: "S1", OldStatus: "01_yet_to_contact", NewStatus: "02_failed_to_contact"},
		events.LeadAutoAssigned{SessionID: "S1", CounselorID: counselor, CatchAll: true},
		events.LeadAssigned{SessionID: "S2", NewAgent: &counselor},
		events.LeadAssigned{SessionID: "S2"},
		events.LeadCommented{SessionID: "S2"},
		events.LeadsExportTransitioned{SessionIDs: []string{"S1", "S2", "S3"}, From: "not_exported", To: "exported"},
		events.ExportRecordsReconciled{Created: 4, AlreadyPresent: 1},
	}
	for _, e := range published {
		if err := bus.PublishSync(ctx, e); err != nil {
			t.Fatalf("publish %s: %v", e.EventName(), err)
		}
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"status", testutil.ToFloat64(m.statusChanges.WithLabelValues("02_failed_to_contact")), 1},
		{"catch-all auto assign", testutil.ToFloat64(m.autoAssignments.WithLabelValues("true")), 1},
		{"assign", testutil.ToFloat64(m.assignments.WithLabelValues("assign")), 1},
		{"unassign", testutil.ToFloat64(m.assignments.WithLabelValues("unassign")), 1},
		{"comments", testutil.ToFloat64(m.comments.WithLabelValues()), 1},
		{"exported", testutil.ToFloat64(m.exportMoves.WithLabelValues("exported")), 3},
		{"reconciled", testutil.ToFloat64(m.reconciled.WithLabelValues()), 4},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, tc.got)
		}
	}
}
