package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRegisteredCounters(t *testing.T) {
	reg := New()
	vec := reg.NewCounterVec("leads", "status_changes_total", "Status changes.", "status")
	vec.WithLabelValues("03_counselling_call_booked").Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `leadconsole_leads_status_changes_total{status="03_counselling_call_booked"} 1`) {
		t.Fatalf("counter missing from exposition:\n%s", body)
	}
}
