package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadconsole_backend/platform/metrics"

	"github.com/gin-gonic/gin"
)

func TestRequestTimerLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := metrics.New()
	engine := gin.New()
	engine.Use(RequestTimer(reg))
	engine.GET("/api/v1/leads/:sessionId", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/leads/S1", nil))
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	want := `leadconsole_http_request_duration_seconds_count{method="GET",route="/api/v1/leads/:sessionId",status="204"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("missing %s in:\n%s", want, body)
	}
	if !strings.Contains(body, `route="unmatched",status="404"`) {
		t.Fatalf("unmatched route not recorded:\n%s", body)
	}
}
