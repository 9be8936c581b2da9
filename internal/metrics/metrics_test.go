package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ai-evaluator/testtaker/internal/session"
)

func TestListenerCountsOutcomes(t *testing.T) {
	l := Listener()

	expired := testutil.ToFloat64(Expirations)
	ok := testutil.ToFloat64(Submissions.WithLabelValues("timeout", "success"))
	failed := testutil.ToFloat64(Submissions.WithLabelValues("manual", "failure"))

	l(session.Event{Kind: session.EventExpired, Trigger: session.Timeout})
	l(session.Event{Kind: session.EventSubmitted, Trigger: session.Timeout})
	l(session.Event{Kind: session.EventSubmitFailed, Trigger: session.Manual})
	l(session.Event{Kind: session.EventTick})

	if got := testutil.ToFloat64(Expirations) - expired; got != 1 {
		t.Fatalf("expirations delta = %v", got)
	}
	if got := testutil.ToFloat64(Submissions.WithLabelValues("timeout", "success")) - ok; got != 1 {
		t.Fatalf("timeout successes delta = %v", got)
	}
	if got := testutil.ToFloat64(Submissions.WithLabelValues("manual", "failure")) - failed; got != 1 {
		t.Fatalf("manual failures delta = %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Init()
	Init()

	r := gin.New()
	r.Use(Middleware())
	r.GET("/metrics", Handler())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"testtaker_http_requests_total", "testtaker_active_sessions"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
