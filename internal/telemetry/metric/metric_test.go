package metric

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistry_ExposesMetrics(t *testing.T) {
	r := NewRegistry()

	r.AnnouncementsSent.Inc()
	r.DevicesOnline.Set(3)
	r.SyncRuns.WithLabelValues("completed").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"docmesh_discovery_announcements_sent_total 1",
		"docmesh_discovery_devices_online 3",
		`docmesh_sync_runs_total{status="completed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q\n%s", want, body)
		}
	}
}

func TestRegistry_IsolatedRegistries(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	a.AnnouncementsSent.Inc()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if strings.Contains(rec.Body.String(), "announcements_sent_total 1") {
		t.Fatal("registries must be isolated")
	}
}
