package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

func TestNormalizedPath(t *testing.T) {
	got := normalizedPath("/api/questions/4f1c2a7e-58d3-4b8e-9a0b-1f0c2d3e4a5b/approval")
	want := "/api/questions/{id}/approval"
	if got != want {
		t.Fatalf("normalizedPath mismatch got=%s want=%s", got, want)
	}
	if got := normalizedPath("/api/questions/tag/math"); got != "/api/questions/tag/math" {
		t.Fatalf("non-id segments must be kept, got %s", got)
	}
}

func TestMiddlewareRecordsRouteAndAnnotations(t *testing.T) {
	var logs bytes.Buffer
	l := logrus.New()
	l.SetOutput(&logs)
	l.SetFormatter(&logrus.JSONFormatter{})
	c := NewCollector(nil, logrus.NewEntry(l))

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/questions/{id}", func(w http.ResponseWriter, r *http.Request) {
		Annotate(r.Context(), "user_id", "u-1")
		w.WriteHeader(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/questions/4f1c2a7e-58d3-4b8e-9a0b-1f0c2d3e4a5b", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected handler status to pass through, got %d", w.Code)
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(logs.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", logs.String(), err)
	}
	if line["route"] != "/api/questions/{id}" || line["user_id"] != "u-1" || line["status"] != float64(404) {
		t.Fatalf("unexpected log line %v", line)
	}

	c.ObserveImportRow("failed")
	c.ObserveImportRow("failed")

	scrape := httptest.NewRecorder()
	c.MetricsHandler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	for _, want := range []string{
		`quizbank_http_requests_total{method="GET",route="/api/questions/{id}",status="404"} 1`,
		`quizbank_import_rows_total{outcome="failed"} 2`,
		`quizbank_http_request_duration_seconds_count{method="GET",route="/api/questions/{id}"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestAnnotateOutsideMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	Annotate(req.Context(), "k", "v")
}
