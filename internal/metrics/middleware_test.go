package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/notfound", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	for _, path := range []string{"/test", "/notfound"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		if errInner := resp.Body.Close(); errInner != nil {
			t.Log(errInner)
		}
	}

	if val := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "200")); val != 1 {
		t.Errorf("Expected httpRequests for GET /test to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "404")); val != 1 {
		t.Errorf("Expected httpRequests for GET /notfound to be 1, got %f", val)
	}
	if val := testutil.CollectAndCount(m.httpRequestDuration); val <= 0 {
		t.Errorf("Expected httpRequestDuration to be observed, got %d", val)
	}
}
