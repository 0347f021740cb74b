package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := New("dpp-api")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/api/products/{id}", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requestInFlight))
}

func TestTransitionCounters(t *testing.T) {
	m := New("dpp-api")

	m.RecordTransition("product", "NEW", "PENDING")
	m.RecordTransition("product", "NEW", "PENDING")
	m.RecordTransition("document", "", "pending")
	m.RecordRefusedTransition("product", "invalid_transition")
	m.RecordUpload("stored")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("product", "NEW", "PENDING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("document", "none", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refusedTotal.WithLabelValues("product", "invalid_transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadsTotal.WithLabelValues("stored")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New("dpp-api")
	m.RecordUpload("rejected")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `dpp_documents_uploads_total{result="rejected"} 1`))
}
