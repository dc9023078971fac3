package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantauth/internal/domain/service"
)

func TestAuthMetrics(t *testing.T) {
	reg := NewRegistry()
	m, err := NewAuthMetrics(reg)
	require.NoError(t, err)

	m.ObserveOperation("login", service.OutcomeSuccess)
	m.ObserveOperation("login", service.OutcomeFailure)
	m.ObserveOperation("login", service.OutcomeFailure)
	m.ObserveReuseDetected()

	am := m.(*authMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(am.operations.WithLabelValues("login", service.OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(am.operations.WithLabelValues("login", service.OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(am.reuse))

	_, err = NewAuthMetrics(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestHTTPMetrics_Start(t *testing.T) {
	reg := NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	done := m.Start(http.MethodPost)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))

	done("/auth/login", http.StatusUnauthorized)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.total.WithLabelValues(http.MethodPost, "/auth/login", "401")))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	reg := NewRegistry()
	m, err := NewAuthMetrics(reg)
	require.NoError(t, err)
	m.ObserveReuseDetected()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tenantauth_refresh_reuse_detected_total 1")
}
