package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	err error
}

func (f fakeDB) HealthCheck(ctx context.Context) error {
	return f.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var status HealthStatus
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	}
	return rec, status
}

func TestReadyWithHealthyDependencies(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	checker := NewHealthChecker(fakeDB{}, rdb, prometheus.NewRegistry(), quietLogger())
	rec, status := get(t, checker.Router(), "/ready")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Services["database"])
	assert.Equal(t, "healthy", status.Services["redis"])
}

func TestReadyReportsDatabaseFailure(t *testing.T) {
	checker := NewHealthChecker(fakeDB{err: errors.New("connection refused")}, nil, prometheus.NewRegistry(), quietLogger())
	rec, status := get(t, checker.Router(), "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Contains(t, status.Services["database"], "connection refused")
	assert.NotContains(t, status.Services, "redis")
}

func TestReadyReportsRedisFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	checker := NewHealthChecker(fakeDB{}, rdb, prometheus.NewRegistry(), quietLogger())
	rec, status := get(t, checker.Router(), "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, status.Services["redis"], "unhealthy")
}

func TestHealthIsLiveWithoutDependencies(t *testing.T) {
	checker := NewHealthChecker(fakeDB{err: errors.New("down")}, nil, prometheus.NewRegistry(), quietLogger())
	rec, status := get(t, checker.Router(), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", status.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_syncs_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	checker := NewHealthChecker(fakeDB{}, nil, reg, quietLogger())
	rec, _ := get(t, checker.Router(), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_syncs_total 1")
}
