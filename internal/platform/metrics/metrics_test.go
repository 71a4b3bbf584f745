package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	reg := New("v1.2.3")

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.BuildInfo.WithLabelValues("v1.2.3")))

	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `parishnet_build_info{version="v1.2.3"} 1`)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
