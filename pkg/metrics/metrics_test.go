package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordRequest("/api/create/box", 200)
	m.RecordRequest("/api/create/box", 200)
	m.RecordRequest("/api/create/box", 400)
	m.RecordFit(FitSuccess)
	m.SetShapes(3)
	m.RecordMesh(12, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/create/box", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/create/box", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CylinderFits.WithLabelValues(FitSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ShapesRegistered))
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New(nil)
	b := New(nil)
	a.SetShapes(1)
	b.SetShapes(2)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ShapesRegistered))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.ShapesRegistered))
}

func TestHandler(t *testing.T) {
	m := New(nil)
	m.RecordFit(FitFailed)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `facet_cylinder_fits_total{outcome="failed"} 1`))
}
