package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	ResetMetricsForTesting()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, provider
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestHTTPMetrics(t *testing.T) {
	t.Run("Should record metrics for a routed GET request", func(t *testing.T) {
		reader, provider := newTestMeter(t)
		meter := provider.Meter("test")

		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(HTTPMetrics(meter))
		router.GET("/products/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
		})

		req := httptest.NewRequest("GET", "/products/42", http.NoBody)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		rm := collectMetrics(t, reader)

		total, ok := findMetric(rm, "aethermart_http_requests_total")
		require.True(t, ok, "requests_total metric not found")
		sum, ok := total.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		dp := sum.DataPoints[0]
		attrs := dp.Attributes.ToSlice()
		assert.Contains(t, attrs, attribute.String("method", "GET"))
		assert.Contains(t, attrs, attribute.String("path", "/products/:id"))
		assert.Contains(t, attrs, attribute.String("status_code", "200"))
		assert.Equal(t, int64(1), dp.Value)

		duration, ok := findMetric(rm, "aethermart_http_request_duration_seconds")
		require.True(t, ok, "request_duration metric not found")
		hist, ok := duration.Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, hist.DataPoints, 1)
		assert.GreaterOrEqual(t, hist.DataPoints[0].Sum, float64(0))

		_, ok = findMetric(rm, "aethermart_http_requests_in_flight")
		assert.True(t, ok, "requests_in_flight metric not found")
	})

	t.Run("Should record the handler status code", func(t *testing.T) {
		reader, provider := newTestMeter(t)
		meter := provider.Meter("test")

		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(HTTPMetrics(meter))
		router.POST("/products", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"created": true})
		})

		req := httptest.NewRequest("POST", "/products", http.NoBody)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code)

		rm := collectMetrics(t, reader)
		total, ok := findMetric(rm, "aethermart_http_requests_total")
		require.True(t, ok)
		sum, ok := total.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		attrs := sum.DataPoints[0].Attributes.ToSlice()
		assert.Contains(t, attrs, attribute.String("method", "POST"))
		assert.Contains(t, attrs, attribute.String("path", "/products"))
		assert.Contains(t, attrs, attribute.String("status_code", "201"))
	})

	t.Run("Should collapse unrouted paths to a single label", func(t *testing.T) {
		reader, provider := newTestMeter(t)
		meter := provider.Meter("test")

		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(HTTPMetrics(meter))

		for _, path := range []string{"/nope/1", "/nope/2", "/nope/3"} {
			req := httptest.NewRequest("GET", path, http.NoBody)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusNotFound, w.Code)
		}

		rm := collectMetrics(t, reader)
		total, ok := findMetric(rm, "aethermart_http_requests_total")
		require.True(t, ok)
		sum, ok := total.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1, "unrouted requests must share one series")
		dp := sum.DataPoints[0]
		attrs := dp.Attributes.ToSlice()
		assert.Contains(t, attrs, attribute.String("path", "unmatched"))
		assert.Contains(t, attrs, attribute.String("status_code", "404"))
		assert.Equal(t, int64(3), dp.Value)
	})

	t.Run("Should pass requests through with a nil meter", func(t *testing.T) {
		ResetMetricsForTesting()
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(HTTPMetrics(nil))
		router.GET("/ok", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		req := httptest.NewRequest("GET", "/ok", http.NoBody)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
