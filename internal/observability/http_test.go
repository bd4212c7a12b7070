package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerServesSessionCollectors(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", MetricsHandler())
	app.Get("/again", MetricsHandler())

	ViewSubscribers().Set(3)
	MonitorBufferSize().Set(7)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "runar_view_subscribers 3")
	require.Contains(t, string(body), "runar_monitor_buffer_size 7")

	req := httptest.NewRequest(http.MethodGet, "/again", nil)
	req.Header.Set("Accept", "application/openmetrics-text; version=1.0.0")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "application/openmetrics-text")
}
