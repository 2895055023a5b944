package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyapi/internal/logging"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	app.Get("/test", func(c *fiber.Ctx) error {
		rid := c.Locals(RequestIDLocalKey)
		return c.SendString(rid.(string))
	})

	t.Run("should generate new request id if not present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		ridHeader := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, ridHeader)

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, ridHeader, buf.String())
	})

	t.Run("should preserve existing request id", func(t *testing.T) {
		existingID := "test-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)

		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, existingID, resp.Header.Get(RequestIDHeader))

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, existingID, buf.String())
	})

	t.Run("should replace oversized request id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, string(bytes.Repeat([]byte("a"), 200)))

		resp, _ := app.Test(req)

		assert.Len(t, resp.Header.Get(RequestIDHeader), 36)
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	loc := time.UTC

	app.Use(RequestID())
	app.Use(Viewer())
	app.Use(LoggerWithWriter(&buf, loc))

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(ViewerHeader, "alice")
	resp, _ := app.Test(req)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var logData map[string]any
	err := json.Unmarshal(buf.Bytes(), &logData)
	assert.NoError(t, err)

	assert.NotEmpty(t, logData["request_id"])
	assert.Equal(t, "alice", logData["viewer_id"])
	assert.Equal(t, "GET", logData["method"])
	assert.Equal(t, "/test", logData["path"])
	assert.Equal(t, float64(fiber.StatusAccepted), logData["status"])
	assert.NotNil(t, logData["latency"])
	assert.NotEmpty(t, logData["ts"])
}

func TestLogger_ErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(LoggerWithWriter(&buf, nil))

	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusServiceUnavailable, "down")
	})

	_, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)

	var logData map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logData))
	assert.Equal(t, float64(fiber.StatusServiceUnavailable), logData["status"])
	assert.Equal(t, "error", logData["level"])
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logging.New(&buf, "info")

	app := fiber.New()
	app.Use(RequestID())
	app.Use(ContextLogger(base))
	app.Get("/test", func(c *fiber.Ctx) error {
		logging.FromContext(c.UserContext()).Info("inside")
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	_, err := app.Test(req)
	require.NoError(t, err)

	var logData map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logData))
	assert.Equal(t, "rid-1", logData["request_id"])
	assert.Equal(t, "inside", logData["message"])
}

func TestViewer(t *testing.T) {
	app := fiber.New()
	app.Use(Viewer())
	app.Get("/open", func(c *fiber.Ctx) error {
		return c.SendString(ViewerID(c))
	})
	app.Get("/closed", RequireViewer(), func(c *fiber.Ctx) error {
		return c.SendString(ViewerID(c))
	})

	t.Run("reads header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/closed", nil)
		req.Header.Set(ViewerHeader, " bob ")
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "bob", string(body))
	})

	t.Run("anonymous allowed on open routes", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest("GET", "/open", nil))
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("anonymous rejected on closed routes", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest("GET", "/closed", nil))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestKeyedLimiter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewKeyedLimiter(1, time.Minute, 2, clock)

	assert.True(t, l.Allow("alice"))
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))
	assert.True(t, l.Allow("bob"))

	clock.Advance(time.Minute)
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))
}

func TestKeyedLimiter_Disabled(t *testing.T) {
	l := NewKeyedLimiter(0, time.Minute, 1, clockwork.NewFakeClock())
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("alice"))
	}
}

func TestRateLimit(t *testing.T) {
	app := fiber.New()
	app.Use(Viewer())
	app.Post("/upload", RateLimit(NewKeyedLimiter(1, time.Hour, 1, clockwork.NewFakeClock())), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func(viewer string) int {
		req := httptest.NewRequest("POST", "/upload", nil)
		req.Header.Set(ViewerHeader, viewer)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusCreated, send("alice"))
	assert.Equal(t, fiber.StatusTooManyRequests, send("alice"))
	assert.Equal(t, fiber.StatusCreated, send("bob"))
}
