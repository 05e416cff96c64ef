package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/api/middleware"
)

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestApp mirrors the router's middleware chain
func newTestApp() *fiber.App {
	logger := testLogger()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logger)})
	app.Use(middleware.RequestID())
	app.Use(middleware.Correlation())
	app.Use(middleware.Logger(logger))
	return app
}

type upload struct {
	field    string
	filename string
	content  []byte
}

func multipartRequest(t *testing.T, path string, files ...upload) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}

func decodeJSON[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(r).Decode(&out))
	return out
}
