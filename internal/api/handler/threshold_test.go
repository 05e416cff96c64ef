package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

type MockThresholdService struct {
	mock.Mock
}

func (m *MockThresholdService) Threshold() float64 {
	return m.Called().Get(0).(float64)
}

func (m *MockThresholdService) SetThreshold(ctx context.Context, value float64) error {
	return m.Called(ctx, value).Error(0)
}

func thresholdApp(svc ThresholdService) *fiber.App {
	app := newTestApp()
	h := NewThresholdHandler(svc, testLogger())
	app.Post("/set_threshold", h.Set)
	app.Get("/threshold", h.Get)
	return app
}

func TestThresholdHandler_Set(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		setErr      error
		expectSet   bool
		value       float64
		wantStatus  int
		wantMessage string
		wantError   string
	}{
		{
			name:        "updates threshold",
			body:        `{"threshold": 0.8}`,
			expectSet:   true,
			value:       0.8,
			wantStatus:  200,
			wantMessage: "Threshold updated to 0.8",
		},
		{
			name:        "whole number keeps one decimal",
			body:        `{"threshold": 1}`,
			expectSet:   true,
			value:       1,
			wantStatus:  200,
			wantMessage: "Threshold updated to 1.0",
		},
		{
			name:       "out of range",
			body:       `{"threshold": 1.5}`,
			expectSet:  true,
			value:      1.5,
			setErr:     domain.ErrInvalidThreshold,
			wantStatus: 400,
			wantError:  "Threshold must be between 0 and 1.",
		},
		{
			name:       "missing field",
			body:       `{}`,
			wantStatus: 400,
			wantError:  "Request validation failed",
		},
		{
			name:       "malformed body",
			body:       `{"threshold":`,
			wantStatus: 400,
			wantError:  "Request validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockThresholdService)
			if tt.expectSet {
				svc.On("SetThreshold", mock.Anything, tt.value).Return(tt.setErr)
			}

			req := httptest.NewRequest("POST", "/set_threshold", strings.NewReader(tt.body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			resp, err := thresholdApp(svc).Test(req)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == 200 {
				body := decodeJSON[SetThresholdResponse](t, resp.Body)
				assert.Equal(t, tt.wantMessage, body.Message)
			} else {
				body := decodeJSON[middleware.ErrorResponse](t, resp.Body)
				assert.Equal(t, tt.wantError, body.Error)
				assert.NotEmpty(t, body.CorrelationID)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestThresholdHandler_Get(t *testing.T) {
	svc := new(MockThresholdService)
	svc.On("Threshold").Return(0.42)

	resp, err := thresholdApp(svc).Test(httptest.NewRequest("GET", "/threshold", nil))
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	body := decodeJSON[ThresholdResponse](t, resp.Body)
	assert.Equal(t, 0.42, body.Threshold)
}
