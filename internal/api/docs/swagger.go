package docs

import (
	"strconv"

	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// CompareResponse represents the response for an image pair comparison
type CompareResponse struct {
	StatusCode      int     `json:"status_code" example:"200"`
	SimilarityScore float64 `json:"similarity_score" example:"0.87"`
	IsSimilar       bool    `json:"is_similar" example:"true"`
	Threshold       float64 `json:"threshold" example:"0.5"`
	CorrelationID   string  `json:"correlation_id" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// FrameScore is the normalized similarity of one sampled frame
type FrameScore struct {
	Frame           int     `json:"frame" example:"42"`
	SimilarityScore float64 `json:"similarity_score" example:"0.81"`
}

// CompareVideoResponse represents the response for an image against video comparison
type CompareVideoResponse struct {
	StatusCode           int          `json:"status_code" example:"200"`
	AggregatedSimilarity float64      `json:"aggregated_similarity" example:"0.79"`
	IsSimilar            bool         `json:"is_similar" example:"true"`
	Threshold            float64      `json:"threshold" example:"0.5"`
	FramesUsed           int          `json:"frames_used" example:"5"`
	FrameScores          []FrameScore `json:"frame_scores"`
	CorrelationID        string       `json:"correlation_id" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// SetThresholdRequest is the JSON body of /set_threshold
type SetThresholdRequest struct {
	Threshold float64 `json:"threshold" example:"0.8"`
}

// SetThresholdResponse confirms a threshold update
type SetThresholdResponse struct {
	Message string `json:"message" example:"Threshold updated to 0.8"`
}

// ThresholdResponse reports the current decision threshold
type ThresholdResponse struct {
	Threshold float64 `json:"threshold" example:"0.5"`
}

// AuditRecord is one stored audit event
type AuditRecord struct {
	Timestamp string `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	MsgType   string `json:"msg_type" example:"threshold"`
	Message   string `json:"message" example:"[550e8400] Threshold updated to 0.8"`
}

// LogsResponse lists audit events newest first
type LogsResponse struct {
	Events []AuditRecord `json:"events"`
	Count  int           `json:"count" example:"1"`
}

// WorkerStats reports worker pool occupancy
type WorkerStats struct {
	Workers  int `json:"workers" example:"8"`
	Busy     int `json:"busy" example:"2"`
	Queued   int `json:"queued" example:"0"`
	Capacity int `json:"queue_capacity" example:"64"`
}

// HealthResponse represents liveness and readiness responses
type HealthResponse struct {
	Status   string       `json:"status" example:"ready"`
	Version  string       `json:"version,omitempty" example:"0.1.0"`
	Workers  *WorkerStats `json:"workers,omitempty"`
	Audit    string       `json:"audit,omitempty" example:"ok"`
	Embedder string       `json:"embedder,omitempty" example:"ok"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	StatusCode    int    `json:"status_code" example:"422"`
	Error         string `json:"error" example:"No face detected in the image"`
	Details       string `json:"details,omitempty" example:""`
	CorrelationID string `json:"correlation_id" example:"550e8400-e29b-41d4-a716-446655440000"`
}

func errorResponse(status int, message, description string) response.Response {
	return response.New(ErrorResponse{StatusCode: status, Error: message}, strconv.Itoa(status), description)
}

// processingErrors are shared by both comparison endpoints
func processingErrors() []response.Response {
	return []response.Response{
		errorResponse(422, "No face detected in the image", "Unprocessable Entity"),
		errorResponse(422, "No facial landmarks detected in the image", "Unprocessable Entity"),
		errorResponse(500, "Internal Server Error", "Internal Server Error"),
		errorResponse(503, "Server is busy, please try again later", "Service Unavailable"),
		errorResponse(504, "Processing deadline exceeded", "Gateway Timeout"),
	}
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Face Verification API",
		Version:     "v1.0.0",
		Description: "Compares the faces in two images, or in an image and a video, and decides whether they belong to the same person",
		Host:        "localhost:5000",
		Path:        "/",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /faceapp/compare/ - Compare two images
		endpoint.New(
			endpoint.POST,
			"/faceapp/compare/",
			endpoint.WithTags("Compare"),
			endpoint.WithSummary("Compare the faces in two images"),
			endpoint.WithDescription("Multipart fields image1 and image2 (jpg, jpeg, png, bmp, webp, tiff). Both faces are aligned and embedded; the cosine similarity is mapped to [0,1] and compared with the current threshold. The optional correlation-id header is echoed back."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CompareResponse{}, "200", "Comparison completed"),
			}),
			endpoint.WithErrors(append([]response.Response{
				errorResponse(400, "Missing uploaded file: image1", "Bad Request"),
				errorResponse(400, "Unsupported file extension", "Bad Request"),
				errorResponse(400, "Invalid or corrupted image file", "Bad Request"),
			}, processingErrors()...)),
		),

		// POST /faceapp/compare_video/ - Compare an image against a video
		endpoint.New(
			endpoint.POST,
			"/faceapp/compare_video/",
			endpoint.WithTags("Compare"),
			endpoint.WithSummary("Compare the face in an image with a video"),
			endpoint.WithDescription("Multipart fields image and video (mp4, avi, mov, mkv, webm). Evenly spaced frames are sampled, each compared with the image, and the mean score decides the result."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CompareVideoResponse{}, "200", "Comparison completed"),
			}),
			endpoint.WithErrors(append([]response.Response{
				errorResponse(400, "Missing uploaded file: video", "Bad Request"),
				errorResponse(400, "Invalid video or no frames found", "Bad Request"),
				errorResponse(400, "No valid frames extracted from video", "Bad Request"),
			}, processingErrors()...)),
		),

		// POST /set_threshold - Update decision threshold
		endpoint.New(
			endpoint.POST,
			"/set_threshold",
			endpoint.WithTags("Threshold"),
			endpoint.WithSummary("Update the decision threshold"),
			endpoint.WithDescription(`JSON body {"threshold": 0.8}. Applies to every comparison decided after the update.`),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SetThresholdResponse{}, "200", "Threshold updated"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse(400, "Threshold must be between 0 and 1.", "Bad Request"),
			}),
		),

		// GET /threshold - Current decision threshold
		endpoint.New(
			endpoint.GET,
			"/threshold",
			endpoint.WithTags("Threshold"),
			endpoint.WithSummary("Get the decision threshold"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ThresholdResponse{}, "200", "Current threshold"),
			}),
		),

		// GET /logs - Audit events
		endpoint.New(
			endpoint.GET,
			"/logs",
			endpoint.WithTags("Audit"),
			endpoint.WithSummary("List audit events"),
			endpoint.WithDescription("Available when AUDIT_DATABASE_URL is configured."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("msg_type", parameter.Query, parameter.WithDescription("compare_images, compare_video, compare_failed, threshold or all (default: all)")),
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Maximum number of events (1-1000, default: 100)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LogsResponse{}, "200", "Events listed"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse(400, "limit must be between 1 and 1000", "Bad Request"),
				errorResponse(500, "Internal Server Error", "Internal Server Error"),
			}),
		),

		// GET /events - Audit event stream
		endpoint.New(
			endpoint.GET,
			"/events",
			endpoint.WithTags("Audit"),
			endpoint.WithSummary("Stream audit events over a websocket"),
			endpoint.WithDescription("Upgrades to a websocket and pushes one JSON message per audit event: {msg_type, data, timestamp}. Slow subscribers are disconnected."),
			endpoint.WithParams(
				parameter.StrParam("msg_type", parameter.Query, parameter.WithDescription("Only stream this event type (default: all)")),
			),
			endpoint.WithErrors([]response.Response{
				errorResponse(426, "Upgrade Required", "Upgrade Required"),
			}),
		),

		// GET /health - Liveness
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness check"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Service is up"),
			}),
		),

		// GET /ready - Readiness
		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Readiness check"),
			endpoint.WithDescription("Reports worker pool occupancy and, when configured, whether the audit database and the remote embedder are reachable."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Service is ready"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(HealthResponse{Status: "unavailable", Audit: "unreachable"}, "503", "Service Unavailable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
