package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so copies made by WithError/WithMessage still satisfy errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

func (e *AppError) WithMessage(format string, args ...any) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: e.StatusCode,
		Err:        e.Err,
	}
}

// Details is the wrapped cause surfaced to clients, empty when there is none.
func (e *AppError) Details() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "Internal Server Error",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 400,
	}

	ErrMissingFile = &AppError{
		Code:       "MISSING_FILE",
		Message:    "Missing uploaded file",
		StatusCode: 400,
	}

	ErrUnsupportedExtension = &AppError{
		Code:       "UNSUPPORTED_EXTENSION",
		Message:    "Unsupported file extension",
		StatusCode: 400,
	}

	ErrUnsupportedMIME = &AppError{
		Code:       "UNSUPPORTED_MIME_TYPE",
		Message:    "Unsupported MIME type",
		StatusCode: 400,
	}

	ErrInvalidThreshold = &AppError{
		Code:       "INVALID_THRESHOLD",
		Message:    "Threshold must be between 0 and 1.",
		StatusCode: 400,
	}

	// Decode errors
	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid or corrupted image file",
		StatusCode: 400,
	}

	ErrNoFrames = &AppError{
		Code:       "NO_FRAMES",
		Message:    "Invalid video or no frames found",
		StatusCode: 400,
	}

	ErrNoValidFrames = &AppError{
		Code:       "NO_VALID_FRAMES",
		Message:    "No valid frames extracted from video",
		StatusCode: 400,
	}

	// Processing errors
	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrNoLandmarks = &AppError{
		Code:       "NO_LANDMARKS_DETECTED",
		Message:    "No facial landmarks detected in the image",
		StatusCode: 422,
	}

	ErrAlignmentFailed = &AppError{
		Code:       "ALIGNMENT_FAILED",
		Message:    "alignment solve failed",
		StatusCode: 422,
	}

	ErrInvalidTensor = &AppError{
		Code:       "INVALID_TENSOR",
		Message:    "Preprocessed tensor violates the embedding input contract",
		StatusCode: 500,
	}

	// Capacity errors
	ErrServiceBusy = &AppError{
		Code:       "SERVICE_BUSY",
		Message:    "Server is busy, please try again later",
		StatusCode: 503,
	}

	ErrProcessingTimeout = &AppError{
		Code:       "PROCESSING_TIMEOUT",
		Message:    "Processing deadline exceeded",
		StatusCode: 504,
	}
)
