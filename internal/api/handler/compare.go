package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/service"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/video"
)

// Comparer is implemented by service.ComparisonService
type Comparer interface {
	CompareImages(ctx context.Context, first, second *domain.MediaAsset) (*service.ImageComparison, error)
	CompareVideo(ctx context.Context, img, clip *domain.MediaAsset) (*service.VideoComparison, error)
}

// CompareHandler handles the comparison endpoints
type CompareHandler struct {
	service Comparer
	logger  *slog.Logger
}

func NewCompareHandler(service Comparer, logger *slog.Logger) *CompareHandler {
	return &CompareHandler{
		service: service,
		logger:  logger,
	}
}

type CompareResponse struct {
	StatusCode      int     `json:"status_code"`
	SimilarityScore float64 `json:"similarity_score"`
	IsSimilar       bool    `json:"is_similar"`
	Threshold       float64 `json:"threshold"`
	CorrelationID   string  `json:"correlation_id"`
}

type CompareVideoResponse struct {
	StatusCode           int                `json:"status_code"`
	AggregatedSimilarity float64            `json:"aggregated_similarity"`
	IsSimilar            bool               `json:"is_similar"`
	Threshold            float64            `json:"threshold"`
	FramesUsed           int                `json:"frames_used"`
	FrameScores          []video.FrameScore `json:"frame_scores"`
	CorrelationID        string             `json:"correlation_id"`
}

// CompareImages POST /faceapp/compare/ - compara image1 com image2
func (h *CompareHandler) CompareImages(c *fiber.Ctx) error {
	first, err := formAsset(c, "image1")
	if err != nil {
		return err
	}
	second, err := formAsset(c, "image2")
	if err != nil {
		return err
	}

	result, err := h.service.CompareImages(c.UserContext(), first, second)
	if err != nil {
		return fmt.Errorf("compare images: %w", err)
	}

	return c.JSON(CompareResponse{
		StatusCode:      fiber.StatusOK,
		SimilarityScore: result.Score,
		IsSimilar:       result.IsSimilar,
		Threshold:       result.Threshold,
		CorrelationID:   middleware.CorrelationID(c),
	})
}

// CompareVideo POST /faceapp/compare_video/ - compara uma imagem com frames amostrados do vídeo
func (h *CompareHandler) CompareVideo(c *fiber.Ctx) error {
	img, err := formAsset(c, "image")
	if err != nil {
		return err
	}
	clip, err := formAsset(c, "video")
	if err != nil {
		return err
	}

	result, err := h.service.CompareVideo(c.UserContext(), img, clip)
	if err != nil {
		return fmt.Errorf("compare video: %w", err)
	}

	return c.JSON(CompareVideoResponse{
		StatusCode:           fiber.StatusOK,
		AggregatedSimilarity: result.AggregatedSimilarity,
		IsSimilar:            result.IsSimilar,
		Threshold:            result.Threshold,
		FramesUsed:           len(result.Frames),
		FrameScores:          result.Frames,
		CorrelationID:        middleware.CorrelationID(c),
	})
}

// formAsset reads one multipart file field fully into memory.
func formAsset(c *fiber.Ctx, field string) (*domain.MediaAsset, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, domain.ErrMissingFile.WithMessage("Missing uploaded file: %s", field)
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrBadRequest.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrBadRequest.WithError(err)
	}

	return domain.NewMediaAsset(file.Filename, data), nil
}
