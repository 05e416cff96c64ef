package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/audit"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/media"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider"
	providermock "github.com/saturnino-fabrica-de-software/faceverify/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/similarity"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/video"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/vision"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func faceImage(w, h int, seed uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x) + seed, G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fakeMP4() []byte {
	return append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypmp42\x00\x00\x00\x00mp42isom")...)
}

// inlineRunner runs tasks on the caller goroutine.
type inlineRunner struct{}

func (inlineRunner) Run(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type busyRunner struct{}

func (busyRunner) Run(context.Context, string, func(ctx context.Context) error) error {
	return domain.ErrServiceBusy
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, tensor domain.Tensor) (domain.Embedding, error) {
	args := m.Called(ctx, tensor)
	return args.Get(0).(domain.Embedding), args.Error(1)
}

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) Log(ctx context.Context, event audit.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// recordingAudit collects events; safe for concurrent use.
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) last() audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type testSetup struct {
	order    vision.Order
	embedder provider.Embedder
	frames   FrameExtractor
	runner   TaskRunner
	fanOut   int
	auditLog audit.Logger
	tempDir  string
}

func newTestService(t *testing.T, setup testSetup) *ComparisonService {
	t.Helper()

	if setup.order == "" {
		setup.order = vision.LandmarkFirst
	}
	if setup.embedder == nil {
		setup.embedder = providermock.NewEmbedder()
	}
	if setup.runner == nil {
		setup.runner = inlineRunner{}
	}
	if setup.tempDir == "" {
		setup.tempDir = t.TempDir()
	}

	pipeline, err := vision.NewPipeline(providermock.NewDetector(), providermock.NewLandmarker(), vision.PipelineConfig{
		Order:         setup.order,
		Margin:        0.15,
		VerticalShift: 0.1,
		Channels:      vision.ChannelsBGR,
	})
	require.NoError(t, err)

	threshold, err := similarity.NewThreshold(similarity.DefaultThreshold)
	require.NoError(t, err)

	return NewComparisonService(Dependencies{
		Validator: media.NewValidator(),
		Pipeline:  pipeline,
		Embedder:  setup.embedder,
		Frames:    setup.frames,
		Store:     video.NewStore(setup.tempDir),
		Runner:    setup.runner,
		MaxFanOut: setup.fanOut,
		Audit:     setup.auditLog,
		Logger:    testLogger(),
	}, threshold)
}

func TestComparisonService_SetThreshold(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		wantErr error
		want    float64
	}{
		{name: "valid", value: 0.8, want: 0.8},
		{name: "lower bound", value: 0, want: 0},
		{name: "upper bound", value: 1, want: 1},
		{name: "above range", value: 1.5, wantErr: domain.ErrInvalidThreshold, want: 0.5},
		{name: "negative", value: -0.1, wantErr: domain.ErrInvalidThreshold, want: 0.5},
		{name: "nan", value: math.NaN(), wantErr: domain.ErrInvalidThreshold, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingAudit{}
			svc := newTestService(t, testSetup{auditLog: rec})

			err := svc.SetThreshold(context.Background(), tt.value)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, rec.events)
			} else {
				require.NoError(t, err)
				require.Len(t, rec.events, 1)
				assert.Equal(t, audit.EventThresholdUpdated, rec.events[0].EventType)
				assert.Equal(t, "Threshold updated to "+FormatThreshold(tt.value), rec.events[0].Message)
			}
			assert.Equal(t, tt.want, svc.Threshold())
		})
	}
}

func TestFormatThreshold(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.8, "0.8"},
		{1, "1.0"},
		{0, "0.0"},
		{0.65, "0.65"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatThreshold(tt.in))
		})
	}
}

func TestComparisonService_CompareImages_SameImage(t *testing.T) {
	for _, order := range []vision.Order{vision.LandmarkFirst, vision.DetectFirst} {
		t.Run(string(order), func(t *testing.T) {
			rec := &recordingAudit{}
			svc := newTestService(t, testSetup{order: order, auditLog: rec})
			data := pngBytes(t, faceImage(200, 200, 0))

			ctx := domain.WithCorrelationID(context.Background(), "corr-1")
			result, err := svc.CompareImages(ctx,
				domain.NewMediaAsset("a.png", data),
				domain.NewMediaAsset("b.png", data),
			)

			require.NoError(t, err)
			assert.InDelta(t, 1.0, result.Score, 1e-6)
			assert.True(t, result.IsSimilar)
			assert.Equal(t, 0.5, result.Threshold)

			event := rec.last()
			assert.Equal(t, audit.EventImagesCompared, event.EventType)
			assert.Equal(t, "corr-1", event.CorrelationID)
			assert.True(t, event.Success)
		})
	}
}

func TestComparisonService_CompareImages_DecisionUsesThreshold(t *testing.T) {
	svc := newTestService(t, testSetup{})
	first := pngBytes(t, faceImage(200, 200, 0))
	second := pngBytes(t, faceImage(200, 200, 97))

	result, err := svc.CompareImages(context.Background(),
		domain.NewMediaAsset("a.png", first),
		domain.NewMediaAsset("b.png", second),
	)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 1.0)
	assert.Equal(t, result.Score >= result.Threshold, result.IsSimilar)

	require.NoError(t, svc.SetThreshold(context.Background(), 0))
	result, err = svc.CompareImages(context.Background(),
		domain.NewMediaAsset("a.png", first),
		domain.NewMediaAsset("b.png", second),
	)
	require.NoError(t, err)
	assert.True(t, result.IsSimilar)
	assert.Equal(t, 0.0, result.Threshold)
}

func TestComparisonService_CompareImages_Failures(t *testing.T) {
	face := pngBytes(t, faceImage(200, 200, 0))
	blank := pngBytes(t, solidImage(200, 200))

	tests := []struct {
		name    string
		order   vision.Order
		first   *domain.MediaAsset
		second  *domain.MediaAsset
		wantErr error
	}{
		{
			name:    "unsupported extension",
			first:   domain.NewMediaAsset("a.gif", face),
			second:  domain.NewMediaAsset("b.png", face),
			wantErr: domain.ErrUnsupportedExtension,
		},
		{
			name:    "disguised payload",
			first:   domain.NewMediaAsset("a.png", face),
			second:  domain.NewMediaAsset("b.jpg", []byte("just some plain text pretending to be a photo")),
			wantErr: domain.ErrUnsupportedMIME,
		},
		{
			name:    "missing file",
			first:   domain.NewMediaAsset("a.png", nil),
			second:  domain.NewMediaAsset("b.png", face),
			wantErr: domain.ErrMissingFile,
		},
		{
			name:    "no landmarks on landmark-first",
			order:   vision.LandmarkFirst,
			first:   domain.NewMediaAsset("a.png", face),
			second:  domain.NewMediaAsset("b.png", blank),
			wantErr: domain.ErrNoLandmarks,
		},
		{
			name:    "no face on detect-first",
			order:   vision.DetectFirst,
			first:   domain.NewMediaAsset("a.png", blank),
			second:  domain.NewMediaAsset("b.png", face),
			wantErr: domain.ErrNoFaceDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := &MockEmbedder{}
			rec := &recordingAudit{}
			svc := newTestService(t, testSetup{order: tt.order, embedder: embedder, auditLog: rec})

			result, err := svc.CompareImages(context.Background(), tt.first, tt.second)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)

			event := rec.last()
			assert.Equal(t, audit.EventComparisonFailed, event.EventType)
			assert.False(t, event.Success)
			assert.NotEmpty(t, event.Error)
		})
	}
}

func TestComparisonService_CompareImages_EmbedderError(t *testing.T) {
	embedder := &MockEmbedder{}
	boom := errors.New("inference backend down")
	embedder.On("Embed", mock.Anything, mock.Anything).Return(domain.Embedding{}, boom)

	svc := newTestService(t, testSetup{embedder: embedder})
	data := pngBytes(t, faceImage(160, 160, 0))

	_, err := svc.CompareImages(context.Background(),
		domain.NewMediaAsset("a.png", data),
		domain.NewMediaAsset("b.png", data),
	)

	assert.ErrorIs(t, err, boom)
}

func TestComparisonService_CompareImages_ServiceBusy(t *testing.T) {
	svc := newTestService(t, testSetup{runner: busyRunner{}})
	data := pngBytes(t, faceImage(64, 64, 0))

	_, err := svc.CompareImages(context.Background(),
		domain.NewMediaAsset("a.png", data),
		domain.NewMediaAsset("b.png", data),
	)

	assert.ErrorIs(t, err, domain.ErrServiceBusy)
}

func TestComparisonService_CompareImages_WorkerPool(t *testing.T) {
	pool := worker.NewPool(testLogger(), worker.PoolConfig{Workers: 2, QueueDepth: 8})
	pool.Start()
	defer pool.Stop()

	svc := newTestService(t, testSetup{runner: pool})
	data := pngBytes(t, faceImage(200, 200, 3))

	result, err := svc.CompareImages(context.Background(),
		domain.NewMediaAsset("a.png", data),
		domain.NewMediaAsset("b.png", data),
	)

	require.NoError(t, err)
	assert.True(t, result.IsSimilar)
}

func TestComparisonService_CompareImages_AuditFailureIgnored(t *testing.T) {
	auditLog := &MockAuditLogger{}
	auditLog.On("Log", mock.Anything, mock.Anything).Return(errors.New("sink down"))

	svc := newTestService(t, testSetup{auditLog: auditLog})
	data := pngBytes(t, faceImage(120, 120, 0))

	result, err := svc.CompareImages(context.Background(),
		domain.NewMediaAsset("a.png", data),
		domain.NewMediaAsset("b.png", data),
	)

	require.NoError(t, err)
	assert.True(t, result.IsSimilar)
	auditLog.AssertNumberOfCalls(t, "Log", 1)
}

func TestComparisonService_CompareVideo_SameFace(t *testing.T) {
	tempDir := t.TempDir()
	face := faceImage(200, 200, 0)
	source := providermock.NewFrameSource(face, face, face)
	sampler := video.NewSampler(source, 3, testLogger())

	rec := &recordingAudit{}
	svc := newTestService(t, testSetup{frames: sampler, auditLog: rec, tempDir: tempDir})

	result, err := svc.CompareVideo(context.Background(),
		domain.NewMediaAsset("ref.png", pngBytes(t, face)),
		domain.NewMediaAsset("clip.mp4", fakeMP4()),
	)

	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.AggregatedSimilarity, 1e-6)
	assert.True(t, result.IsSimilar)
	require.Len(t, result.Frames, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{result.Frames[0].Index, result.Frames[1].Index, result.Frames[2].Index})
	assert.Equal(t, audit.EventVideoCompared, rec.last().EventType)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged video must be removed")
}

func TestComparisonService_CompareVideo_SmallPoolServesLoneRequest(t *testing.T) {
	// one worker with a queue of two: a single request must fit on its own
	pool := worker.NewPool(testLogger(), worker.PoolConfig{Workers: 1, QueueDepth: 2, TaskTimeout: 10 * time.Second})
	pool.Start()
	defer pool.Stop()

	face := faceImage(120, 120, 0)
	source := providermock.NewFrameSource(face, face, face, face, face)
	svc := newTestService(t, testSetup{
		frames: video.NewSampler(source, 5, testLogger()),
		runner: pool,
		fanOut: 1,
	})

	for i := 0; i < 3; i++ {
		result, err := svc.CompareVideo(context.Background(),
			domain.NewMediaAsset("ref.png", pngBytes(t, face)),
			domain.NewMediaAsset("clip.mp4", fakeMP4()),
		)

		require.NoError(t, err, "run %d", i)
		assert.InDelta(t, 1.0, result.AggregatedSimilarity, 1e-6)
		assert.Len(t, result.Frames, 5)
	}
}

// widthPipeline encodes the image width into the tensor so the embedder
// can tell the reference image from each frame.
type widthPipeline struct{}

func (widthPipeline) Process(_ context.Context, img *image.RGBA) (domain.Tensor, error) {
	n := domain.TensorShape[0] * domain.TensorShape[1] * domain.TensorShape[2] * domain.TensorShape[3]
	data := make([]float32, n)
	v := float32(img.Bounds().Dx()) / 1000
	for i := range data {
		data[i] = v
	}
	return domain.NewTensor(data)
}

type tableEmbedder map[float32][]float32

func (e tableEmbedder) Embed(_ context.Context, t domain.Tensor) (domain.Embedding, error) {
	vec, ok := e[t.Data()[0]]
	if !ok {
		return domain.Embedding{}, errors.New("unexpected tensor")
	}
	return domain.NewEmbedding(vec)
}

func TestComparisonService_CompareVideo_AggregatesMean(t *testing.T) {
	// normalized scores 0.2, 0.4, 0.6 -> raw cosine -0.6, -0.2, 0.2
	frames := []image.Image{faceImage(11, 11, 0), faceImage(12, 12, 0), faceImage(13, 13, 0)}
	sampler := video.NewSampler(providermock.NewFrameSource(frames...), 3, testLogger())

	s := math.Sqrt(0.96)
	embedder := tableEmbedder{
		float32(50) / 1000: {1, 0},
		float32(11) / 1000: {-0.6, 0.8},
		float32(12) / 1000: {-0.2, float32(s)},
		float32(13) / 1000: {0.2, float32(s)},
	}

	threshold, err := similarity.NewThreshold(0.5)
	require.NoError(t, err)

	svc := NewComparisonService(Dependencies{
		Validator: media.NewValidator(),
		Pipeline:  widthPipeline{},
		Embedder:  embedder,
		Frames:    sampler,
		Store:     video.NewStore(t.TempDir()),
		Runner:    inlineRunner{},
		Logger:    testLogger(),
	}, threshold)

	result, err := svc.CompareVideo(context.Background(),
		domain.NewMediaAsset("ref.png", pngBytes(t, faceImage(50, 50, 0))),
		domain.NewMediaAsset("clip.mp4", fakeMP4()),
	)

	require.NoError(t, err)
	assert.InDelta(t, 0.4, result.AggregatedSimilarity, 1e-6)
	assert.False(t, result.IsSimilar)
	require.Len(t, result.Frames, 3)
	assert.InDelta(t, 0.2, result.Frames[0].Score, 1e-6)
	assert.InDelta(t, 0.4, result.Frames[1].Score, 1e-6)
	assert.InDelta(t, 0.6, result.Frames[2].Score, 1e-6)
}

func TestComparisonService_CompareVideo_Failures(t *testing.T) {
	face := faceImage(200, 200, 0)
	refPNG := pngBytes(t, face)

	tests := []struct {
		name    string
		frames  []image.Image
		image   *domain.MediaAsset
		clip    *domain.MediaAsset
		wantErr error
	}{
		{
			name:    "no frames",
			frames:  nil,
			image:   domain.NewMediaAsset("ref.png", refPNG),
			clip:    domain.NewMediaAsset("clip.mp4", fakeMP4()),
			wantErr: domain.ErrNoFrames,
		},
		{
			name:    "no valid frames",
			frames:  []image.Image{nil, nil, nil},
			image:   domain.NewMediaAsset("ref.png", refPNG),
			clip:    domain.NewMediaAsset("clip.mp4", fakeMP4()),
			wantErr: domain.ErrNoValidFrames,
		},
		{
			name:    "frame without face",
			frames:  []image.Image{face, solidImage(200, 200)},
			image:   domain.NewMediaAsset("ref.png", refPNG),
			clip:    domain.NewMediaAsset("clip.mp4", fakeMP4()),
			wantErr: domain.ErrNoLandmarks,
		},
		{
			name:    "image sent as video",
			frames:  []image.Image{face},
			image:   domain.NewMediaAsset("ref.png", refPNG),
			clip:    domain.NewMediaAsset("clip.mp4", refPNG),
			wantErr: domain.ErrUnsupportedMIME,
		},
		{
			name:    "video sent as image",
			frames:  []image.Image{face},
			image:   domain.NewMediaAsset("ref.mp4", fakeMP4()),
			clip:    domain.NewMediaAsset("clip.mp4", fakeMP4()),
			wantErr: domain.ErrUnsupportedExtension,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler := video.NewSampler(providermock.NewFrameSource(tt.frames...), 5, testLogger())
			tempDir := t.TempDir()
			svc := newTestService(t, testSetup{frames: sampler, tempDir: tempDir})

			result, err := svc.CompareVideo(context.Background(), tt.image, tt.clip)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)

			entries, err := os.ReadDir(tempDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}
