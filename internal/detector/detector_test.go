package detector

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"portal/internal/entity"
	"portal/internal/storage"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct {
	loadErr    error
	failLoads  int32
	predictErr error
	loads      atomic.Int32
	detections []entity.Detection
}

func (m *stubModel) Name() string { return "stub" }

func (m *stubModel) Load(ctx context.Context) error {
	n := m.loads.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	if n <= m.failLoads {
		return errors.New("model server not ready")
	}
	return m.loadErr
}

func (m *stubModel) Predict(context.Context, []byte, string) ([]entity.Detection, error) {
	if m.predictErr != nil {
		return nil, m.predictErr
	}
	return m.detections, nil
}

func TestFallbackRanges(t *testing.T) {
	f := NewFallback(rand.New(rand.NewPCG(1, 2)))
	classes := map[string]bool{}
	for _, c := range append(append([]string{}, commonClasses...), rareClasses...) {
		classes[c] = true
	}
	for i := 0; i < 500; i++ {
		got := f.Generate()
		require.GreaterOrEqual(t, len(got), 1)
		require.LessOrEqual(t, len(got), 3)
		for _, d := range got {
			assert.True(t, classes[d.Class], d.Class)
			assert.GreaterOrEqual(t, d.Confidence, 0.65)
			assert.LessOrEqual(t, d.Confidence, 0.92)
			assert.Equal(t, round2(d.Confidence), d.Confidence)
			assert.True(t, d.BBox.X >= 10 && d.BBox.X <= 200)
			assert.True(t, d.BBox.Y >= 10 && d.BBox.Y <= 200)
			assert.True(t, d.BBox.Width >= 80 && d.BBox.Width <= 250)
			assert.True(t, d.BBox.Height >= 80 && d.BBox.Height <= 250)
		}
	}
}

func TestHandleLoadsOnce(t *testing.T) {
	model := &stubModel{detections: []entity.Detection{
		{Class: "person", Confidence: 0.87654, BBox: entity.BoundingBox{X: -5, Y: 3, Width: 10, Height: 20}},
	}}
	h := NewHandle("yolov8n", model, nil, NewMetrics(nil))

	for i := 0; i < 3; i++ {
		res := h.Detect(context.Background(), []byte("img"), "image/png")
		require.False(t, res.Fallback)
		require.Len(t, res.Detections, 1)
		assert.Equal(t, 0.88, res.Detections[0].Confidence)
		assert.Equal(t, 0, res.Detections[0].BBox.X)
		assert.Equal(t, "yolov8n", res.Model)
	}
	assert.Equal(t, int32(1), model.loads.Load())
	assert.True(t, h.Ready())
}

func TestHandleFallback(t *testing.T) {
	tests := []struct {
		name  string
		model Model
	}{
		{"无模型", nil},
		{"加载失败", &stubModel{loadErr: errors.New("boom")}},
		{"推理失败", &stubModel{predictErr: errors.New("boom")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandle("yolov8n", tt.model, NewFallback(rand.New(rand.NewPCG(3, 4))), nil)
			res := h.Detect(context.Background(), []byte("img"), "image/png")
			assert.True(t, res.Fallback)
			assert.NotEmpty(t, res.Detections)
		})
	}
}

func TestHandleLoadSurvivesCancelledRequest(t *testing.T) {
	model := &stubModel{detections: []entity.Detection{{Class: "dog", Confidence: 0.8}}}
	h := NewHandle("yolov8n", model, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := h.Detect(ctx, []byte("img"), "image/png")

	assert.Equal(t, int32(1), model.loads.Load())
	assert.True(t, h.Ready())
	assert.False(t, res.Fallback)
}

func TestHandleRetriesFailedLoad(t *testing.T) {
	model := &stubModel{failLoads: 1, detections: []entity.Detection{{Class: "cat", Confidence: 0.7}}}
	h := NewHandle("yolov8n", model, nil, nil)

	first := h.Detect(context.Background(), []byte("img"), "image/png")
	assert.True(t, first.Fallback)
	assert.False(t, h.Ready())

	second := h.Detect(context.Background(), []byte("img"), "image/png")
	assert.False(t, second.Fallback)
	require.Len(t, second.Detections, 1)
	assert.Equal(t, "cat", second.Detections[0].Class)
	assert.True(t, h.Ready())

	h.Detect(context.Background(), []byte("img"), "image/png")
	assert.Equal(t, int32(2), model.loads.Load())
}

func TestSidecarStore(t *testing.T) {
	ctx := context.Background()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	s := NewSidecarStore(local)
	clock := time.Date(2025, 1, 2, 6, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return clock }

	_, err = s.Load(ctx, "uploads/a.png")
	assert.ErrorIs(t, err, ErrNoResults)

	saved, err := s.Save(ctx, "uploads/a.png", "a.png", Result{Model: "yolov8n", Fallback: true, Detections: []entity.Detection{{Class: "cat", Confidence: 0.7}}})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02T06:04:05Z", saved.UpdatedAt)
	assert.Equal(t, 1, saved.Count)

	loaded, err := s.Load(ctx, "uploads/a.png")
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	exists, err := local.Exists(ctx, "uploads/a.png.det.json")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete(ctx, "uploads/a.png"))
	require.NoError(t, s.Delete(ctx, "uploads/a.png"))
	_, err = s.Load(ctx, "uploads/a.png")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestHTTPModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/predict":
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"predictions":[{"name":"dog","confidence":0.5,"x1":10,"y1":20,"x2":110,"y2":220}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m, err := NewHTTPModel(srv.URL+"/", "secret", "", time.Second)
	require.NoError(t, err)
	require.NoError(t, m.Load(context.Background()))

	got, err := m.Predict(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "dog", got[0].Class)
	assert.Equal(t, entity.BoundingBox{X: 10, Y: 20, Width: 100, Height: 200}, got[0].BBox)
}

func TestHTTPModelUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m, err := NewHTTPModel(srv.URL, "", "yolov8n", time.Second)
	require.NoError(t, err)
	assert.Error(t, m.Load(context.Background()))

	_, err = NewHTTPModel("", "", "", 0)
	assert.Error(t, err)
}

func TestParseArkAnswer(t *testing.T) {
	answer := "```json\n{\"detections\":[{\"class\":\"car\",\"confidence\":0.91,\"bbox\":{\"x\":1,\"y\":2,\"width\":3,\"height\":4}}]}\n```"
	got, err := parseArkAnswer(answer)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "car", got[0].Class)

	_, err = parseArkAnswer("I see a car")
	assert.Error(t, err)
}
