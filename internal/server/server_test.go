package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsight/cropsight/internal/checkpoint"
	"github.com/cropsight/cropsight/internal/config"
	"github.com/cropsight/cropsight/internal/loader"
	"github.com/cropsight/cropsight/internal/model"
	"github.com/cropsight/cropsight/internal/nn"
	"github.com/cropsight/cropsight/internal/store"
	"github.com/cropsight/cropsight/internal/tensor"
)

// tinyNet stands in for a real architecture: its state dict carries a
// classifier layer so loading and class-count inference work, but its forward
// pass returns fixed logits favoring the first class.
type tinyNet struct {
	fc *nn.Linear
}

func (m *tinyNet) Forward(*tensor.Tensor) *tensor.Tensor {
	return tensor.FromSlice(tensor.Shape{1, 2}, []float32{2, 0})
}

func (m *tinyNet) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	nn.MergeStateDict(sd, "classifier.1", m.fc)
	return sd
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	registry := loader.NewRegistry()
	registry.Register(model.NameCustomCNN1, loader.Entry{
		New: func(numClasses int, _ string) nn.Module {
			return &tinyNet{fc: nn.NewLinear(4, numClasses)}
		},
	})

	configs := loader.NewConfigTable()
	configs.Add(model.NameCustomCNN1, loader.Config{
		NumClasses: 2, ClassNames: []string{"Healthy", "Not Healthy"},
	})
	configs.SetClassNames(2, []string{"Healthy", "Not Healthy"})

	ckpt := filepath.Join(dir, "CustomCNN1_best.ckpt")
	require.NoError(t, checkpoint.WriteStateDict(ckpt, "model_state_dict", checkpoint.TensorMap{
		"classifier.1.weight": tensor.Full(tensor.Shape{2, 4}, 0.1),
		"classifier.1.bias":   tensor.New(tensor.Shape{2}),
	}))

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Config{
		UploadsDir: filepath.Join(dir, "uploads"),
	}
	cache := loader.NewCache(registry, configs, map[string]string{model.NameCustomCNN1: ckpt}, log)
	return New(cfg, log, st, cache)
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w, decodeBody(t, w)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return out
}

// multipartForm builds a multipart body with text fields plus one image file.
func multipartForm(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func doMultipart(t *testing.T, engine *gin.Engine, path string, fields map[string]string, image []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	body, contentType := multipartForm(t, fields, image)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w, decodeBody(t, w)
}

// sharpImage encodes a checkerboard, which passes every quality check.
func sharpImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			c := color.RGBA{A: 255}
			if (x+y)%2 == 0 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// darkImage encodes a black frame, which fails the quality gate.
func darkImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, color.RGBA{A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fieldBody(name string) map[string]any {
	return map[string]any{
		"name":      name,
		"crop_type": "coffee",
		"polygon_coordinates": [][2]float64{
			{0, 0}, {0, 0.001}, {0.001, 0.001}, {0.001, 0},
		},
	}
}

func createField(t *testing.T, engine *gin.Engine) float64 {
	t.Helper()
	w, body := doJSON(t, engine, http.MethodPost, "/api/fields", fieldBody("Test Field"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["id"].(float64)
}

func TestHealthEndpoint(t *testing.T) {
	engine := newTestServer(t).Routes()

	w, body := doJSON(t, engine, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body["available_models"], model.NameCustomCNN1)
	assert.Empty(t, body["loaded_models"])
}

func TestListModelsEndpoint(t *testing.T) {
	engine := newTestServer(t).Routes()

	w, body := doJSON(t, engine, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total_models"])

	models := body["models"].([]any)
	first := models[0].(map[string]any)
	assert.Equal(t, model.NameCustomCNN1, first["name"])
	assert.Equal(t, float64(2), first["num_classes"])
}

func TestFieldLifecycle(t *testing.T) {
	engine := newTestServer(t).Routes()

	id := createField(t, engine)

	w, body := doJSON(t, engine, http.MethodGet, "/api/fields", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total"])

	path := fmt.Sprintf("/api/fields/%d", int64(id))
	w, body = doJSON(t, engine, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Test Field", body["name"])
	metrics := body["metrics"].(map[string]any)
	assert.Greater(t, metrics["area_sqm"].(float64), 0.0)

	w, body = doJSON(t, engine, http.MethodPut, path, fieldBody("Renamed"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Renamed", body["name"])

	w, _ = doJSON(t, engine, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, engine, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateFieldValidation(t *testing.T) {
	engine := newTestServer(t).Routes()

	body := fieldBody("")
	w, _ := doJSON(t, engine, http.MethodPost, "/api/fields", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = fieldBody("Too Few Points")
	body["polygon_coordinates"] = [][2]float64{{0, 0}, {1, 1}}
	w, resp := doJSON(t, engine, http.MethodPost, "/api/fields", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp["error"], "at least 3 points")

	body = fieldBody("Bad Latitude")
	body["polygon_coordinates"] = [][2]float64{{95, 0}, {0, 1}, {1, 0}}
	w, _ = doJSON(t, engine, http.MethodPost, "/api/fields", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFieldMetricsEndpoint(t *testing.T) {
	engine := newTestServer(t).Routes()
	id := createField(t, engine)

	w, body := doJSON(t, engine, http.MethodGet, fmt.Sprintf("/api/fields/%d/metrics", int64(id)), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Test Field", body["field_name"])
	assert.Greater(t, body["area_sqm"].(float64), 0.0)
	assert.Greater(t, body["perimeter_m"].(float64), 0.0)
	centroid := body["centroid"].(map[string]any)
	assert.InDelta(t, 0.0005, centroid["lat"].(float64), 1e-6)

	w, _ = doJSON(t, engine, http.MethodGet, "/api/fields/999/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPredictEndpoint(t *testing.T) {
	engine := newTestServer(t).Routes()

	w, body := doMultipart(t, engine, "/api/predict", nil, sharpImage(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.NameCustomCNN1, body["model_used"])
	assert.Equal(t, "Healthy", body["predicted_class"])
	assert.Greater(t, body["confidence"].(float64), 0.5)

	probs := body["all_probabilities"].(map[string]any)
	assert.Contains(t, probs, "Healthy")
	assert.Contains(t, probs, "Not Healthy")
}

func TestPredictErrors(t *testing.T) {
	engine := newTestServer(t).Routes()

	// No image at all.
	w, _ := doMultipart(t, engine, "/api/predict", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown model name.
	w, body := doMultipart(t, engine, "/api/predict", map[string]string{"model": "Nope"}, sharpImage(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "unknown model")

	// Undecodable image.
	w, _ = doMultipart(t, engine, "/api/predict", nil, []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeUsableImage(t *testing.T) {
	engine := newTestServer(t).Routes()

	fields := map[string]string{
		"latitude":  "0.0005",
		"longitude": "0.0005",
		"crop_type": "coffee",
	}
	w, body := doMultipart(t, engine, "/api/analyze", fields, sharpImage(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "1.0", body["model_version"])
	assert.Equal(t, store.StatusOK, body["status"])

	predictions := body["predictions"].(map[string]any)
	health := predictions["health_assessment"].(map[string]any)
	assert.Equal(t, model.HealthHealthy, health["label"])

	spatial := body["spatial_context"].(map[string]any)
	assert.InDelta(t, 0.0005, spatial["latitude"].(float64), 1e-9)

	quality := body["image_quality"].(map[string]any)
	assert.Equal(t, false, quality["is_blurry"])
}

func TestAnalyzeUnusableImage(t *testing.T) {
	engine := newTestServer(t).Routes()

	w, body := doMultipart(t, engine, "/api/analyze", nil, darkImage(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, store.StatusUnusableImage, body["status"])

	predictions := body["predictions"].(map[string]any)
	health := predictions["health_assessment"].(map[string]any)
	assert.Equal(t, model.HealthUnknown, health["label"])

	findings := predictions["detailed_findings"].(map[string]any)
	assert.Empty(t, findings["diseases_detected"])

	// Spatial fields arrive null when not supplied.
	spatial := body["spatial_context"].(map[string]any)
	assert.Nil(t, spatial["latitude"])
	assert.Nil(t, spatial["field_id"])
}

func TestSpotLifecycleOverHTTP(t *testing.T) {
	engine := newTestServer(t).Routes()
	id := int64(createField(t, engine))

	fields := map[string]string{
		"latitude":  "0.0005",
		"longitude": "0.0005",
		"notes":     "row 3",
	}
	w, body := doMultipart(t, engine, fmt.Sprintf("/api/fields/%d/spots", id), fields, sharpImage(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	spot := body["spot"].(map[string]any)
	analysis := body["analysis"].(map[string]any)
	assert.Equal(t, "row 3", spot["notes"])
	assert.Equal(t, store.StatusOK, analysis["status"])
	assert.Equal(t, model.NameCustomCNN1, analysis["model_version"])
	assert.Equal(t, model.HealthHealthy, analysis["health_label"])

	spotID := int64(spot["id"].(float64))

	w, body = doJSON(t, engine, http.MethodGet, fmt.Sprintf("/api/fields/%d/spots", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total"])

	w, body = doJSON(t, engine, http.MethodGet, fmt.Sprintf("/api/spots/%d", spotID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, body["analysis"])

	w, _ = doJSON(t, engine, http.MethodDelete, fmt.Sprintf("/api/spots/%d", spotID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, engine, http.MethodGet, fmt.Sprintf("/api/spots/%d", spotID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSpotUnusableImageSkipsModel(t *testing.T) {
	engine := newTestServer(t).Routes()
	id := int64(createField(t, engine))

	fields := map[string]string{"latitude": "0.0005", "longitude": "0.0005"}
	w, body := doMultipart(t, engine, fmt.Sprintf("/api/fields/%d/spots", id), fields, darkImage(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	analysis := body["analysis"].(map[string]any)
	assert.Equal(t, store.StatusUnusableImage, analysis["status"])
	assert.Equal(t, "none", analysis["model_version"])
	assert.Equal(t, model.HealthUnknown, analysis["health_label"])
}

func TestSpotOutsidePolygonRejected(t *testing.T) {
	engine := newTestServer(t).Routes()
	id := int64(createField(t, engine))

	fields := map[string]string{"latitude": "5", "longitude": "5"}
	w, body := doMultipart(t, engine, fmt.Sprintf("/api/fields/%d/spots", id), fields, sharpImage(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "inside field polygon")
}

func TestSpotInvalidCoordinates(t *testing.T) {
	engine := newTestServer(t).Routes()
	id := int64(createField(t, engine))

	fields := map[string]string{"latitude": "abc", "longitude": "0.0005"}
	w, _ := doMultipart(t, engine, fmt.Sprintf("/api/fields/%d/spots", id), fields, sharpImage(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalysisSummary(t *testing.T) {
	engine := newTestServer(t).Routes()
	id := int64(createField(t, engine))

	fields := map[string]string{"latitude": "0.0005", "longitude": "0.0005"}
	for i := 0; i < 2; i++ {
		w, _ := doMultipart(t, engine, fmt.Sprintf("/api/fields/%d/spots", id), fields, sharpImage(t))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, body := doJSON(t, engine, http.MethodGet, fmt.Sprintf("/api/fields/%d/analysis-summary", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(2), body["total_spots"])
	distribution := body["health_distribution"].(map[string]any)
	assert.Equal(t, float64(2), distribution[model.HealthHealthy])

	heatmap := body["disease_heatmap"].([]any)
	require.Len(t, heatmap, 2)
	point := heatmap[0].(map[string]any)
	assert.Equal(t, model.HealthHealthy, point["health_label"])
	assert.Greater(t, point["severity"].(float64), 0.0)

	w, _ = doJSON(t, engine, http.MethodGet, "/api/fields/999/analysis-summary", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSelectModelFallback(t *testing.T) {
	srv := newTestServer(t)

	name, ok := srv.selectModel("")
	require.True(t, ok)
	assert.Equal(t, model.NameCustomCNN1, name)

	// An undiscovered request falls back to the preferred order.
	name, ok = srv.selectModel("ShuffleNet")
	require.True(t, ok)
	assert.Equal(t, model.NameCustomCNN1, name)

	name, ok = srv.selectModel(model.NameCustomCNN1)
	require.True(t, ok)
	assert.Equal(t, model.NameCustomCNN1, name)
}

func TestPathIDValidation(t *testing.T) {
	engine := newTestServer(t).Routes()

	for _, path := range []string{"/api/fields/abc", "/api/spots/xyz"} {
		w, _ := doJSON(t, engine, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}
