package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cropsight/cropsight/internal/imaging"
	"github.com/cropsight/cropsight/internal/loader"
	"github.com/cropsight/cropsight/internal/model"
	"github.com/cropsight/cropsight/internal/store"
)

// preferredModels is the analysis fallback order when no model is requested:
// multi-class families first for detailed findings, binary screens last.
var preferredModels = []string{
	model.NameCustomCNN1, model.NameCustomCNN2, model.NameCustomCNN3,
	model.NameEfficientNet, model.NameMobileNetV3,
}

// handleListModels describes every discovered model.
func (s *Server) handleListModels(c *gin.Context) {
	names := s.cache.Available()
	models := make([]loader.Descriptor, 0, len(names))
	for _, name := range names {
		desc, err := s.cache.Describe(name)
		if err != nil {
			continue
		}
		models = append(models, desc)
	}
	c.JSON(http.StatusOK, gin.H{
		"models":       models,
		"total_models": len(models),
	})
}

// handlePredict runs one model on one uploaded image and returns the raw
// class probabilities.
func (s *Server) handlePredict(c *gin.Context) {
	data, err := readUpload(c, "image")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	name := c.PostForm("model")
	if name == "" {
		available := s.cache.Available()
		if len(available) == 0 {
			errorResponse(c, http.StatusInternalServerError, "no models available")
			return
		}
		name = available[0]
	}

	loaded, err := s.cache.GetOrLoad(name)
	if errors.Is(err, loader.ErrModelNotFound) {
		errorResponse(c, http.StatusBadRequest, "unknown model: "+name)
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("model", name).Error("model load failed")
		errorResponse(c, http.StatusInternalServerError, "error loading model: "+err.Error())
		return
	}

	input, err := imaging.DecodeAndPreprocess(data)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "error processing image: "+err.Error())
		return
	}

	pred, err := model.Predict(loaded, input)
	if err != nil {
		s.log.WithError(err).WithField("model", name).Error("prediction failed")
		errorResponse(c, http.StatusInternalServerError, "error making prediction: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model_used":        pred.Model,
		"num_classes":       loaded.Descriptor.NumClasses,
		"predicted_class":   pred.PredictedClass,
		"confidence":        pred.Confidence,
		"all_probabilities": pred.Probabilities,
		"top_predictions":   pred.Top,
	})
}

// handleAnalyze analyzes a geolocated crop image: quality gate first, then
// classification mapped onto the health schema.
func (s *Server) handleAnalyze(c *gin.Context) {
	start := time.Now()

	data, err := readUpload(c, "image")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	spatial := gin.H{
		"latitude":  parseOptionalFloat(c.PostForm("latitude")),
		"longitude": parseOptionalFloat(c.PostForm("longitude")),
		"field_id":  optionalString(c.PostForm("field_id")),
	}
	cropType := c.PostForm("crop_type")

	img, err := imaging.Decode(data)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "error processing image: "+err.Error())
		return
	}

	quality := imaging.Assess(img)
	if quality.Unusable() {
		c.JSON(http.StatusOK, gin.H{
			"model_version": schemaVersion,
			"status":        store.StatusUnusableImage,
			"predictions": model.Assessment{
				HealthAssessment: model.HealthAssessment{Label: model.HealthUnknown},
				DetailedFindings: model.DetailedFindings{
					DiseasesDetected:             []string{},
					PestsDetected:                []string{},
					NutrientDeficienciesDetected: []string{},
					StressSigns:                  []string{},
				},
			},
			"spatial_context":    spatial,
			"image_quality":      qualityBody(quality),
			"processing_time_ms": time.Since(start).Milliseconds(),
		})
		return
	}

	name, ok := s.selectModel(c.PostForm("model"))
	if !ok {
		errorResponse(c, http.StatusInternalServerError, "no models available for analysis")
		return
	}

	loaded, err := s.cache.GetOrLoad(name)
	if err != nil {
		s.log.WithError(err).WithField("model", name).Error("model load failed")
		errorResponse(c, http.StatusInternalServerError, "error loading model: "+err.Error())
		return
	}

	pred, err := model.Predict(loaded, imaging.Preprocess(img))
	if err != nil {
		s.log.WithError(err).WithField("model", name).Error("prediction failed")
		errorResponse(c, http.StatusInternalServerError, "error making prediction: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model_version":      schemaVersion,
		"status":             store.StatusOK,
		"predictions":        model.Assess(pred, cropType),
		"spatial_context":    spatial,
		"image_quality":      qualityBody(quality),
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

// selectModel resolves the model for an analysis request: the requested name
// when it is discovered, else the first discovered preferred family, else
// any discovered model at all.
func (s *Server) selectModel(requested string) (string, bool) {
	available := s.cache.Available()
	if len(available) == 0 {
		return "", false
	}

	discovered := make(map[string]bool, len(available))
	for _, name := range available {
		discovered[name] = true
	}

	if requested != "" && discovered[requested] {
		return requested, true
	}
	for _, name := range preferredModels {
		if discovered[name] {
			return name, true
		}
	}
	return available[0], true
}

// readUpload pulls one uploaded file's bytes out of a multipart form.
func readUpload(c *gin.Context, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, errors.New("no image file provided")
	}
	return readFileHeader(header)
}

func readFileHeader(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func qualityBody(q imaging.Quality) gin.H {
	return gin.H{
		"is_blurry":       q.IsBlurry,
		"is_underexposed": q.IsUnderexposed,
		"is_overexposed":  q.IsOverexposed,
		"notes":           q.Notes,
	}
}

func parseOptionalFloat(s string) *float64 {
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func optionalString(s string) *string {
	if s == "" || s == "null" {
		return nil
	}
	return &s
}
