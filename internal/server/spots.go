package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cropsight/cropsight/internal/geometry"
	"github.com/cropsight/cropsight/internal/imaging"
	"github.com/cropsight/cropsight/internal/model"
	"github.com/cropsight/cropsight/internal/store"
)

// handleCreateSpot records a geolocated photo inside a field and analyzes it
// immediately. The spot must lie inside the field polygon.
func (s *Server) handleCreateSpot(c *gin.Context) {
	fieldID, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	field, err := s.store.GetField(ctx, fieldID)
	if err != nil {
		storeError(c, err)
		return
	}

	lat, err1 := strconv.ParseFloat(c.PostForm("latitude"), 64)
	lng, err2 := strconv.ParseFloat(c.PostForm("longitude"), 64)
	if err1 != nil || err2 != nil {
		errorResponse(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	if !field.Polygon.Contains(geometry.Point{Lat: lat, Lng: lng}) {
		errorResponse(c, http.StatusBadRequest, "spot must be inside field polygon")
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "no image provided")
		return
	}
	data, err := readFileHeader(header)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "reading image: "+err.Error())
		return
	}

	imagePath, err := s.saveUpload(fieldID, header.Filename, data)
	if err != nil {
		s.log.WithError(err).Error("saving upload")
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	spot, err := s.store.CreateSpot(ctx, &store.Spot{
		FieldID:       fieldID,
		Latitude:      lat,
		Longitude:     lng,
		ImagePath:     imagePath,
		ImageFilename: header.Filename,
		Device:        c.PostForm("device"),
		Notes:         c.PostForm("notes"),
	})
	if err != nil {
		s.log.WithError(err).Error("creating spot")
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	analysis, err := s.analyzeSpotImage(spot.ID, data, field.CropType, c.PostForm("model"))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "analysis failed: "+err.Error())
		return
	}
	if err := s.store.SaveAnalysis(ctx, analysis); err != nil {
		s.log.WithError(err).Error("saving analysis")
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	spot.Analysis = analysis

	c.JSON(http.StatusCreated, gin.H{"spot": spot, "analysis": analysis})
}

// analyzeSpotImage runs the quality gate and, when usable, the classifier,
// producing the analysis record for one spot photo.
func (s *Server) analyzeSpotImage(spotID int64, data []byte, cropType, requestedModel string) (*store.Analysis, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	quality := imaging.Assess(img)

	a := &store.Analysis{
		SpotID:                       spotID,
		DiseasesDetected:             []string{},
		PestsDetected:                []string{},
		NutrientDeficienciesDetected: []string{},
		StressSigns:                  []string{},
		IsBlurry:                     quality.IsBlurry,
		IsUnderexposed:               quality.IsUnderexposed,
		IsOverexposed:                quality.IsOverexposed,
	}

	if quality.Unusable() {
		a.ModelVersion = "none"
		a.Status = store.StatusUnusableImage
		a.HealthLabel = model.HealthUnknown
		a.ProcessingTimeMs = int(time.Since(start).Milliseconds())
		return a, nil
	}

	name, ok := s.selectModel(requestedModel)
	if !ok {
		return nil, fmt.Errorf("no models available")
	}
	loaded, err := s.cache.GetOrLoad(name)
	if err != nil {
		return nil, err
	}
	pred, err := model.Predict(loaded, imaging.Preprocess(img))
	if err != nil {
		return nil, err
	}

	assessment := model.Assess(pred, cropType)
	a.ModelVersion = name
	a.Status = store.StatusOK
	a.HealthLabel = assessment.HealthAssessment.Label
	a.Confidence = assessment.HealthAssessment.Confidence
	a.DiseasesDetected = assessment.DetailedFindings.DiseasesDetected
	a.PestsDetected = assessment.DetailedFindings.PestsDetected
	a.NutrientDeficienciesDetected = assessment.DetailedFindings.NutrientDeficienciesDetected
	a.StressSigns = assessment.DetailedFindings.StressSigns
	a.ProcessingTimeMs = int(time.Since(start).Milliseconds())
	return a, nil
}

// saveUpload writes the photo under uploads/field_<id>/ with a unique name.
func (s *Server) saveUpload(fieldID int64, originalName string, data []byte) (string, error) {
	dir := filepath.Join(s.cfg.UploadsDir, fmt.Sprintf("field_%d", fieldID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	ext := filepath.Ext(originalName)
	path := filepath.Join(dir, fmt.Sprintf("spot_%s%s", uuid.NewString(), ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return path, nil
}

// handleListSpots returns every spot in a field with its analysis.
func (s *Server) handleListSpots(c *gin.Context) {
	fieldID, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := s.store.GetField(c.Request.Context(), fieldID); err != nil {
		storeError(c, err)
		return
	}

	spots, err := s.store.ListSpots(c.Request.Context(), fieldID)
	if err != nil {
		s.log.WithError(err).Error("listing spots")
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	if spots == nil {
		spots = []*store.Spot{}
	}
	c.JSON(http.StatusOK, gin.H{"spots": spots, "total": len(spots)})
}

// handleGetSpot returns one spot with its analysis.
func (s *Server) handleGetSpot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	spot, err := s.store.GetSpot(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, spot)
}

// handleDeleteSpot deletes a spot and its analysis. The stored photo is
// removed best-effort.
func (s *Server) handleDeleteSpot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	spot, err := s.store.GetSpot(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	if err := s.store.DeleteSpot(c.Request.Context(), id); err != nil {
		storeError(c, err)
		return
	}
	if spot.ImagePath != "" {
		if err := os.Remove(spot.ImagePath); err != nil && !os.IsNotExist(err) {
			s.log.WithError(err).WithField("path", spot.ImagePath).Warn("removing spot image")
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Spot deleted successfully"})
}
