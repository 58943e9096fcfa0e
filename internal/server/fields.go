package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cropsight/cropsight/internal/geometry"
	"github.com/cropsight/cropsight/internal/store"
)

type fieldRequest struct {
	Name     string           `json:"name"`
	CropType string           `json:"crop_type"`
	Polygon  geometry.Polygon `json:"polygon_coordinates"`
}

// handleCreateField creates a field from a name and polygon.
func (s *Server) handleCreateField(c *gin.Context) {
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" || len(req.Polygon) == 0 {
		errorResponse(c, http.StatusBadRequest, "name and polygon_coordinates required")
		return
	}
	if err := req.Polygon.Validate(); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	field, err := s.store.CreateField(c.Request.Context(), req.Name, req.CropType, req.Polygon)
	if err != nil {
		s.log.WithError(err).Error("creating field")
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, field)
}

// handleListFields returns all fields.
func (s *Server) handleListFields(c *gin.Context) {
	fields, err := s.store.ListFields(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("listing fields")
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	if fields == nil {
		fields = []*store.Field{}
	}
	c.JSON(http.StatusOK, gin.H{"fields": fields, "total": len(fields)})
}

// handleGetField returns one field with its computed metrics.
func (s *Server) handleGetField(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	field, err := s.store.GetField(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                  field.ID,
		"name":                field.Name,
		"crop_type":           field.CropType,
		"polygon_coordinates": field.Polygon,
		"spot_count":          field.SpotCount,
		"created_at":          field.CreatedAt,
		"updated_at":          field.UpdatedAt,
		"metrics":             geometry.FieldMetrics(field.Polygon),
	})
}

// handleUpdateField replaces a field's name, crop type and polygon.
func (s *Server) handleUpdateField(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" || len(req.Polygon) == 0 {
		errorResponse(c, http.StatusBadRequest, "name and polygon_coordinates required")
		return
	}
	if err := req.Polygon.Validate(); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.UpdateField(c.Request.Context(), id, req.Name, req.CropType, req.Polygon); err != nil {
		storeError(c, err)
		return
	}

	field, err := s.store.GetField(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, field)
}

// handleDeleteField deletes a field and everything under it.
func (s *Server) handleDeleteField(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteField(c.Request.Context(), id); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Field deleted successfully"})
}

// handleFieldMetrics returns area, perimeter, centroid and bounding box.
func (s *Server) handleFieldMetrics(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	field, err := s.store.GetField(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	if len(field.Polygon) == 0 {
		errorResponse(c, http.StatusBadRequest, "field has no polygon coordinates")
		return
	}

	metrics := geometry.FieldMetrics(field.Polygon)
	c.JSON(http.StatusOK, gin.H{
		"field_id":      field.ID,
		"field_name":    field.Name,
		"area_sqm":      metrics.AreaSqm,
		"area_hectares": metrics.AreaHectares,
		"area_acres":    metrics.AreaAcres,
		"perimeter_m":   metrics.PerimeterM,
		"centroid":      metrics.Centroid,
		"bounding_box":  metrics.BoundingBox,
	})
}

// handleAnalysisSummary aggregates a field's analyses for visualization.
func (s *Server) handleAnalysisSummary(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := s.store.GetField(c.Request.Context(), id); err != nil {
		storeError(c, err)
		return
	}

	spots, err := s.store.ListSpots(c.Request.Context(), id)
	if err != nil {
		s.log.WithError(err).Error("listing spots")
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	distribution := make(map[string]int)
	heatmap := make([]gin.H, 0, len(spots))
	for _, spot := range spots {
		if spot.Analysis == nil {
			continue
		}
		distribution[spot.Analysis.HealthLabel]++

		severity := spot.Analysis.Confidence
		if severity == 0 {
			severity = 0.5
		}
		heatmap = append(heatmap, gin.H{
			"latitude":     spot.Latitude,
			"longitude":    spot.Longitude,
			"severity":     severity,
			"health_label": spot.Analysis.HealthLabel,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"field_id":            id,
		"total_spots":         len(spots),
		"health_distribution": distribution,
		"disease_heatmap":     heatmap,
	})
}

// pathID parses the :id path parameter, writing a 400 on failure.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// storeError maps store errors onto HTTP statuses.
func storeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		errorResponse(c, http.StatusNotFound, "not found")
		return
	}
	errorResponse(c, http.StatusInternalServerError, err.Error())
}
