// server/internal/api/handlers/garbage_point_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"spotmytrash-api-server/internal/docstore"
	"spotmytrash-api-server/internal/garbage"
	"spotmytrash-api-server/internal/geo"
	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/stats"

	"github.com/gin-gonic/gin"
)

const defaultNearbyRadius = 100.0

// GarbagePointHandler serves reads of the garbage point set.
type GarbagePointHandler struct {
	Docs      docstore.Store
	PhotoURLs *garbage.PhotoURLs
	Observer  garbage.Observer
	OrderBy   string
	Limit     int64
}

// Repository builds a repository for the request's userId, orderBy and limit
// query parameters on top of the configured defaults.
func (h *GarbagePointHandler) Repository(c *gin.Context) (*garbage.Repository, error) {
	orderBy := c.DefaultQuery("orderBy", h.OrderBy)
	if orderBy != "" && orderBy != docstore.FieldCreatedAt && orderBy != garbage.FieldStatus {
		return nil, errors.New("orderBy must be createdAt or status")
	}
	limit := h.Limit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return nil, errors.New("limit must be a non-negative integer")
		}
		limit = n
	}

	opts := []garbage.Option{
		garbage.WithOrderField(orderBy),
		garbage.WithUserID(c.Query("userId")),
		garbage.WithLimit(limit),
	}
	if h.PhotoURLs != nil {
		opts = append(opts, garbage.WithPhotoURLs(h.PhotoURLs))
	}
	if h.Observer != nil {
		opts = append(opts, garbage.WithObserver(h.Observer))
	}
	return garbage.NewRepository(h.Docs, opts...), nil
}

func (h *GarbagePointHandler) fetch(c *gin.Context) (*garbage.Repository, []models.GarbagePoint, bool) {
	repo, err := h.Repository(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	points, err := repo.FetchOnce(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(errorStatus(err), gin.H{"error": "could not reach the point store"})
		return nil, nil, false
	}
	return repo, points, true
}

// ListGarbagePoints returns the points, newest first, with stats and the latest id.
func (h *GarbagePointHandler) ListGarbagePoints(c *gin.Context) {
	repo, points, ok := h.fetch(c)
	if !ok {
		return
	}
	latest, _ := garbage.Latest(points, repo.OrderField())
	c.JSON(http.StatusOK, gin.H{
		"points":   points,
		"count":    len(points),
		"latestId": latest,
		"stats":    stats.Compute(points),
	})
}

func (h *GarbagePointHandler) GetStats(c *gin.Context) {
	_, points, ok := h.fetch(c)
	if !ok {
		return
	}
	if c.Query("byUser") == "true" {
		c.JSON(http.StatusOK, gin.H{"total": stats.Compute(points), "byUser": stats.ByUser(points)})
		return
	}
	c.JSON(http.StatusOK, stats.Compute(points))
}

// GetNearby filters by distance from lat/lon; radius is in meters and defaults to 100.
func (h *GarbagePointHandler) GetNearby(c *gin.Context) {
	lat, errLat := parseCoordinate(c.Query("lat"), 90)
	lon, errLon := parseCoordinate(c.Query("lon"), 180)
	if errLat != nil || errLon != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon are required and must be valid coordinates"})
		return
	}
	radius := defaultNearbyRadius
	if raw := c.Query("radius"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be a non-negative number of meters"})
			return
		}
		radius = r
	}

	_, points, ok := h.fetch(c)
	if !ok {
		return
	}
	center := models.NewGeoReading(lat, lon)
	near := geo.Within(center, radius, points)
	c.JSON(http.StatusOK, gin.H{
		"center": center,
		"radius": radius,
		"count":  len(near),
		"points": near,
	})
}

func (h *GarbagePointHandler) GetGeoJSON(c *gin.Context) {
	_, points, ok := h.fetch(c)
	if !ok {
		return
	}
	data, err := geo.MarshalFeatureCollection(points)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not encode points"})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}
