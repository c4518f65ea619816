// server/internal/api/handlers/capture_handler.go
package handlers

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"spotmytrash-api-server/internal/apperr"
	"spotmytrash-api-server/internal/capture"
	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/routing"

	"github.com/gin-gonic/gin"
)

// CaptureHandler accepts captures from devices that upload a photo and, when
// they have one, a location fix taken with it.
type CaptureHandler struct {
	Router         capture.Router
	Device         string
	FixTimeout     time.Duration
	MaxUploadBytes int64
}

type captureResponse struct {
	routing.Result
	State string `json:"state"`
}

// CreateCapture handles a multipart form with a "photo" file and optional
// latitude, longitude, accuracy, device and userId fields.
func (h *CaptureHandler) CreateCapture(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo could not be read"})
		return
	}

	reading, err := parseReading(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device := c.PostForm("device")
	if device == "" {
		device = h.Device
	}
	session := capture.NewSession(
		capture.BytesCamera{Data: data, ContentType: header.Header.Get("Content-Type")},
		capture.StaticLocator{Reading: reading},
		capture.WithDevice(device),
		capture.WithUserID(c.PostForm("userId")),
		capture.WithFixTimeout(h.FixTimeout),
	)

	if _, err := session.Capture(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := session.Submit(c.Request.Context(), h.Router)
	if err != nil {
		_ = c.Error(err)
		c.JSON(errorStatus(err), gin.H{"error": err.Error(), "kind": apperr.Label(err), "state": session.State().String()})
		return
	}

	status := http.StatusCreated
	if res.Path == routing.PathOffline {
		status = http.StatusAccepted
	}
	c.JSON(status, captureResponse{Result: res, State: session.State().String()})
}

// parseReading returns nil when the device sent no coordinates at all.
func parseReading(c *gin.Context) (*models.GeoReading, error) {
	rawLat, rawLon := c.PostForm("latitude"), c.PostForm("longitude")
	if rawLat == "" && rawLon == "" {
		return nil, nil
	}
	lat, err := parseCoordinate(rawLat, 90)
	if err != nil {
		return nil, errors.New("latitude must be a number between -90 and 90")
	}
	lon, err := parseCoordinate(rawLon, 180)
	if err != nil {
		return nil, errors.New("longitude must be a number between -180 and 180")
	}
	reading := models.NewGeoReading(lat, lon)
	if rawAcc := c.PostForm("accuracy"); rawAcc != "" {
		acc, err := strconv.ParseFloat(rawAcc, 64)
		if err != nil || acc < 0 || math.IsNaN(acc) || math.IsInf(acc, 0) {
			return nil, errors.New("accuracy must be a non-negative number of meters")
		}
		reading = reading.WithAccuracy(acc)
	}
	return &reading, nil
}

func parseCoordinate(raw string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < -limit || v > limit {
		return 0, errors.New("out of range")
	}
	return v, nil
}

// errorStatus maps an error kind to the HTTP status returned to the device.
func errorStatus(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrMissingGeoReading:
		return http.StatusUnprocessableEntity
	case apperr.ErrBlobUpload, apperr.ErrMetadataWrite:
		return http.StatusBadGateway
	case apperr.ErrLocalWrite:
		return http.StatusInsufficientStorage
	case apperr.ErrFetch, apperr.ErrSubscription:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
