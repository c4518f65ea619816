// server/cmd/api/capture.go
package main

import (
	"context"
	"encoding/json"

	"spotmytrash-api-server/internal/capture"
	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/offline"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var captureFlags struct {
	photo       string
	contentType string
	lat, lon    float64
	accuracy    float64
	user        string
	device      string
	offline     bool
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record a photo file as a garbage report",
	Long: `Record a photo file as a garbage report. The capture is uploaded when the
document store answers, otherwise it is written to the offline directory.
Without --lat and --lon the capture has no location, which the upload path rejects.`,
	RunE: runCapture,
}

func init() {
	f := captureCmd.Flags()
	f.StringVar(&captureFlags.photo, "photo", "", "path of the image file")
	f.StringVar(&captureFlags.contentType, "content-type", "", "image MIME type, sniffed when empty")
	f.Float64Var(&captureFlags.lat, "lat", 0, "latitude of the fix")
	f.Float64Var(&captureFlags.lon, "lon", 0, "longitude of the fix")
	f.Float64Var(&captureFlags.accuracy, "accuracy", 0, "accuracy of the fix in meters")
	f.StringVar(&captureFlags.user, "user", "", "reporting user ID")
	f.StringVar(&captureFlags.device, "device", "", "device tag, defaults to capture.device")
	f.BoolVar(&captureFlags.offline, "offline", false, "skip the remote stores and write locally")
	_ = captureCmd.MarkFlagRequired("photo")
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reading, err := flagReading(cmd)
	if err != nil {
		return err
	}

	var st *stores
	if !captureFlags.offline {
		st, err = openStores(ctx, cfg)
		if err != nil {
			zap.L().Warn("remote stores unavailable, capture stays local", zap.Error(err))
		} else {
			defer st.Close(context.Background())
		}
	}
	router := newRouter(cfg, st, offline.New(cfg.Capture.OfflineDir))

	device := captureFlags.device
	if device == "" {
		device = cfg.Capture.Device
	}
	session := capture.NewSession(
		capture.FileCamera{Path: captureFlags.photo, ContentType: captureFlags.contentType},
		capture.StaticLocator{Reading: reading},
		capture.WithDevice(device),
		capture.WithUserID(captureFlags.user),
		capture.WithFixTimeout(cfg.Capture.FixTimeout),
	)
	if _, err := session.Capture(ctx); err != nil {
		return err
	}
	res, err := session.Submit(ctx, router)
	if err != nil {
		return eris.Wrapf(err, "capture ended in %s", session.State())
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// flagReading returns nil when neither --lat nor --lon was given.
func flagReading(cmd *cobra.Command) (*models.GeoReading, error) {
	f := cmd.Flags()
	if !f.Changed("lat") && !f.Changed("lon") {
		return nil, nil
	}
	if !f.Changed("lat") || !f.Changed("lon") {
		return nil, eris.New("--lat and --lon must be given together")
	}
	if captureFlags.lat < -90 || captureFlags.lat > 90 {
		return nil, eris.Errorf("latitude %v out of range", captureFlags.lat)
	}
	if captureFlags.lon < -180 || captureFlags.lon > 180 {
		return nil, eris.Errorf("longitude %v out of range", captureFlags.lon)
	}
	reading := models.NewGeoReading(captureFlags.lat, captureFlags.lon)
	if f.Changed("accuracy") {
		reading = reading.WithAccuracy(captureFlags.accuracy)
	}
	return &reading, nil
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List captures waiting in the offline directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		queued, err := offline.New(cfg.Capture.OfflineDir).List()
		if err != nil {
			return err
		}
		if queued == nil {
			queued = []models.LocalQueuedCapture{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(queued)
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
}
