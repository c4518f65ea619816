// server/internal/routing/router.go
// Package routing picks the persistence path for a capture from a fresh reachability verdict.
package routing

import (
	"context"

	"spotmytrash-api-server/internal/apperr"
	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/reachability"
	"spotmytrash-api-server/internal/upload"

	"go.uber.org/zap"
)

// Path is the persistence path a capture took.
type Path string

const (
	PathOnline  Path = "online"
	PathOffline Path = "offline"
)

// Result tells the caller where the capture ended up. Locator is the garbage point
// id on the online path and the local photo path on the offline path.
type Result struct {
	Path     Path   `json:"path"`
	Locator  string `json:"locator"`
	PointID  string `json:"pointId,omitempty"`
	PhotoID  string `json:"photoId,omitempty"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

// RemoteUploader is the online path.
type RemoteUploader interface {
	Upload(ctx context.Context, rec models.CaptureRecord) (upload.Result, error)
}

// LocalStore is the offline path.
type LocalStore interface {
	Store(ctx context.Context, rec models.CaptureRecord) (string, error)
}

// Observer is told about every routed or failed capture.
type Observer interface {
	Routed(ctx context.Context, rec models.CaptureRecord, res Result)
	Failed(ctx context.Context, rec models.CaptureRecord, path Path, err error)
}

type Router struct {
	probe     reachability.Probe
	remote    RemoteUploader
	local     LocalStore
	observers []Observer
}

func New(probe reachability.Probe, remote RemoteUploader, local LocalStore, observers ...Observer) *Router {
	return &Router{probe: probe, remote: remote, local: local, observers: observers}
}

// Decide asks the probe once. The verdict is not cached between captures.
func (r *Router) Decide(ctx context.Context) Path {
	if r.probe.IsReachable(ctx) {
		return PathOnline
	}
	return PathOffline
}

// Dispatch runs the chosen path. A failed online attempt is reported, not
// retried offline.
func (r *Router) Dispatch(ctx context.Context, path Path, rec models.CaptureRecord) (Result, error) {
	var (
		res Result
		err error
	)
	switch path {
	case PathOnline:
		var up upload.Result
		up, err = r.remote.Upload(ctx, rec)
		res = Result{Path: PathOnline, Locator: up.PointID, PointID: up.PointID, PhotoID: up.Photo.ID, PhotoURL: up.Photo.URL}
	case PathOffline:
		var local string
		local, err = r.local.Store(ctx, rec)
		res = Result{Path: PathOffline, Locator: local}
	default:
		err = apperr.New(apperr.ErrRouting, "routing: unknown path "+string(path))
	}

	if err != nil {
		err = apperr.Wrap(apperr.ErrRouting, err, "routing: "+string(path)+" path")
		zap.L().Warn("routing: capture not persisted", zap.String("path", string(path)), zap.Error(err))
		for _, o := range r.observers {
			o.Failed(ctx, rec, path, err)
		}
		return Result{}, err
	}

	zap.L().Info("routing: capture persisted", zap.String("path", string(res.Path)), zap.String("locator", res.Locator))
	for _, o := range r.observers {
		o.Routed(ctx, rec, res)
	}
	return res, nil
}

// Route decides and dispatches in one call.
func (r *Router) Route(ctx context.Context, rec models.CaptureRecord) (Result, error) {
	return r.Dispatch(ctx, r.Decide(ctx), rec)
}
